package constants

const (
	// Version is the application version reported by `redeploy version` and `redeploy --version`
	Version = "0.1"
	// SecretEnvVar is the name of the environment variable that holds the webhook secret
	SecretEnvVar = "REDEPLOY_SECRET"
	// TokenEnvVar is the name of the environment variable that holds the github personal access token
	TokenEnvVar = "PERSONAL_ACCESS_TOKEN"
	// DirEnvVar is the name of the environment variable that holds the default target directory
	DirEnvVar = "REDEPLOY_DIR"
	// RemoteEnvVar is the name of the environment variable that holds the default git remote
	RemoteEnvVar = "REDEPLOY_REMOTE"
	// BranchEnvVar is the name of the environment variable that holds the default git branch
	BranchEnvVar = "REDEPLOY_BRANCH"
)

// Exit codes returned by the deploy command, one per terminal outcome.
const (
	ExitSuccess       = 0
	ExitSyncFailed    = 2
	ExitRebuildFailed = 3
	ExitBadDirectory  = 4
	ExitCancelled     = 5
	ExitLockHeld      = 6
	ExitVerifyFailed  = 7
)
