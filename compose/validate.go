package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyInput means the compose file had no content.
	ErrEmptyInput = errors.New("compose file is empty")
	// ErrInvalidYAML means the compose file is not valid YAML.
	ErrInvalidYAML = errors.New("invalid YAML syntax")
	// ErrNoServices means the compose file defines nothing to rebuild.
	ErrNoServices = errors.New("compose file must define at least one service")
)

// DefaultFiles are the file names compose looks for when none is given,
// in lookup order.
var DefaultFiles = []string{
	"compose.yaml", "compose.yml", "docker-compose.yaml", "docker-compose.yml",
}

// ValidateFile parses the compose file at path and reports whether a rebuild
// has any chance of succeeding. Cheap to run before the toolchain is invoked.
func ValidateFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading compose file: %w", err)
	}
	return Validate(string(content))
}

// Validate parses compose YAML content using compose-go.
func Validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyInput
	}

	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(content), &dict); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if dict == nil {
		return ErrInvalidYAML
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(content),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("redeploy-validate", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// The file is validated in isolation, not resolved against the host.
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	if len(project.Services) == 0 {
		return ErrNoServices
	}
	return nil
}

// FindFile returns the compose file compose itself would pick in dir, or ""
// if none of the default names exist (compose will then fail on its own).
func FindFile(dir string) string {
	for _, name := range DefaultFiles {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
