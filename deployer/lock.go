package deployer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const lockFileName = ".redeploy.lock"

// lock is a per-directory lock file. Simultaneous rebuilds of the same
// service contend on ports and volumes, so overlapping runs are refused
// rather than queued.
type lock struct {
	path string
}

// acquire atomically creates the lock file in dir, recording our pid.
// A file that already exists means another run is in progress.
func acquire(dir string) (*lock, error) {
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s exists", ErrLockHeld, path)
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}
	fmt.Fprintln(f, strconv.Itoa(os.Getpid()))
	f.Close()
	return &lock{path: path}, nil
}

func (l *lock) release() {
	os.Remove(l.path)
}
