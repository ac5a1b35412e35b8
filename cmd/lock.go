package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/saverx/saverx/internal/config"
)

// InstanceLock wraps the file lock held by the serving instance.
type InstanceLock struct {
	flock *flock.Flock
	path  string
}

var instanceLock *InstanceLock

func lockPath() string {
	return filepath.Join(config.GetStateDir(), "saverx.lock")
}

// AcquireLock tries to become the serving instance.
// It returns false without an error when another process holds the lock.
func AcquireLock() (bool, error) {
	if err := config.EnsureDirs(); err != nil {
		return false, fmt.Errorf("failed to ensure config dirs: %w", err)
	}

	path := lockPath()
	fileLock := flock.New(path)

	locked, err := fileLock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock: %w", err)
	}
	if !locked {
		return false, nil
	}

	instanceLock = &InstanceLock{flock: fileLock, path: path}
	return true, nil
}

// ReleaseLock releases the lock if this process holds it.
func ReleaseLock() error {
	if instanceLock == nil || instanceLock.flock == nil {
		return nil
	}
	err := instanceLock.flock.Unlock()
	instanceLock = nil
	return err
}

// isInstanceRunning reports whether another process currently serves.
func isInstanceRunning() bool {
	fileLock := flock.New(lockPath())
	locked, err := fileLock.TryLock()
	if err != nil {
		return false
	}
	if locked {
		_ = fileLock.Unlock()
		return false
	}
	return true
}
