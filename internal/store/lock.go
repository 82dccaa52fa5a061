package store

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockDataDir takes an exclusive lock so two engines never share one
// database. Release with Unlock.
func LockDataDir(dataDir string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(dataDir, "engine.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data dir: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("data dir %s is in use by another engine", dataDir)
	}
	return fl, nil
}
