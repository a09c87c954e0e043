// Package snapshotfile handles reading and writing session snapshot files.
// A snapshot file stores the serialized icloud.SessionData — the complete
// credential state needed to resume a session without logging in again.
// This is a leaf package imported by the CLI; the core engine only hands
// out and accepts in-memory snapshots.
package snapshotfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tonimelisma/icloud-go/internal/icloud"
)

// FilePerms restricts snapshot files to owner-only read/write — they hold
// live session credentials.
const FilePerms = 0o600

// DirPerms is used when creating the snapshot directory.
const DirPerms = 0o700

// Load reads a saved snapshot from disk. Returns (nil, nil) if the file
// does not exist, so first runs start with a fresh session.
func Load(path string) (*icloud.SessionData, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("snapshotfile: reading %s: %w", path, err)
	}

	var snap icloud.SessionData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshotfile: decoding %s: %w", path, err)
	}

	if snap.OAuthState == "" {
		return nil, fmt.Errorf("snapshotfile: %s missing oauth_state field (re-login required)", path)
	}

	return &snap, nil
}

// Save writes a snapshot to disk atomically (write-to-temp + rename) with
// 0600 permissions. Never logs snapshot contents.
func Save(path string, snap *icloud.SessionData) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshotfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("snapshotfile: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("snapshotfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	// Clean up temp file on any error path.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshotfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshotfile: writing: %w", err)
	}

	// Flush to stable storage before rename so a power loss between close
	// and rename cannot leave an empty or partial snapshot at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshotfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshotfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshotfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes a snapshot file. Removing a file that does not exist is
// not an error — logout is idempotent.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("snapshotfile: removing %s: %w", path, err)
	}

	return nil
}
