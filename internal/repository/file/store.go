// Package file implements the local JSON persistence layer for staples,
// tokens, proposals and the sent-items ledger. Writes are atomic
// (temp file + rename) and files carry restrictive permission bits since
// the token store holds credentials.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrPersistence marks a failed durable read or write. Callers must treat it
// as fatal for the current operation: an unrecorded success is the one state
// that can cause future double-sends.
var ErrPersistence = errors.New("persistence failure")

// ErrNotFound is returned when a named list or staple does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating something whose name is already taken.
var ErrExists = errors.New("already exists")

// readJSON loads path into v. It reports false with a nil error when the
// file does not exist yet.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w: %w", path, ErrPersistence, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w: %w", path, ErrPersistence, err)
	}
	return true, nil
}

// writeJSONAtomic writes v to path via a temp file in the same directory,
// fsyncs, then renames over the destination.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create data dir: %w: %w", ErrPersistence, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w: %w", path, ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w: %w", ErrPersistence, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w: %w", ErrPersistence, err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w: %w", path, ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync %s: %w: %w", path, ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w: %w", path, ErrPersistence, err)
	}
	return nil
}
