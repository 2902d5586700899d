// Package atomicfile writes small state files so that a crash at any point
// leaves either the old or the new contents on disk, never a torn file.
//
// Write sequence for path P:
//
//	P-*.tmp  <- new bytes, fsync, close
//	P.bak    <- copy of current P (via its own temp + rename)
//	P        <- rename(P-*.tmp)
//
// Only one backup generation is retained.
package atomicfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BackupSuffix is appended to the target path to form the backup path.
const BackupSuffix = ".bak"

// ErrNoFile is returned by Read when neither the file nor its backup exist.
var ErrNoFile = errors.New("atomicfile: file does not exist")

// renameFile is swapped out in tests to simulate a crash before the final
// rename.
var renameFile = os.Rename

// BackupPath returns the backup path for path.
func BackupPath(path string) string { return path + BackupSuffix }

// Write replaces path with data using the temp/backup/rename sequence.
func Write(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpName, err := writeTemp(dir, filepath.Base(path), data, perm)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if err = backup(path, perm); err != nil {
		return err
	}

	if err = renameFile(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteJSON marshals v with indentation and writes it with Write.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return Write(path, data, 0o644)
}

// Read returns the contents of path. When path is missing or decode rejects
// it, the backup is tried instead; fromBackup reports which one was used.
// decode may be nil to accept any bytes.
func Read(path string, decode func([]byte) error) (data []byte, fromBackup bool, err error) {
	data, primaryErr := readChecked(path, decode)
	if primaryErr == nil {
		return data, false, nil
	}

	data, backupErr := readChecked(BackupPath(path), decode)
	if backupErr == nil {
		return data, true, nil
	}

	if errors.Is(primaryErr, os.ErrNotExist) && errors.Is(backupErr, os.ErrNotExist) {
		return nil, false, ErrNoFile
	}
	if errors.Is(primaryErr, os.ErrNotExist) {
		return nil, false, fmt.Errorf("read backup: %w", backupErr)
	}
	return nil, false, primaryErr
}

// Copy streams the current contents of path to w.
func Copy(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoFile
		}
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func readChecked(path string, decode func([]byte) error) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if decode != nil {
		if err := decode(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	}
	return data, nil
}

func writeTemp(dir, base string, data []byte, perm os.FileMode) (string, error) {
	tmp, err := os.CreateTemp(dir, base+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	return name, nil
}

// backup copies the current target over the previous backup. A missing
// target is not an error: there is nothing to preserve yet.
func backup(path string, perm os.FileMode) error {
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read current file for backup: %w", err)
	}
	dir := filepath.Dir(path)
	tmpName, err := writeTemp(dir, filepath.Base(BackupPath(path)), src, perm)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := os.Rename(tmpName, BackupPath(path)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}
