package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var ErrNotFound = errors.New("no stored record")

// FileStorage - a single durable record kept in one local file.
//
// Writes go through a temp file plus rename so a crash mid-write never
// leaves a half-written record behind.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (that *FileStorage) Read() ([]byte, error) {
	data, err := os.ReadFile(that.path)

	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", that.path, err)
	}

	return data, nil
}

func (that *FileStorage) Write(data []byte) error {
	dir := filepath.Dir(that.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(that.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), that.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", that.path, err)
	}

	return nil
}

func (that *FileStorage) Delete() error {
	err := os.Remove(that.path)

	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", that.path, err)
	}

	return nil
}
