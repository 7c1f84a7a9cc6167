package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage keeps every blob as a regular file directly under basePath,
// named "<asset id>.<ext>". Uploads are first staged under a unique temporary
// name and only renamed into place once their metadata record exists.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (ls *LocalStorage) Path(name string) string {
	return filepath.Join(ls.basePath, name)
}

// Stage writes the incoming stream to a temporary file in the storage
// directory and returns its name and the number of bytes written. The staged
// name starts with a dot so a purge or cleanup sweep never counts it as a
// stored blob.
func (ls *LocalStorage) Stage(data io.Reader) (string, int64, error) {
	stagedName := ".staged-" + uuid.NewString()

	file, err := os.Create(ls.Path(stagedName))
	if err != nil {
		return "", 0, err
	}

	written, err := io.Copy(file, data)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(ls.Path(stagedName))
		return "", 0, err
	}

	return stagedName, written, nil
}

// Promote renames a staged file to its final blob name. Rename within one
// directory is atomic, so a blob is either fully present or absent.
func (ls *LocalStorage) Promote(stagedName, finalName string) error {
	return os.Rename(ls.Path(stagedName), ls.Path(finalName))
}

func (ls *LocalStorage) Open(name string) (io.ReadCloser, error) {
	file, err := os.Open(ls.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s not found: %w", name, err)
		}
		return nil, err
	}

	return file, nil
}

func (ls *LocalStorage) Delete(name string) error {
	err := os.Remove(ls.Path(name))
	if os.IsNotExist(err) {
		return nil
	}

	return err
}

// List returns the names of all stored blobs, skipping staged files.
func (ls *LocalStorage) List() ([]string, error) {
	entries, err := os.ReadDir(ls.basePath)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// Purge removes every stored blob and reports how many were deleted.
// Purging an already empty directory succeeds with a zero count.
func (ls *LocalStorage) Purge() (int64, error) {
	names, err := ls.List()
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, name := range names {
		if err := os.Remove(ls.Path(name)); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}
