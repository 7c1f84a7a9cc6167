package storage

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	tempDir := t.TempDir()

	storage, err := NewLocalStorage(tempDir)
	require.NoError(t, err)
	require.NotNil(t, storage)
	require.Equal(t, tempDir, storage.basePath)

	_, err = os.Stat(tempDir)
	require.NoError(t, err, "Base directory should be created")
}

func TestLocalStorage_StagePromoteOpenDelete(t *testing.T) {
	tempDir := t.TempDir()
	storage, err := NewLocalStorage(tempDir)
	require.NoError(t, err)

	content := "Hello, world!"

	stagedName, size, err := storage.Stage(strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), size)
	require.True(t, strings.HasPrefix(stagedName, "."), "Staged files must be hidden from blob listings")

	// Staged files are not blobs yet
	names, err := storage.List()
	require.NoError(t, err)
	require.Empty(t, names)

	finalName := "abcdef0123456789abcdef01.png"
	err = storage.Promote(stagedName, finalName)
	require.NoError(t, err)

	_, err = os.Stat(storage.Path(stagedName))
	require.True(t, os.IsNotExist(err), "Staged file should be gone after promote")

	readCloser, err := storage.Open(finalName)
	require.NoError(t, err)
	retrieved, err := io.ReadAll(readCloser)
	require.NoError(t, err)
	readCloser.Close()
	require.Equal(t, content, string(retrieved))

	names, err = storage.List()
	require.NoError(t, err)
	require.Equal(t, []string{finalName}, names)

	err = storage.Delete(finalName)
	require.NoError(t, err)

	_, err = os.Stat(storage.Path(finalName))
	require.True(t, os.IsNotExist(err), "Blob should not exist after delete")
}

func TestLocalStorage_OpenNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	storage, err := NewLocalStorage(tempDir)
	require.NoError(t, err)

	_, err = storage.Open("non_existent_blob.png")
	require.Error(t, err)
}

func TestLocalStorage_DeleteNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	storage, err := NewLocalStorage(tempDir)
	require.NoError(t, err)

	err = storage.Delete("non_existent_blob.png")
	require.NoError(t, err)
}

func TestLocalStorage_Purge(t *testing.T) {
	tempDir := t.TempDir()
	storage, err := NewLocalStorage(tempDir)
	require.NoError(t, err)

	for _, name := range []string{"a.png", "b.mp3", "c.gif"} {
		staged, _, err := storage.Stage(strings.NewReader("data"))
		require.NoError(t, err)
		require.NoError(t, storage.Promote(staged, name))
	}

	removed, err := storage.Purge()
	require.NoError(t, err)
	require.Equal(t, int64(3), removed)

	names, err := storage.List()
	require.NoError(t, err)
	require.Empty(t, names)

	// Purging empty storage succeeds and reports zero
	removed, err = storage.Purge()
	require.NoError(t, err)
	require.Equal(t, int64(0), removed)
}

func TestLocalStorage_PurgeSkipsStagedFiles(t *testing.T) {
	tempDir := t.TempDir()
	storage, err := NewLocalStorage(tempDir)
	require.NoError(t, err)

	stagedName, _, err := storage.Stage(strings.NewReader("in flight"))
	require.NoError(t, err)

	removed, err := storage.Purge()
	require.NoError(t, err)
	require.Equal(t, int64(0), removed)

	_, err = os.Stat(storage.Path(stagedName))
	require.NoError(t, err, "An in-flight staged upload must survive a purge")
}
