// Package local_test tests the local archive directory.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "archive")
		_, err := local.New(dir)
		require.NoError(t, err)
		require.DirExists(t, dir)
	})
	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(" ")
		require.Error(t, err)
	})
	t.Run("BaseDirIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(file)
		require.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dir, err := local.New(base)
	require.NoError(t, err)

	uri, err := dir.PutObject(context.Background(), "run-1/acme.csv", "text/csv", strings.NewReader("name\nJane\n"))
	require.NoError(t, err)
	want := filepath.Join(base, "run-1", "acme.csv")
	require.Equal(t, "file://"+want, uri)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	require.Equal(t, "name\nJane\n", string(data))
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	dir, err := local.New(t.TempDir())
	require.NoError(t, err)

	_, err = dir.PutObject(context.Background(), "../escape.csv", "", strings.NewReader("x"))
	require.ErrorContains(t, err, "path traversal")
	_, err = dir.PutObject(context.Background(), "", "", strings.NewReader("x"))
	require.Error(t, err)
}
