package tempstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srprism/srprism-batch/internal/storage/local"
	"github.com/srprism/srprism-batch/internal/tempstore"
)

func TestRegisterIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	s := tempstore.New(conn)
	a := s.Register("outsam-0")
	b := s.Register("outsam-0")
	assert.Equal(t, a, b)
}

func TestCleanupRemovesRegisteredFiles(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	s := tempstore.New(conn)
	name := s.Register("outsam-0")

	w, err := conn.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, statErr := os.Stat(filepath.Join(dir, name))
	require.NoError(t, statErr)

	require.NoError(t, s.Cleanup(context.Background()))

	_, statErr = os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanupOnAbsentFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	s := tempstore.New(conn)
	s.Register("never-created")

	assert.NoError(t, s.Cleanup(context.Background()))
}
