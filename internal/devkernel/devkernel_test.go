package devkernel_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srprism/srprism-batch/internal/align"
	"github.com/srprism/srprism-batch/internal/devkernel"
	"github.com/srprism/srprism-batch/internal/storage/local"
)

func TestLineSourceAdvanceStopsAtEOF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.txt")
	require.NoError(t, writeLines(path, 5))

	s := devkernel.NewLineSource(path)
	require.NoError(t, s.Open(context.Background(), 1))
	defer s.Close(context.Background())

	b, err := s.Advance(context.Background(), nil, 0, 0, 0, 3, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), b.Count)
	assert.False(t, s.Done())

	b, err = s.Advance(context.Background(), nil, 1, 1, b.EndQId(), 3, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.Count)
	assert.True(t, s.Done())
}

func TestKernelWritesOnePlaceholderLinePerRead(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	k := devkernel.Kernel{Conn: conn}
	b := &align.Batch{OID: 0, StartQID: 10, Count: 2, OutputName: "out-0"}

	res, err := k.AlignUnpaired(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, res.Continue)

	r, err := conn.Open(context.Background(), "out-0")
	require.NoError(t, err)
	defer r.Close()
	buf := make([]byte, 256)
	n, _ := r.Read(buf)
	assert.Equal(t, "10\tunmapped\n11\tunmapped\n", string(buf[:n]))
}

func writeLines(path string, n int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for i := 0; i < n; i++ {
		if _, err := f.WriteString("read\n"); err != nil {
			return err
		}
	}
	return nil
}
