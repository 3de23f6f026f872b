package collator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srprism/srprism-batch/internal/collator"
	"github.com/srprism/srprism-batch/internal/storage/local"
)

func TestAppendConcatenatesInCallOrder(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	for i, content := range []string{"AAA\n", "BBB\n", "CCC\n"} {
		w, err := conn.Create(context.Background(), batchName(i))
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	c, err := collator.Open(context.Background(), conn, "final.sam")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Append(context.Background(), batchName(i)))
	}
	require.NoError(t, c.Close())

	r, err := conn.Open(context.Background(), "final.sam")
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	assert.Equal(t, "AAA\nBBB\nCCC\n", string(buf[:n]))
}

func batchName(oid int) string {
	return "outsam-" + string(rune('0'+oid))
}
