// Package gcs implements the Google Cloud Storage storage.Connection
// backend, selected when the Run Configuration sets storage_backend=gcs.
// Objects live under bucket/prefix; "removal on exit" means
// deleting the corresponding object.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/srprism/srprism-batch/internal/storage"
)

type connection struct {
	client *gcstorage.Client
	bucket string
	prefix string
}

var _ storage.Connection = (*connection)(nil)

// New dials a GCS client and returns a storage.Connection rooted at
// bucket/prefix. credentialsFile may be empty to use ambient
// (application-default) credentials.
func New(ctx context.Context, bucket, prefix, credentialsFile string) (storage.Connection, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs storage: bucket must be specified")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: failed to create client: %w", err)
	}
	return &connection{client: client, bucket: bucket, prefix: prefix}, nil
}

func (c *connection) object(name string) *gcstorage.ObjectHandle {
	return c.client.Bucket(c.bucket).Object(path.Join(c.prefix, name))
}

func (c *connection) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return c.object(name).NewWriter(ctx), nil
}

func (c *connection) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return c.object(name).NewReader(ctx)
}

// Append is not natively supported by GCS object writes, so the returned
// writer buffers in memory and, on Close, reads the existing object (if
// any) and rewrites it with the new bytes trailing. Nothing in this
// module calls Append: batches write their per-batch file via Create, and
// the Collator copies them into a final output it opened with Create.
func (c *connection) Append(ctx context.Context, name string) (io.WriteCloser, error) {
	return &appendWriter{ctx: ctx, conn: c, name: name}, nil
}

func (c *connection) Remove(ctx context.Context, name string) error {
	err := c.object(name).Delete(ctx)
	if err == gcstorage.ErrObjectNotExist {
		return nil
	}
	return err
}

func (c *connection) Name() string { return "gcs://" + c.bucket + "/" + c.prefix }

// appendWriter buffers writes in memory and performs a single
// read-modify-write against the object on Close, since GCS objects are
// immutable once finalized.
type appendWriter struct {
	ctx  context.Context
	conn *connection
	name string
	buf  []byte
}

func (w *appendWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *appendWriter) Close() error {
	existing, err := w.readExisting()
	if err != nil {
		return err
	}
	wr := w.conn.object(w.name).NewWriter(w.ctx)
	if _, err := wr.Write(existing); err != nil {
		wr.Close()
		return err
	}
	if _, err := wr.Write(w.buf); err != nil {
		wr.Close()
		return err
	}
	return wr.Close()
}

func (w *appendWriter) readExisting() ([]byte, error) {
	r, err := w.conn.object(w.name).NewReader(w.ctx)
	if err == gcstorage.ErrObjectNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
