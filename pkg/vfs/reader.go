package vfs

import (
	"context"
	"io"
)

type reader struct {
	ctx context.Context
	r   io.Reader
}

// ReaderContext returns a reader that fails with the context error as soon
// as ctx is done, checked on every Read.
func ReaderContext(ctx context.Context, r io.Reader) io.Reader {
	return reader{ctx, r}
}

func (r reader) Read(p []byte) (int, error) {
	err := r.ctx.Err()
	if err != nil {
		return 0, err
	}
	n, err := r.r.Read(p)
	if err != nil {
		return n, err
	}
	return n, r.ctx.Err()
}

type readCloser struct {
	io.Reader
	io.Closer
}

// ReadCloserContext is ReaderContext for a ReadCloser.
func ReadCloserContext(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	return readCloser{Reader: ReaderContext(ctx, rc), Closer: rc}
}
