package archive

import (
	"bytes"
	"context"
	"io"

	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/pkg/errors"
)

// classifyRead maps a decoding failure to vfs.ErrTruncatedStream. End of
// stream and cancellation are left alone.
func classifyRead(err error) error {
	switch {
	case err == nil, err == io.EOF:
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, vfs.ErrNotFound), errors.Is(err, vfs.ErrUnsupported), errors.Is(err, vfs.ErrCorruptArchive):
		return err
	}
	return vfs.Classify(vfs.ErrTruncatedStream, err)
}

// classifyBuild maps a tree construction failure to vfs.ErrCorruptArchive
// unless it already belongs to the taxonomy.
func classifyBuild(err error) error {
	for _, class := range []error{vfs.ErrCorruptArchive, vfs.ErrUnsupported, vfs.ErrNotFound, vfs.ErrTruncatedStream} {
		if errors.Is(err, class) {
			return err
		}
	}
	return vfs.Classify(vfs.ErrCorruptArchive, err)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// entryReader counts decoded bytes, turns decoding failures into
// vfs.ErrTruncatedStream and reports the full content once EOF is reached.
type entryReader struct {
	rc       io.ReadCloser
	path     string
	expected int64
	n        int64
	capture  *bytes.Buffer
	limit    int64
	done     bool
	onEOF    func(n int64, data []byte)
}

func (r *entryReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if n > 0 {
		r.n += int64(n)
		if r.capture != nil {
			if int64(r.capture.Len()+n) > r.limit {
				r.capture = nil
			} else {
				r.capture.Write(p[:n])
			}
		}
	}
	if err == io.EOF {
		if r.expected >= 0 && r.n < r.expected {
			return n, vfs.NewPathError("read", r.path, vfs.Classify(vfs.ErrTruncatedStream, io.ErrUnexpectedEOF))
		}
		if !r.done && r.onEOF != nil {
			r.done = true
			var data []byte
			if r.capture != nil {
				data = r.capture.Bytes()
			}
			r.onEOF(r.n, data)
		}
		return n, io.EOF
	}
	if err != nil {
		if isContextErr(err) {
			return n, err
		}
		return n, vfs.NewPathError("read", r.path, classifyRead(err))
	}
	return n, nil
}

func (r *entryReader) Close() error {
	return r.rc.Close()
}
