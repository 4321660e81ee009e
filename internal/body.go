package internal

import (
	"context"
	"io"

	"github.com/frankli0324/go-h1client/internal/http"
)

// body hands the connection back once the response body was consumed.
type body struct {
	l      *lease
	ctx    context.Context
	r      io.Reader
	err    error // sticky, set once the lease was released
	closed bool
}

func newBody(ctx context.Context, l *lease, r io.ReadCloser) io.ReadCloser {
	if r == http.NoBody {
		l.release(nil)
		return http.NoBody
	}
	return &body{l: l, ctx: ctx, r: r}
}

func (b *body) Read(p []byte) (int, error) {
	if b.closed {
		return 0, http.ErrBodyReadAfterClose
	}
	if b.err != nil {
		return 0, b.err
	}
	b.l.readDeadline()
	n, err := b.r.Read(p)
	b.l.bytes += int64(n)
	switch {
	case err == io.EOF:
		b.err = io.EOF
		b.l.release(nil)
	case err != nil:
		b.err = b.l.fail(b.ctx, err)
	}
	return n, b.err
}

// Close drains what's left of a small body so that the connection could be
// reused, larger bodies cost the connection.
func (b *body) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.err != nil {
		return nil
	}
	b.err = io.EOF
	conn := b.l.conn
	if !conn.Reusable() {
		b.l.release(nil)
		return nil
	}
	b.l.readDeadline()
	n, err := io.CopyN(io.Discard, b.r, b.l.x.c.opts.MaxDrainBytes+1)
	b.l.bytes += n
	if err != io.EOF {
		// too large to drain, or broken
		conn.MarkUnreusable()
	}
	b.l.release(nil)
	return nil
}
