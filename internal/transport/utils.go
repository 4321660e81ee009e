package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/textproto"

	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/frankli0324/go-h1client/internal/transport/chunked"
	"golang.org/x/net/http/httpguts"
)

// ProtocolError reports a message that violates HTTP/1.1 framing. the
// connection it was read from must not be reused.
type ProtocolError struct {
	What string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "malformed " + e.What + ": " + e.Err.Error()
	}
	return "malformed " + e.What
}

func (e *ProtocolError) Unwrap() error { return e.Err }

var (
	// ErrEmptyResponse is wrapped when the peer closed the stream before
	// sending a single byte of the response, which is what a stale pooled
	// connection looks like.
	ErrEmptyResponse  = errors.New("connection closed before response")
	errHeaderTooLarge = errors.New("message head too large")
	errLineFolding    = errors.New("obsolete line folding")
)

const DefaultMaxHeaderBytes = 1 << 20

// headReader reads CRLF terminated lines of a message head while keeping
// count of the bytes consumed.
type headReader struct {
	br        *bufio.Reader
	remaining int
	read      int
}

func newHeadReader(br *bufio.Reader, max int) *headReader {
	if max <= 0 {
		max = DefaultMaxHeaderBytes
	}
	return &headReader{br: br, remaining: max}
}

func (h *headReader) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := h.br.ReadSlice('\n')
		h.read += len(frag)
		h.remaining -= len(frag)
		if h.remaining < 0 {
			return nil, errHeaderTooLarge
		}
		if err == nil {
			if line == nil {
				line = frag
			} else {
				line = append(line, frag...)
			}
			break
		}
		if err != bufio.ErrBufferFull {
			if err == io.EOF && h.read > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = append(line, frag...)
	}
	line = bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'})
	return line, nil
}

// readHeader reads header fields until the empty line, keeping order.
func (h *headReader) readHeader(what string) (http.Header, error) {
	hdr := http.Header{}
	for {
		line, err := h.readLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, wrapProto(what, err)
		}
		if len(line) == 0 {
			return hdr, nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			return nil, &ProtocolError{what, errLineFolding}
		}
		i := bytes.IndexByte(line, ':')
		if i <= 0 {
			return nil, &ProtocolError{What: what + " line " + quote(line)}
		}
		name := string(line[:i])
		value := textproto.TrimString(string(line[i+1:]))
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return nil, &ProtocolError{What: what + " line " + quote(line)}
		}
		hdr.Add(name, value)
	}
}

// wrapProto turns framing and truncation errors into a *ProtocolError,
// leaving network errors such as timeouts untouched.
func wrapProto(what string, err error) error {
	var pe *ProtocolError
	switch {
	case err == nil, err == io.EOF, errors.As(err, &pe):
		return err
	case err == io.ErrUnexpectedEOF, errors.Is(err, errHeaderTooLarge), errors.Is(err, chunked.ErrMalformed):
		return &ProtocolError{what, err}
	}
	return err
}

// protoReader applies [wrapProto] to every read of a body.
type protoReader struct {
	r    io.Reader
	what string
}

func (p protoReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	return n, wrapProto(p.what, err)
}

// fixedReader reads exactly n bytes, a short stream is a framing error.
type fixedReader struct {
	r io.Reader
	n int64
}

func (f *fixedReader) Read(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > f.n {
		p = p[:f.n]
	}
	n, err := f.r.Read(p)
	f.n -= int64(n)
	if f.n == 0 {
		return n, io.EOF
	}
	if err == io.EOF {
		err = &ProtocolError{"body", io.ErrUnexpectedEOF}
	}
	return n, err
}

func quote(b []byte) string {
	if len(b) > 64 {
		b = b[:64]
	}
	return "\"" + string(b) + "\""
}
