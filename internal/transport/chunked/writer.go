package chunked

import (
	"io"
	"strconv"

	"github.com/frankli0324/go-h1client/internal/http"
)

// NewChunkedWriter is taken from golang src/net/http/internal/chunked.go
func NewChunkedWriter(w io.Writer) *chunkedWriter {
	return &chunkedWriter{w, make([]byte, 0, 18)}
}

type chunkedWriter struct {
	Wire io.Writer
	head []byte
}

func (cw *chunkedWriter) Write(data []byte) (n int, err error) {

	// Don't send 0-length data. It looks like EOF for chunked encoding.
	if len(data) == 0 {
		return 0, nil
	}

	cw.head = strconv.AppendInt(cw.head[:0], int64(len(data)), 16)
	cw.head = append(cw.head, '\r', '\n')
	if _, err = cw.Wire.Write(cw.head); err != nil {
		return 0, err
	}
	if n, err = cw.Wire.Write(data); err != nil {
		return
	}
	if n != len(data) {
		err = io.ErrShortWrite
		return
	}
	if _, err = io.WriteString(cw.Wire, "\r\n"); err != nil {
		return
	}
	if f, ok := cw.Wire.(interface{ Flush() error }); ok {
		err = f.Flush()
	}
	return
}

// CloseWithTrailer writes the terminal chunk followed by the trailer
// fields and the final empty line. it does not close the underlying writer.
func (cw *chunkedWriter) CloseWithTrailer(trailer http.Header) error {
	buf := append(cw.head[:0], "0\r\n"...)
	for _, f := range trailer {
		buf = append(buf, f.Name...)
		buf = append(buf, ": "...)
		buf = append(buf, f.Value...)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "\r\n"...)
	cw.head = buf[:0]
	n, err := cw.Wire.Write(buf)
	if err == nil && n != len(buf) {
		return io.ErrShortWrite
	}
	if err == nil {
		if f, ok := cw.Wire.(interface{ Flush() error }); ok {
			err = f.Flush()
		}
	}
	return err
}
