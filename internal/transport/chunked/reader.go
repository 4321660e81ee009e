package chunked

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is wrapped by every framing error of the chunked reader.
var ErrMalformed = errors.New("malformed chunked encoding")

const maxChunkLine = 4096

// NewChunkedReader decodes a chunked body from r. once the terminal
// zero-size chunk is read, readTrailer is called to consume the trailer
// section (it must read up to and including the final empty line); if
// readTrailer is nil the trailer section is expected to be empty.
func NewChunkedReader(r io.Reader, readTrailer func(*bufio.Reader) error) io.Reader {
	var br *bufio.Reader
	if v, ok := r.(*bufio.Reader); ok {
		br = v
	} else {
		br = bufio.NewReader(r)
	}
	return &chunkedReader{Reader: br, readTrailer: readTrailer}
}

type chunkedReader struct {
	*bufio.Reader
	readTrailer func(*bufio.Reader) error

	currentChunk                   io.Reader
	currentCount, currentChunkSize int64
	err                            error // sticky
}

func (c *chunkedReader) readLine() ([]byte, error) {
	line, err := c.ReadSlice('\n')
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		} else if err == bufio.ErrBufferFull {
			err = fmt.Errorf("%w: chunk line too long", ErrMalformed)
		}
		return nil, err
	}
	if len(line) > maxChunkLine {
		return nil, fmt.Errorf("%w: chunk line too long", ErrMalformed)
	}
	return bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'}), nil
}

// readChunkHeader parses "1*HEXDIG *WS [ ; ext ]", extensions are ignored
func (c *chunkedReader) readChunkHeader() (size uint64, err error) {
	line, err := c.readLine()
	if err != nil {
		return 0, err
	}
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimRight(line, " \t")
	if len(line) == 0 {
		return 0, fmt.Errorf("%w: empty chunk size", ErrMalformed)
	}
	if len(line) > 16 {
		return 0, fmt.Errorf("%w: http chunk length too large", ErrMalformed)
	}
	for _, b := range line {
		switch {
		case '0' <= b && b <= '9':
			b = b - '0'
		case 'a' <= b && b <= 'f':
			b = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			b = b - 'A' + 10
		default:
			return 0, fmt.Errorf("%w: invalid byte in chunk length", ErrMalformed)
		}
		size <<= 4
		size |= uint64(b)
	}
	if size > 1<<62 {
		return 0, fmt.Errorf("%w: http chunk length too large", ErrMalformed)
	}
	return size, nil
}

func (c *chunkedReader) finish() error {
	if c.readTrailer != nil {
		return c.readTrailer(c.Reader)
	}
	line, err := c.readLine()
	if err != nil {
		return err
	}
	if len(line) != 0 {
		return fmt.Errorf("%w: unexpected trailer", ErrMalformed)
	}
	return nil
}

func (c *chunkedReader) Read(p []byte) (n int, err error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err = c.read(p)
	if err != nil {
		c.err = err
	}
	return n, err
}

func (c *chunkedReader) read(p []byte) (n int, err error) {
	if c.currentChunk == nil {
		l, err := c.readChunkHeader()
		if err != nil {
			return 0, err
		}
		if l == 0 {
			if err := c.finish(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		c.currentChunk = io.LimitReader(c.Reader, int64(l))
		c.currentChunkSize = int64(l)
	}
	n, err = c.currentChunk.Read(p)
	c.currentCount += int64(n)
	if err != nil && err != io.EOF {
		return n, err
	}
	if err == io.EOF || c.currentCount == c.currentChunkSize {
		if c.currentCount != c.currentChunkSize {
			return n, io.ErrUnexpectedEOF
		}
		err = nil
		dr, rerr := c.Reader.ReadByte()
		dn, rerr2 := c.Reader.ReadByte()
		if rerr == nil {
			rerr = rerr2
		}
		if rerr != nil {
			if rerr == io.EOF {
				rerr = io.ErrUnexpectedEOF
			}
			return n, rerr
		}
		if dr != '\r' || dn != '\n' {
			return n, fmt.Errorf("%w: missing CRLF after chunk data", ErrMalformed)
		}
		c.currentChunk = nil
		c.currentCount = 0
	}
	return
}
