package chunked

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/stretchr/testify/require"
)

func TestRoundTripRandomBoundaries(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	payload := make([]byte, 64<<10)
	rnd.Read(payload)

	var wire bytes.Buffer
	w := NewChunkedWriter(&wire)
	for rest := payload; len(rest) > 0; {
		n := 1 + rnd.Intn(5000)
		if n > len(rest) {
			n = len(rest)
		}
		_, err := w.Write(rest[:n])
		require.NoError(t, err)
		rest = rest[n:]
	}
	require.NoError(t, w.CloseWithTrailer(nil))

	// decoding must not depend on how the stream is split on reads
	r := NewChunkedReader(iotest.OneByteReader(&wire), nil)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriterSkipsEmptyWrites(t *testing.T) {
	var wire bytes.Buffer
	w := NewChunkedWriter(&wire)
	n, err := w.Write(nil)
	require.NoError(t, err)
	require.Zero(t, n)
	w.Write([]byte("abc"))
	require.NoError(t, w.CloseWithTrailer(http.NewHeader("X-A", "1")))
	require.Equal(t, "3\r\nabc\r\n0\r\nX-A: 1\r\n\r\n", wire.String())
}

func TestReaderTrailerCallback(t *testing.T) {
	var trailer string
	r := NewChunkedReader(strings.NewReader("2\r\nok\r\n0\r\nX-A: 1\r\n\r\n"), func(br *bufio.Reader) error {
		line, err := br.ReadString('\n')
		trailer = line
		if err != nil {
			return err
		}
		_, err = br.ReadString('\n')
		return err
	})
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "ok", string(b))
	require.Equal(t, "X-A: 1\r\n", trailer)
}

func TestReaderExtensionsIgnored(t *testing.T) {
	r := NewChunkedReader(strings.NewReader("4;a=b;c\r\nwiki\r\n5 ; x\r\npedia\r\n0;end\r\n\r\n"), nil)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "wikipedia", string(b))
}

func TestReaderMalformed(t *testing.T) {
	for name, raw := range map[string]string{
		"NotHex":         "zz\r\nabc\r\n0\r\n\r\n",
		"EmptySize":      "\r\nabc\r\n0\r\n\r\n",
		"TooLong":        "11111111111111111\r\n",
		"MissingCRLF":    "3\r\nabcX\r\n0\r\n\r\n",
		"BareLF":         "3\r\nabc\n0\r\n\r\n",
		"UnexpectedTail": "0\r\nX-A: 1\r\n\r\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := io.ReadAll(NewChunkedReader(strings.NewReader(raw), nil))
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestReaderTruncated(t *testing.T) {
	for _, raw := range []string{"5\r\nhel", "5\r\nhello", "5\r\nhello\r\n", "5"} {
		_, err := io.ReadAll(NewChunkedReader(strings.NewReader(raw), nil))
		require.ErrorIs(t, err, io.ErrUnexpectedEOF, "%q", raw)
	}
}

func TestReaderErrorIsSticky(t *testing.T) {
	r := NewChunkedReader(strings.NewReader("zz\r\n"), nil)
	_, err := r.Read(make([]byte, 8))
	require.Error(t, err)
	_, again := r.Read(make([]byte, 8))
	require.True(t, errors.Is(again, ErrMalformed))
}

// script hands out one step per Read.
type script []struct {
	data string
	err  error
}

func (s *script) Read(p []byte) (int, error) {
	if len(*s) == 0 {
		return 0, io.EOF
	}
	step := (*s)[0]
	*s = (*s)[1:]
	return copy(p, step.data), step.err
}

func TestReaderKeepsErrorAtChunkEnd(t *testing.T) {
	boom := errors.New("connection reset")
	src := &script{
		{"20\r\n", nil},
		{strings.Repeat("x", 32), boom},
	}
	// a buffer smaller than the chunk makes bufio read straight into p
	r := NewChunkedReader(bufio.NewReaderSize(src, 16), nil)
	n, err := r.Read(make([]byte, 64))
	require.Equal(t, 32, n)
	require.ErrorIs(t, err, boom)
	_, err = r.Read(make([]byte, 64))
	require.ErrorIs(t, err, boom)
}
