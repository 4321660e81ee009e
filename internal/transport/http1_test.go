package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/stretchr/testify/require"
)

func prepare(t *testing.T, r *http.Request) *http.PreparedRequest {
	t.Helper()
	pr, err := r.Prepare()
	require.NoError(t, err)
	return pr
}

func readResponse(t *testing.T, raw string, req *http.Request) (*http.Response, error) {
	t.Helper()
	if req == nil {
		req = &http.Request{URL: "http://example.test/"}
	}
	resp := &http.Response{}
	err := HTTP1{}.Read(bufio.NewReader(strings.NewReader(raw)), prepare(t, req), resp)
	return resp, err
}

func TestRoundTripRequest(t *testing.T) {
	req := &http.Request{
		Method:  "PATCH",
		URL:     "http://example.test:8080/a/b?c=d",
		Header:  http.NewHeader("X-B", "2", "x-a", "1"),
		Body:    iotest.HalfReader(strings.NewReader("streamed body")),
		Trailer: http.NewHeader("X-Done", "yes"),
	}
	var buf bytes.Buffer
	require.NoError(t, HTTP1{}.Write(&buf, prepare(t, req)))

	got, err := ReadRequest(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, "PATCH", got.Method)
	require.Equal(t, "/a/b?c=d", got.URL)
	require.Equal(t, http.Header{
		{Name: "Host", Value: "example.test:8080"},
		{Name: "X-B", Value: "2"},
		{Name: "x-a", Value: "1"},
		{Name: "Transfer-Encoding", Value: "chunked"},
		{Name: "Trailer", Value: "X-Done"},
	}, got.Header)
	body, err := io.ReadAll(got.Body.(io.Reader))
	require.NoError(t, err)
	require.Equal(t, "streamed body", string(body))
	require.Equal(t, "yes", got.Trailer.Get("X-Done"))
}

func TestWriteShortBody(t *testing.T) {
	req := &http.Request{
		Method: "PUT",
		URL:    "http://example.test/",
		Header: http.NewHeader("Content-Length", "10"),
		Body:   iotest.OneByteReader(strings.NewReader("short")),
	}
	err := HTTP1{}.Write(io.Discard, prepare(t, req))
	require.ErrorIs(t, err, http.ErrBodyShorterThanSize)
}

func TestWriteBodyError(t *testing.T) {
	boom := errors.New("boom")
	req := &http.Request{Method: "PUT", URL: "http://example.test/", Body: iotest.ErrReader(boom)}
	err := HTTP1{}.Write(io.Discard, prepare(t, req))
	require.ErrorIs(t, err, boom)
}

func TestReadFixedLength(t *testing.T) {
	resp, err := readResponse(t, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nX-A: 1\r\n\r\nhelloEXTRA", nil)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "OK", resp.Reason)
	require.Equal(t, "HTTP/1.1", resp.Proto)
	require.Equal(t, int64(5), resp.ContentLength)
	require.False(t, resp.Close)
	require.Equal(t, "1", resp.Header.Get("x-a"))
	require.NoError(t, iotest.TestReader(resp.Body, []byte("hello")))
}

func TestReadChunked(t *testing.T) {
	resp, err := readResponse(t, "HTTP/1.1 200 OK\r\nTransfer-Encoding: gzip, chunked\r\nContent-Length: 99\r\n\r\n"+
		"3;name=value\r\nabc\r\n1 \r\nd\r\n0\r\nX-Tail: 1\r\nX-Tail: 2\r\n\r\n", nil)
	require.NoError(t, err)
	require.True(t, resp.Chunked)
	require.Equal(t, int64(-1), resp.ContentLength, "transfer-encoding wins over content-length")
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(b))
	require.Equal(t, []string{"1", "2"}, resp.Trailer.Values("X-Tail"))
}

func TestReadCloseDelimited(t *testing.T) {
	for name, raw := range map[string]string{
		"NoFraming":       "HTTP/1.1 200 OK\r\n\r\nall of it",
		"UnknownEncoding": "HTTP/1.1 200 OK\r\nTransfer-Encoding: gzip\r\n\r\nall of it",
		"HTTP10":          "HTTP/1.0 200 OK\r\n\r\nall of it",
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := readResponse(t, raw, nil)
			require.NoError(t, err)
			require.True(t, resp.Close)
			b, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, "all of it", string(b))
		})
	}
}

func TestReadConnectionHeaders(t *testing.T) {
	resp, err := readResponse(t, "HTTP/1.0 200 OK\r\nConnection: keep-alive\r\nContent-Length: 0\r\n\r\n", nil)
	require.NoError(t, err)
	require.False(t, resp.Close)

	resp, err = readResponse(t, "HTTP/1.1 200 OK\r\nConnection: Close\r\nContent-Length: 0\r\n\r\n", nil)
	require.NoError(t, err)
	require.True(t, resp.Close)

	req := &http.Request{URL: "http://example.test/", Header: http.NewHeader("Connection", "close")}
	resp, err = readResponse(t, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n", req)
	require.NoError(t, err)
	require.True(t, resp.Close)
}

func TestReadNoBody(t *testing.T) {
	head := &http.Request{Method: "HEAD", URL: "http://example.test/"}
	for name, c := range map[string]struct {
		raw string
		req *http.Request
	}{
		"HEAD": {"HTTP/1.1 200 OK\r\nContent-Length: 42\r\n\r\n", head},
		"204":  {"HTTP/1.1 204 No Content\r\n\r\n", nil},
		"304":  {"HTTP/1.1 304 Not Modified\r\nContent-Length: 42\r\n\r\n", nil},
		"100":  {"HTTP/1.1 100 Continue\r\n\r\n", nil},
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := readResponse(t, c.raw, c.req)
			require.NoError(t, err)
			require.Equal(t, http.NoBody, resp.Body)
		})
	}
}

func TestReadMalformed(t *testing.T) {
	for name, raw := range map[string]string{
		"Garbage":         "garbage\r\n\r\n",
		"ShortStatus":     "HTTP/1.1 20 OK\r\n\r\n",
		"Version":         "HTTP/1.x 200 OK\r\n\r\n",
		"HTTP2":           "HTTP/2.0 200 OK\r\n\r\n",
		"HeaderName":      "HTTP/1.1 200 OK\r\nBad Name: 1\r\n\r\n",
		"NoColon":         "HTTP/1.1 200 OK\r\nNoColon\r\n\r\n",
		"Folding":         "HTTP/1.1 200 OK\r\nA: 1\r\n\t2\r\n\r\n",
		"DupLength":       "HTTP/1.1 200 OK\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\n",
		"BadLength":       "HTTP/1.1 200 OK\r\nContent-Length: -1\r\n\r\n",
		"TruncatedHeader": "HTTP/1.1 200 OK\r\nA: 1\r\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := readResponse(t, raw, nil)
			require.True(t, IsProtocolError(err), "got %v", err)
		})
	}
}

func TestReadSameContentLengthTwice(t *testing.T) {
	resp, err := readResponse(t, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nContent-Length: 2\r\n\r\nok", nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), resp.ContentLength)
}

func TestReadEmptyResponse(t *testing.T) {
	_, err := readResponse(t, "", nil)
	require.ErrorIs(t, err, ErrEmptyResponse)
	require.True(t, IsProtocolError(err))

	_, err = readResponse(t, "HTTP/1.1 2", nil)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadHeaderTooLarge(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nX-Big: " + strings.Repeat("a", 1024) + "\r\n\r\n"
	resp := &http.Response{}
	err := HTTP1{MaxHeaderBytes: 512}.Read(bufio.NewReader(strings.NewReader(raw)),
		prepare(t, &http.Request{URL: "http://example.test/"}), resp)
	require.ErrorIs(t, err, errHeaderTooLarge)
	require.True(t, IsProtocolError(err))
}

func TestReadTruncatedBody(t *testing.T) {
	resp, err := readResponse(t, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nhello", nil)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.Equal(t, "hello", string(b))
	require.True(t, IsProtocolError(err))

	resp, err = readResponse(t, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhel", nil)
	require.NoError(t, err)
	b, err = io.ReadAll(resp.Body)
	require.Equal(t, "hel", string(b))
	require.True(t, IsProtocolError(err))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadOrderPreserved(t *testing.T) {
	resp, err := readResponse(t, "HTTP/1.1 200 OK\r\nB: 1\r\na: 2\r\nb: 3\r\nContent-Length: 0\r\n\r\n", nil)
	require.NoError(t, err)
	require.Equal(t, http.Header{{Name: "B", Value: "1"}, {Name: "a", Value: "2"}, {Name: "b", Value: "3"}, {Name: "Content-Length", Value: "0"}}, resp.Header)
	require.Equal(t, []string{"1", "3"}, resp.Header.Values("b"))
}
