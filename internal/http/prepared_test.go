package http

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrepareEndpoint(t *testing.T) {
	for url, ep := range map[string]Endpoint{
		"http://example.test:8080/a": {"http", "example.test", "8080"},
		"HTTP://example.test/":       {"http", "example.test", "80"},
		"https://example.test":       {"https", "example.test", "443"},
		"https://[::1]:8443/x":       {"https", "::1", "8443"},
	} {
		pr, err := (&Request{URL: url}).Prepare()
		require.NoError(t, err, url)
		require.Equal(t, ep, pr.Endpoint, url)
	}
	require.Equal(t, "[::1]:8443", Endpoint{"https", "::1", "8443"}.Addr())
	require.Equal(t, "http://example.test:80", Endpoint{"http", "example.test", "80"}.String())
}

func TestPrepareErrors(t *testing.T) {
	for name, c := range map[string]struct {
		req  *Request
		kind Kind
	}{
		"Scheme":          {&Request{URL: "ftp://example.test/"}, KindUnsupportedScheme},
		"URL":             {&Request{URL: "http://[::1"}, KindRequest},
		"EmptyHost":       {&Request{URL: "http:///a"}, KindRequest},
		"Method":          {&Request{Method: "GE T", URL: "http://example.test/"}, KindRequest},
		"Connect":         {&Request{Method: "CONNECT", URL: "http://example.test/"}, KindRequest},
		"HostHeader":      {&Request{URL: "http://example.test/", Header: NewHeader("Host", "bad host")}, KindRequest},
		"ContentLength":   {&Request{Method: "POST", URL: "http://example.test/", Header: NewHeader("Content-Length", "x")}, KindRequest},
		"LengthMismatch":  {&Request{Method: "POST", URL: "http://example.test/", Header: NewHeader("Content-Length", "1"), Body: "ab"}, KindRequest},
		"LengthNoBody":    {&Request{Method: "POST", URL: "http://example.test/", Header: NewHeader("Content-Length", "1")}, KindRequest},
		"TrailerName":     {&Request{Method: "POST", URL: "http://example.test/", Body: "a", Trailer: NewHeader("bad name", "1")}, KindRequest},
		"UnsupportedBody": {&Request{Method: "POST", URL: "http://example.test/", Body: 42}, KindRequest},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.req.Prepare()
			var e *Error
			require.ErrorAs(t, err, &e)
			require.Equal(t, c.kind, e.Kind)
			require.True(t, errors.Is(err, c.kind))
			require.Equal(t, PhaseResolving, e.Phase)
		})
	}
}

func TestPrepareBodies(t *testing.T) {
	buf := bytes.NewBufferString("buffer")
	for name, c := range map[string]struct {
		body       interface{}
		length     int64
		replayable bool
		content    string
	}{
		"Nil":           {nil, 0, true, ""},
		"String":        {"string", 6, true, "string"},
		"Bytes":         {[]byte("bytes"), 5, true, "bytes"},
		"Buffer":        {buf, 6, true, "buffer"},
		"BytesReader":   {bytes.NewReader([]byte("reader")), 6, true, "reader"},
		"StringsReader": {strings.NewReader("sreader"), 7, true, "sreader"},
		"Getter":        {func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("get")), nil }, -1, true, "get"},
		"Stream":        {io.MultiReader(strings.NewReader("stream")), -1, false, "stream"},
	} {
		t.Run(name, func(t *testing.T) {
			pr, err := (&Request{Method: "PUT", URL: "http://example.test/", Body: c.body}).Prepare()
			require.NoError(t, err)
			require.Equal(t, c.length, pr.ContentLength)
			require.Equal(t, c.replayable, pr.Replayable)
			require.Equal(t, c.replayable, pr.Idempotent())
			for i := 0; i < 2; i++ {
				rc, err := pr.GetBody()
				if !c.replayable && i == 1 {
					require.ErrorIs(t, err, ErrBodyReadAfterClose)
					break
				}
				require.NoError(t, err)
				b, _ := io.ReadAll(rc)
				require.Equal(t, c.content, string(b))
			}
		})
	}
}

func TestPrepareHeaders(t *testing.T) {
	pr, err := (&Request{
		Method: "POST",
		URL:    "http://example.test/",
		Header: NewHeader(
			"Content-Type", "a/b", "content-type", "c/d",
			"Transfer-Encoding", "chunked",
			"Content-Length", "3",
			"Connection", "keep-alive, close",
			"X-Multi", "1", "X-Multi", "2",
		),
		Body: "abc",
	}).Prepare()
	require.NoError(t, err)
	require.Equal(t, Header{{"Content-Type", "a/b"}, {"Connection", "keep-alive, close"}, {"X-Multi", "1"}, {"X-Multi", "2"}}, pr.Header)
	require.True(t, pr.ExplicitLength)
	require.True(t, pr.Close)
	require.Equal(t, int64(3), pr.ContentLength)
	require.Equal(t, "example.test", pr.HeaderHost)
}

func TestPrepareTrailerForcesChunked(t *testing.T) {
	pr, err := (&Request{Method: "PUT", URL: "http://example.test/", Body: "abc", Trailer: NewHeader("X-T", "1")}).Prepare()
	require.NoError(t, err)
	require.Equal(t, int64(-1), pr.ContentLength)

	pr, err = (&Request{
		Method: "PUT", URL: "http://example.test/", Body: "abc",
		Header: NewHeader("Content-Length", "3"), Trailer: NewHeader("X-T", "1"),
	}).Prepare()
	require.NoError(t, err)
	require.Equal(t, int64(3), pr.ContentLength)
}

func TestIdempotent(t *testing.T) {
	for method, want := range map[string]bool{
		"GET": true, "HEAD": true, "OPTIONS": true, "TRACE": true, "PUT": true, "DELETE": true,
		"POST": false, "PATCH": false,
	} {
		pr, err := (&Request{Method: method, URL: "http://example.test/"}).Prepare()
		require.NoError(t, err)
		require.Equal(t, want, pr.Idempotent(), method)
	}
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindTimeout, Endpoint: Endpoint{"http", "a.test", "80"}, Phase: PhaseReadingHeaders, Err: errors.New("slow")}
	require.Equal(t, "h1client: timeout http://a.test:80 while reading headers: slow", err.Error())
	require.ErrorIs(t, err, ErrTimeout)
	require.NotErrorIs(t, err, ErrConnect)
}
