package internal_test

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/frankli0324/go-h1client/internal"
	"github.com/frankli0324/go-h1client/internal/dialer"
	"github.com/frankli0324/go-h1client/internal/events"
	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/frankli0324/go-h1client/internal/transport"
	"github.com/stretchr/testify/require"
)

// fakeDialer connects every Dial to an in-memory peer running serve.
type fakeDialer struct {
	dials atomic.Int32
	serve func(conn net.Conn)
}

func (d *fakeDialer) Dial(ctx context.Context, ep http.Endpoint) (net.Conn, error) {
	d.dials.Add(1)
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		d.serve(server)
	}()
	return client, nil
}

func (d *fakeDialer) Unwrap() dialer.Dialer {
	return nil
}

func (d *fakeDialer) Dials() int {
	return int(d.dials.Load())
}

// received is a request as seen by the peer.
type received struct {
	raw  []byte
	req  *http.Request
	body []byte
}

// keepAlive serves requests on a connection until the client goes away,
// answering each one with what respond returns. a nil got is fine.
func keepAlive(got chan<- received, respond func(req *http.Request) string) func(net.Conn) {
	return serveN(got, -1, respond)
}

// serveN is keepAlive for at most n requests, n < 0 means no limit.
func serveN(got chan<- received, n int, respond func(req *http.Request) string) func(net.Conn) {
	return func(conn net.Conn) {
		var raw bytes.Buffer
		br := bufio.NewReader(io.TeeReader(conn, &raw))
		for left := n; left != 0; left-- {
			req, err := transport.ReadRequest(br)
			if err != nil {
				return
			}
			var body []byte
			if r, ok := req.Body.(io.Reader); ok {
				if body, err = io.ReadAll(r); err != nil {
					return
				}
			}
			if got != nil {
				got <- received{append([]byte(nil), raw.Bytes()...), req, body}
			}
			raw.Reset()
			if _, err := io.WriteString(conn, respond(req)); err != nil {
				return
			}
		}
	}
}

// blackhole reads requests and never answers.
func blackhole(conn net.Conn) {
	io.Copy(io.Discard, conn)
}

func reply(resp string) func(*http.Request) string {
	return func(*http.Request) string { return resp }
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, opts internal.Options, d dialer.Dialer) *internal.Client {
	t.Helper()
	c, err := internal.NewClient(opts)
	require.NoError(t, err)
	c.UseDialer(d)
	t.Cleanup(func() { c.Close() })
	return c
}

// sendSingleRequest sends req over a fresh client and returns the bytes the
// peer received.
func sendSingleRequest(t *testing.T, req *http.Request) []byte {
	t.Helper()
	got := make(chan received, 1)
	d := &fakeDialer{serve: keepAlive(got, reply("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))}
	c := newTestClient(t, internal.DefaultOptions(), d)
	resp, err := c.CtxDo(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return (<-got).raw
}
