package internal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/frankli0324/go-h1client/internal/events"
	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/frankli0324/go-h1client/internal/tlsbackend"
	"github.com/frankli0324/go-h1client/internal/transport"
	"github.com/frankli0324/go-h1client/utils/netpool"
	"github.com/google/uuid"
)

var (
	aLongTimeAgo = time.Unix(1, 0)

	errSwitchingProtocols = errors.New("unexpected 101 switching protocols")
	errTooManyInterim     = errors.New("too many 1xx informational responses")
)

// interim responses skipped before a final one
const maxInterimResponses = 5

// roundTrip sends one request and reads the response head. a reused
// connection that turns out to be closed by the peer is retried exactly
// once on a fresh connection, given the request is safe to send twice.
func (c *Client) roundTrip(ctx context.Context, pr *PreparedRequest) (*http.Response, error) {
	x := &exchange{c: c, pr: pr, id: uuid.NewString(), start: c.opts.Clock.Now()}
	x.emit(events.Event{Kind: events.RequestStart})

	resp, stale, err := x.attempt(ctx, false)
	if stale && pr.Idempotent() {
		x.emit(events.Event{Kind: events.RequestRetry, Err: err})
		resp, _, err = x.attempt(ctx, true)
	}
	if err != nil {
		x.emit(events.Event{Kind: events.RequestError, Err: err})
		return nil, err
	}
	return resp, nil
}

// exchange is one request/response pair, including its retry.
type exchange struct {
	c     *Client
	pr    *PreparedRequest
	id    string
	start time.Time
}

func (x *exchange) emit(e events.Event) {
	e.Endpoint = x.pr.Endpoint.String()
	e.RequestID = x.id
	e.Method, e.URL = x.pr.Method, x.pr.U.String()
	if e.Kind == events.RequestDone || e.Kind == events.RequestError {
		e.Duration = x.c.opts.Clock.Since(x.start)
	}
	x.c.emit(e)
}

// attempt runs the request once. stale reports whether the failure looks
// like a reused connection closed by the peer before it saw the request.
func (x *exchange) attempt(ctx context.Context, fresh bool) (resp *http.Response, stale bool, err error) {
	c, pr, ep := x.c, x.pr, x.pr.Endpoint

	// Connecting
	if err := ctx.Err(); err != nil {
		return nil, false, classify(ctx, ep, http.PhaseConnecting, err)
	}
	connect := c.pool.Connect
	if fresh {
		connect = c.pool.Dial
	}
	conn, err := connect(ctx, ep, func(ctx context.Context) (net.Conn, error) {
		return c.dial(ctx, ep)
	})
	if err != nil {
		return nil, false, classify(ctx, ep, http.PhaseConnecting, err)
	}
	reused := conn.Reused()
	if reused {
		x.emit(events.Event{Kind: events.ConnReused, ConnID: conn.ID()})
	} else {
		x.emit(events.Event{Kind: events.ConnCreated, ConnID: conn.ID()})
		if ep.TLS() && c.tlsOpts.DangerouslyDisableCertificateValidation {
			x.emit(events.Event{Kind: events.TLSInsecure, ConnID: conn.ID(), Reason: "certificate validation disabled"})
		}
	}
	l := x.lease(ctx, conn)

	// Writing
	if err := ctx.Err(); err != nil {
		l.destroy()
		return nil, false, classify(ctx, ep, http.PhaseWriting, err)
	}
	if c.opts.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	tw := &trackingWriter{w: conn}
	bw := bufio.NewWriter(tw)
	err = c.codec.Write(bw, pr)
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		l.destroy()
		if tw.err == nil {
			// the body source failed, the connection is fine but half
			// a request was written
			return nil, false, classifyAs(ctx, ep, http.PhaseWriting, err, http.KindRequest)
		}
		return nil, reused && peerGone(ctx, tw.err), classify(ctx, ep, http.PhaseWriting, tw.err)
	}
	conn.SetWriteDeadline(time.Time{})

	// ReadingHeaders
	br := conn.Reader()
	resp = &http.Response{Endpoint: ep, Request: pr.Request}
	interim := 0
	for {
		l.readDeadline()
		if err := c.codec.Read(br, pr, resp); err != nil {
			l.destroy()
			stale = reused && interim == 0 && resp.StatusCode == 0 && peerGone(ctx, err)
			return nil, stale, classify(ctx, ep, http.PhaseReadingHeaders, err)
		}
		if resp.StatusCode == 101 {
			l.destroy()
			return nil, false, &http.Error{Kind: http.KindProtocol, Endpoint: ep, Phase: http.PhaseReadingHeaders, Err: errSwitchingProtocols}
		}
		if resp.StatusCode/100 != 1 {
			break
		}
		// interim responses are skipped
		if interim++; interim > maxInterimResponses {
			l.destroy()
			return nil, false, &http.Error{Kind: http.KindProtocol, Endpoint: ep, Phase: http.PhaseReadingHeaders, Err: errTooManyInterim}
		}
		*resp = http.Response{Endpoint: ep, Request: pr.Request}
	}
	conn.CountRequest(c.opts.Clock.Now())
	if resp.Close || pr.Close {
		conn.MarkUnreusable()
	}
	l.status = resp.StatusCode

	// ReadingBody
	if err := ctx.Err(); err != nil {
		l.destroy()
		return nil, false, classify(ctx, ep, http.PhaseReadingBody, err)
	}
	resp.Body = newBody(ctx, l, resp.Body)
	return resp, false, nil
}

// peerGone reports whether err means the peer closed the connection
// rather than the request being too slow or canceled.
func peerGone(ctx context.Context, err error) bool {
	if ctx.Err() != nil || http.IsTimeout(err) {
		return false
	}
	return errors.Is(err, transport.ErrEmptyResponse) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.EOF)
}

// trackingWriter remembers the error of the connection so that it could be
// told apart from an error of the request body.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

// lease is the borrower's handle on a checked out connection. whatever
// path the request takes, the connection is disposed of exactly once:
// back to the pool if it's still reusable, destroyed otherwise.
type lease struct {
	x    *exchange
	conn *netpool.Conn
	stop func() bool
	once sync.Once

	status int
	bytes  int64
}

func (x *exchange) lease(ctx context.Context, conn *netpool.Conn) *lease {
	l := &lease{x: x, conn: conn}
	l.stop = context.AfterFunc(ctx, func() {
		// interrupt any blocking i/o, the stream is in an unknown state
		conn.MarkUnreusable()
		conn.SetDeadline(aLongTimeAgo)
	})
	return l
}

// readDeadline arms the per read timeout. deadlines are wall clock time
// regardless of the configured clock.
func (l *lease) readDeadline() {
	if d := l.x.c.opts.ReadTimeout; d > 0 {
		l.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// release gives the connection back, err is the reason the exchange ended
// early, if any.
func (l *lease) release(err error) {
	l.once.Do(func() {
		c, conn := l.x.c, l.conn
		if !l.stop() {
			conn.MarkUnreusable()
		}
		if conn.Reader().Buffered() > 0 {
			// the peer sent more than the response, the stream is out of sync
			conn.MarkUnreusable()
		}
		if conn.Reusable() {
			conn.SetDeadline(time.Time{})
			l.x.emit(events.Event{Kind: events.ConnReleased, ConnID: conn.ID()})
			c.pool.Checkin(conn)
		} else {
			c.pool.Discard(conn)
			l.x.emit(events.Event{Kind: events.ConnDestroyed, ConnID: conn.ID()})
		}
		if l.status != 0 {
			kind := events.RequestDone
			if err != nil {
				kind = events.RequestError
			}
			l.x.emit(events.Event{Kind: kind, ConnID: conn.ID(), Status: l.status, Bytes: l.bytes, Err: err})
		}
	})
}

func (l *lease) destroy() {
	l.conn.MarkUnreusable()
	l.release(nil)
}

// fail ends the exchange after a failed body read.
func (l *lease) fail(ctx context.Context, err error) error {
	err = classify(ctx, l.x.pr.Endpoint, http.PhaseReadingBody, err)
	l.conn.MarkUnreusable()
	l.release(err)
	return err
}

func classify(ctx context.Context, ep http.Endpoint, phase http.Phase, err error) error {
	return classifyAs(ctx, ep, phase, err, http.KindConnect)
}

// classifyAs wraps err into an *[http.Error], fallback is used for errors
// that aren't recognized.
func classifyAs(ctx context.Context, ep http.Endpoint, phase http.Phase, err error, fallback http.Kind) error {
	var he *http.Error
	if errors.As(err, &he) {
		if he.Endpoint == (http.Endpoint{}) {
			he.Endpoint = ep
		}
		return err
	}
	var te *tlsbackend.Error
	kind := fallback
	switch cerr := ctx.Err(); {
	case errors.Is(cerr, context.Canceled):
		kind, err = http.KindCanceled, cerr
	case cerr != nil:
		kind, err = http.KindTimeout, cerr
	case http.IsTimeout(err):
		kind = http.KindTimeout
	case errors.As(err, &te):
		kind = http.KindTLS
	case transport.IsProtocolError(err):
		kind = http.KindProtocol
	case errors.Is(err, netpool.ErrPoolExhausted):
		kind = http.KindPoolExhausted
	}
	return &http.Error{Kind: kind, Endpoint: ep, Phase: phase, Err: err}
}
