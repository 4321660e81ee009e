package internal

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/frankli0324/go-h1client/internal/dialer"
	"github.com/frankli0324/go-h1client/internal/events"
	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/frankli0324/go-h1client/internal/tlsbackend"
	"github.com/frankli0324/go-h1client/internal/transport"
	"github.com/frankli0324/go-h1client/utils/netpool"
	"github.com/frankli0324/go-h1client/utils/nettools"
)

type PreparedRequest = http.PreparedRequest

// Handler sends a single request, redirects are followed around it.
type Handler = func(ctx context.Context, req *PreparedRequest) (*http.Response, error)
type Middleware func(next Handler) Handler

// Client owns a connection pool and sends requests over it. the zero value
// is ready to use with [DefaultOptions]. a Client is safe for concurrent
// use, but Use, UseDialer and UseCoreDialer must not run concurrently with
// requests.
type Client struct {
	opts       Options
	configured bool

	once    sync.Once
	initErr error

	pool        *netpool.Pool
	dialer      dialer.Dialer
	tlsOpts     *tlsbackend.Options
	codec       transport.HTTP1
	middlewares []Middleware
	stopJanitor context.CancelFunc
}

// NewClient validates opts and returns a client using them.
func NewClient(opts Options) (*Client, error) {
	c := &Client{opts: opts, configured: true}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) init() error {
	c.once.Do(func() {
		if !c.configured {
			c.opts = DefaultOptions()
		}
		c.opts = c.opts.withDefaults()
		backend, tlsOpts, err := c.opts.TLS.build()
		if err != nil {
			c.initErr = &http.Error{Kind: http.KindRequest, Phase: http.PhaseResolving, Err: err}
			return
		}
		c.tlsOpts = tlsOpts
		if c.dialer == nil {
			c.dialer = &dialer.CoreDialer{
				ResolveConfig:  c.opts.Resolve.Clone(),
				ConnectTimeout: c.opts.ConnectTimeout,
				TLSBackend:     backend,
				TLSOptions:     tlsOpts,
			}
		}
		if c.pool == nil {
			c.pool = netpool.New(c.poolOptions())
		}
		c.codec = transport.HTTP1{MaxHeaderBytes: c.opts.MaxHeaderBytes}
		c.startJanitor()
	})
	return c.initErr
}

func (c *Client) poolOptions() netpool.Options {
	sink := c.opts.Sink
	return netpool.Options{
		MaxIdle:         c.opts.MaxIdleConns,
		MaxIdlePerHost:  c.opts.MaxIdleConnsPerHost,
		MaxConnsPerHost: c.opts.MaxConnsPerHost,
		IdleTimeout:     c.opts.IdleTimeout,
		Clock:           c.opts.Clock,
		Probe:           nettools.PeerClosed,
		OnEvict: func(conn *netpool.Conn, reason netpool.EvictReason) {
			sink.Emit(events.Event{
				Kind:     events.ConnEvicted,
				Time:     c.opts.Clock.Now(),
				Endpoint: conn.Endpoint().String(),
				ConnID:   conn.ID(),
				Reason:   string(reason),
			})
		},
	}
}

func (c *Client) startJanitor() {
	if c.opts.JanitorInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopJanitor = cancel
	go c.pool.Run(ctx, c.opts.JanitorInterval)
}

// Use appends mws to the chain, the first one added runs outermost.
func (c *Client) Use(mws ...Middleware) {
	c.middlewares = append(c.middlewares, mws...)
}

// UseDialer replaces the dialer establishing new connections.
func (c *Client) UseDialer(d dialer.Dialer) {
	c.init()
	c.dialer = d
}

// UseCoreDialer modifies a copy of the current *[dialer.CoreDialer], or of
// the default one if a custom dialer is in use, and installs it.
func (c *Client) UseCoreDialer(modify func(d *dialer.CoreDialer)) {
	c.init()
	var d *dialer.CoreDialer
	for cur := c.dialer; cur != nil; cur = cur.Unwrap() {
		if core, ok := cur.(*dialer.CoreDialer); ok {
			d = core.Clone()
			break
		}
	}
	if d == nil {
		d = &dialer.CoreDialer{ConnectTimeout: c.opts.ConnectTimeout, TLSOptions: c.tlsOpts.Clone()}
	}
	modify(d)
	c.dialer = d
}

// Pool exposes the connection pool of c.
func (c *Client) Pool() *netpool.Pool {
	c.init()
	return c.pool
}

// Clone returns a client with the same options, dialer and middlewares
// but its own empty pool.
func (c *Client) Clone() *Client {
	c.init()
	nc := &Client{
		opts: c.opts, configured: true,
		dialer:      c.dialer,
		middlewares: append([]Middleware(nil), c.middlewares...),
		pool:        c.pool.NewEmpty(),
	}
	nc.init()
	return nc
}

// Close stops the janitor and closes all idle connections. connections in
// use are closed once their response is done.
func (c *Client) Close() error {
	if c.init() != nil {
		return nil
	}
	if c.stopJanitor != nil {
		c.stopJanitor()
	}
	return c.pool.Close()
}

func (c *Client) dial(ctx context.Context, ep http.Endpoint) (net.Conn, error) {
	return c.dialer.Dial(ctx, ep)
}

func (c *Client) emit(e events.Event) {
	if e.Time.IsZero() {
		e.Time = c.opts.Clock.Now()
	}
	c.opts.Sink.Emit(e)
}

// CtxDo sends req and returns the response once its head was read. the
// caller must close the response body, the connection goes back to the
// pool once the body was read to EOF or closed.
func (c *Client) CtxDo(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	if ua := c.opts.UserAgent; ua != "" && !req.Header.Has("User-Agent") {
		r := *req
		r.Header = append(req.Header.Clone(), http.HeaderField{Name: "User-Agent", Value: ua})
		req = &r
	}
	pr, err := req.Prepare()
	if err != nil {
		return nil, err
	}
	cancel := context.CancelFunc(func() {})
	if c.opts.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
	}
	resp, err := c.follow(ctx, pr)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.Body == http.NoBody {
		cancel()
	} else {
		resp.Body = &cancelBody{resp.Body, cancel}
	}
	return resp, nil
}

// Do is CtxDo with a background context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.CtxDo(context.Background(), req)
}

func (c *Client) handler() Handler {
	next := c.roundTrip
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		next = c.middlewares[i](next)
	}
	return next
}

// cancelBody releases the request timeout once the body is closed.
type cancelBody struct {
	body   io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Read(p []byte) (int, error) {
	return b.body.Read(p)
}

func (b *cancelBody) Close() error {
	err := b.body.Close()
	b.cancel()
	return err
}
