package netpool

import (
	"container/list"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/frankli0324/go-h1client/internal/clock"
	"github.com/frankli0324/go-h1client/internal/http"
)

const (
	DefaultMaxIdle        = 100
	DefaultMaxIdlePerHost = 10
	DefaultIdleTimeout    = 90 * time.Second
)

var (
	ErrPoolExhausted = errors.New("netpool: too many connections checked out for endpoint")
	ErrPoolClosed    = errors.New("netpool: pool closed")
)

type EvictReason string

const (
	EvictExpired     EvictReason = "expired"
	EvictStale       EvictReason = "stale"
	EvictCapacity    EvictReason = "capacity"
	EvictHostLimit   EvictReason = "host-limit"
	EvictNotReusable EvictReason = "not-reusable"
	EvictClosed      EvictReason = "closed"
)

type Options struct {
	MaxIdle         int           // idle conns across all endpoints, default 100
	MaxIdlePerHost  int           // idle conns per endpoint, default 10
	MaxConnsPerHost int           // checked out conns per endpoint, 0 means unlimited
	IdleTimeout     time.Duration // default 90s, negative disables expiry

	Clock clock.Clock
	// Probe reports whether an idle connection was closed by the peer,
	// stale connections are evicted on checkout.
	Probe func(net.Conn) bool
	// OnEvict is called outside the pool lock for every connection the
	// pool destroys on its own.
	OnEvict func(c *Conn, reason EvictReason)
}

// Pool caches idle connections keyed by [http.Endpoint]. Within an endpoint
// the most recently idle connection is reused first, across endpoints the
// globally oldest idle connection is evicted first.
//
// A connection is in the pool iff it is idle: Checkout transfers ownership
// to the caller, Checkin or Discard transfers it back. Pool is safe for
// concurrent use.
type Pool struct {
	mu     sync.Mutex
	opts   Options
	idle   map[http.Endpoint]*hostIdle
	lru    list.List // of *Conn, front is the oldest idle
	active map[http.Endpoint]int
	nextID uint64
	closed bool
}

func New(opts Options) *Pool {
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = DefaultMaxIdle
	}
	if opts.MaxIdlePerHost <= 0 {
		opts.MaxIdlePerHost = DefaultMaxIdlePerHost
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Pool{
		opts:   opts,
		idle:   map[http.Endpoint]*hostIdle{},
		active: map[http.Endpoint]int{},
	}
}

// NewEmpty returns a pool with the same options and no connections.
func (p *Pool) NewEmpty() *Pool {
	return New(p.opts)
}

type eviction struct {
	c      *Conn
	reason EvictReason
}

// finish closes evicted connections and runs the hook, must be called
// without holding the lock.
func (p *Pool) finish(evicted []eviction) {
	for _, e := range evicted {
		e.c.Close()
		if p.opts.OnEvict != nil {
			p.opts.OnEvict(e.c, e.reason)
		}
	}
}

// Checkout removes and returns the most recently idle connection of ep,
// or nil if there is none. expired and stale connections met on the way
// are evicted.
func (p *Pool) Checkout(ep http.Endpoint) *Conn {
	p.mu.Lock()
	c, evicted := p.checkoutLocked(ep)
	p.mu.Unlock()
	p.finish(evicted)
	return c
}

func (p *Pool) checkoutLocked(ep http.Endpoint) (*Conn, []eviction) {
	var evicted []eviction
	h := p.idle[ep]
	now := p.opts.Clock.Now()
	for h != nil && h.len() > 0 {
		c := h.pop()
		p.lru.Remove(c.elem)
		c.elem = nil
		if p.expired(c, now) {
			evicted = append(evicted, eviction{c, EvictExpired})
			continue
		}
		if p.opts.Probe != nil && p.opts.Probe(c.Conn) {
			evicted = append(evicted, eviction{c, EvictStale})
			continue
		}
		if h.len() == 0 {
			delete(p.idle, ep)
		}
		c.leased = true
		c.lastUsed = now
		p.active[ep]++
		return c, evicted
	}
	if h != nil {
		delete(p.idle, ep)
	}
	return nil, evicted
}

// Connect checks out an idle connection of ep, or dials a new one, see
// [Conn.Reused] to tell them apart. if MaxConnsPerHost is set and reached, ErrPoolExhausted is returned.
func (p *Pool) Connect(ctx context.Context, ep http.Endpoint, dial func(ctx context.Context) (net.Conn, error)) (*Conn, error) {
	return p.connect(ctx, ep, dial, true)
}

// Dial is like Connect but never reuses an idle connection.
func (p *Pool) Dial(ctx context.Context, ep http.Endpoint, dial func(ctx context.Context) (net.Conn, error)) (*Conn, error) {
	return p.connect(ctx, ep, dial, false)
}

func (p *Pool) connect(ctx context.Context, ep http.Endpoint, dial func(ctx context.Context) (net.Conn, error), reuse bool) (*Conn, error) {
	p.mu.Lock()
	if err := p.admitLocked(ep); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if reuse {
		c, evicted := p.checkoutLocked(ep)
		if c != nil {
			p.mu.Unlock()
			p.finish(evicted)
			return c, nil
		}
		defer p.finish(evicted)
	}
	p.active[ep]++ // reserve the slot while dialing
	p.mu.Unlock()

	raw, err := dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.release(ep)
		p.mu.Unlock()
		return nil, err
	}
	return p.wrap(ep, raw), nil
}

// Wrap adopts a connection established outside the pool as checked out,
// subject to the same limits as Connect. raw is closed if it is refused.
func (p *Pool) Wrap(ep http.Endpoint, raw net.Conn) (*Conn, error) {
	p.mu.Lock()
	if err := p.admitLocked(ep); err != nil {
		p.mu.Unlock()
		raw.Close()
		return nil, err
	}
	p.active[ep]++
	p.mu.Unlock()
	return p.wrap(ep, raw), nil
}

// admitLocked reports whether another conn of ep may be checked out.
func (p *Pool) admitLocked(ep http.Endpoint) error {
	if p.closed {
		return ErrPoolClosed
	}
	if max := p.opts.MaxConnsPerHost; max > 0 && p.active[ep] >= max {
		return ErrPoolExhausted
	}
	return nil
}

func (p *Pool) wrap(ep http.Endpoint, raw net.Conn) *Conn {
	now := p.opts.Clock.Now()
	p.mu.Lock()
	p.nextID++
	c := &Conn{Conn: raw, id: p.nextID, endpoint: ep, created: now, lastUsed: now, leased: true}
	p.mu.Unlock()
	c.reusable.Store(true)
	return c
}

func (p *Pool) release(ep http.Endpoint) {
	if p.active[ep] <= 1 {
		delete(p.active, ep)
	} else {
		p.active[ep]--
	}
}

// Checkin returns c to idle storage if it is reusable and its endpoint
// has room for another idle connection, otherwise c is closed. if the
// pool is full, the globally oldest idle connection is evicted first.
func (p *Pool) Checkin(c *Conn) {
	var evicted []eviction
	defer func() { p.finish(evicted) }()

	p.mu.Lock()
	defer p.mu.Unlock()
	if c.elem != nil { // already idle
		return
	}
	ep := c.endpoint
	if c.leased {
		c.leased = false
		p.release(ep)
	}
	switch {
	case p.closed:
		evicted = append(evicted, eviction{c, EvictClosed})
		return
	case !c.Reusable(), c.br != nil && c.br.Buffered() > 0:
		// unread bytes belong to no request, the next one would read them
		evicted = append(evicted, eviction{c, EvictNotReusable})
		return
	}
	h := p.idle[ep]
	if h == nil {
		h = &hostIdle{}
		p.idle[ep] = h
	}
	if h.len() >= p.opts.MaxIdlePerHost {
		evicted = append(evicted, eviction{c, EvictHostLimit})
		return
	}
	for p.lru.Len() >= p.opts.MaxIdle {
		oldest := p.lru.Front().Value.(*Conn)
		p.removeLocked(oldest)
		evicted = append(evicted, eviction{oldest, EvictCapacity})
	}
	if p.idle[ep] == nil { // removed by the loop above
		p.idle[ep] = h
	}
	c.idleSince = p.opts.Clock.Now()
	c.elem = p.lru.PushBack(c)
	h.push(c)
}

// Discard destroys a checked out connection.
func (p *Pool) Discard(c *Conn) {
	p.mu.Lock()
	if c.leased {
		c.leased = false
		p.release(c.endpoint)
	}
	p.mu.Unlock()
	c.Close()
}

// removeLocked drops an idle connection from both indexes.
func (p *Pool) removeLocked(c *Conn) {
	p.lru.Remove(c.elem)
	c.elem = nil
	if h := p.idle[c.endpoint]; h != nil {
		h.remove(c)
		if h.len() == 0 {
			delete(p.idle, c.endpoint)
		}
	}
}

func (p *Pool) expired(c *Conn, now time.Time) bool {
	return p.opts.IdleTimeout > 0 && now.Sub(c.idleSince) > p.opts.IdleTimeout
}

// EvictExpired closes every idle connection that has been idle for longer
// than IdleTimeout and returns how many were evicted.
func (p *Pool) EvictExpired() int {
	var evicted []eviction
	now := p.opts.Clock.Now()
	p.mu.Lock()
	for e := p.lru.Front(); e != nil; {
		c := e.Value.(*Conn)
		if !p.expired(c, now) {
			break // the rest are more recent
		}
		e = e.Next()
		p.removeLocked(c)
		evicted = append(evicted, eviction{c, EvictExpired})
	}
	p.mu.Unlock()
	p.finish(evicted)
	return len(evicted)
}

// Run calls EvictExpired every interval until ctx is done.
func (p *Pool) Run(ctx context.Context, interval time.Duration) {
	t := p.opts.Clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			p.EvictExpired()
		}
	}
}

// Close closes all idle connections. connections checked in afterwards are
// closed as well.
func (p *Pool) Close() error {
	var evicted []eviction
	p.mu.Lock()
	p.closed = true
	for e := p.lru.Front(); e != nil; e = e.Next() {
		c := e.Value.(*Conn)
		c.elem = nil
		evicted = append(evicted, eviction{c, EvictClosed})
	}
	p.lru.Init()
	p.idle = map[http.Endpoint]*hostIdle{}
	p.mu.Unlock()
	p.finish(evicted)
	return nil
}

// Len returns the number of idle connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lru.Len()
}

// IdleLen returns the number of idle connections of ep.
func (p *Pool) IdleLen(ep http.Endpoint) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h := p.idle[ep]; h != nil {
		return h.len()
	}
	return 0
}

// Active returns the number of checked out connections of ep.
func (p *Pool) Active(ep http.Endpoint) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[ep]
}

// Contains reports whether c is idle in the pool.
func (p *Pool) Contains(c *Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return c.elem != nil
}
