package netpool

import (
	"bufio"
	"container/list"
	"net"
	"sync/atomic"
	"time"

	"github.com/frankli0324/go-h1client/internal/http"
)

// Conn is a single established transport to one endpoint. a Conn is
// owned either by the pool (idle) or by exactly one borrower, never both.
type Conn struct {
	net.Conn

	id       uint64
	endpoint http.Endpoint
	created  time.Time
	lastUsed time.Time
	requests int

	br       *bufio.Reader
	reusable atomic.Bool
	closed   atomic.Bool

	// guarded by the pool mutex
	idleSince time.Time
	elem      *list.Element // position in the pool's LRU list while idle
	leased    bool
}

func (c *Conn) ID() uint64              { return c.id }
func (c *Conn) Endpoint() http.Endpoint { return c.endpoint }
func (c *Conn) CreatedAt() time.Time    { return c.created }
func (c *Conn) LastUsed() time.Time     { return c.lastUsed }
func (c *Conn) Requests() int           { return c.requests }
func (c *Conn) Raw() net.Conn           { return c.Conn }
func (c *Conn) Reusable() bool          { return c.reusable.Load() && !c.closed.Load() }
func (c *Conn) MarkUnreusable()         { c.reusable.Store(false) }
func (c *Conn) Closed() bool            { return c.closed.Load() }
func (c *Conn) Reused() bool            { return c.requests > 0 }

// CountRequest records a served request, it's called by the owner once a
// response head was read.
func (c *Conn) CountRequest(now time.Time) {
	c.requests++
	c.lastUsed = now
}

// Reader returns the buffered reader bound to the connection. it must be
// used for every response read from c so that no buffered bytes are lost
// between requests.
func (c *Conn) Reader() *bufio.Reader {
	if c.br == nil {
		c.br = bufio.NewReader(c)
	}
	return c.br
}

// Write marks the connection unusable on error, the owner decides on
// closing it.
func (c *Conn) Write(p []byte) (n int, err error) {
	n, err = c.Conn.Write(p)
	if err != nil {
		c.MarkUnreusable()
	}
	return
}

func (c *Conn) Read(p []byte) (n int, err error) {
	n, err = c.Conn.Read(p)
	if err != nil {
		c.MarkUnreusable()
	}
	return n, err
}

func (c *Conn) Close() error {
	c.MarkUnreusable()
	if c.closed.Swap(true) {
		return nil
	}
	return c.Conn.Close()
}
