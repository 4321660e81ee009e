// Package nettools inspects idle sockets without reading from them.
package nettools

import (
	"net"
	"syscall"
)

type Mode int

const (
	ModePoll Mode = iota
	ModeSelect
)

// a probe reports whether fd is readable or in an error state, without
// blocking.
type probe func(fd int) bool

var (
	supported = map[Mode]probe{}
	picked    probe
)

func init() {
	for _, mode := range []Mode{ModePoll, ModeSelect} {
		if supported[mode] != nil {
			picked = supported[mode]
			break
		}
	}
}

// Supported reports whether PeerClosed could inspect sockets on this
// platform at all.
func Supported() bool {
	return picked != nil
}

// PeerClosed reports whether an idle connection should be considered
// stale: the peer either closed it, reset it, or sent bytes nobody asked
// for. connections not backed by a socket are never reported.
func PeerClosed(c net.Conn) bool {
	if picked == nil {
		return false
	}
	rc := connToFD(c)
	if rc == nil {
		return false
	}
	stale := false
	if err := rc.Control(func(fd uintptr) {
		stale = picked(int(fd))
	}); err != nil {
		// the descriptor is already gone
		return true
	}
	return stale
}

func connToFD(raw net.Conn) syscall.RawConn {
	if t, ok := raw.(interface{ NetConn() net.Conn }); ok {
		// is *tls.Conn or polyfilled TLS Connection
		raw = t.NetConn()
	}
	if c, ok := raw.(syscall.Conn); ok {
		if c, err := c.SyscallConn(); err == nil {
			return c
		}
	}
	return nil
}
