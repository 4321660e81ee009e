package dialer

import (
	"context"
	"net"
	"time"

	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/frankli0324/go-h1client/internal/tlsbackend"
)

// Dialers handle pretty much everything related to establishing a
// connection, resolving the host, connecting and handshaking.
type Dialer interface {
	// Dial returns a connection ready for writing requests to ep. for
	// https endpoints the connection is already encrypted.
	Dial(ctx context.Context, ep http.Endpoint) (net.Conn, error)
	Unwrap() Dialer
}

type CoreDialer struct {
	ResolveConfig *ResolveConfig

	// ConnectTimeout bounds the TCP connect and the TLS handshake as a
	// whole, zero means only the context applies.
	ConnectTimeout time.Duration
	TLSBackend     tlsbackend.Backend // default is tlsbackend.Default()
	TLSOptions     *tlsbackend.Options
}

func (d *CoreDialer) Clone() *CoreDialer {
	return &CoreDialer{
		ResolveConfig:  d.ResolveConfig.Clone(),
		ConnectTimeout: d.ConnectTimeout,
		TLSBackend:     d.TLSBackend,
		TLSOptions:     d.TLSOptions.Clone(),
	}
}

func (d *CoreDialer) Unwrap() Dialer {
	return nil
}
