package tlsbackend

import (
	"context"
	"crypto/tls"
	"net"
)

// Std is the crypto/tls backend.
type Std struct{}

func init() { register(Std{}) }

func (Std) Name() string { return "std" }

func (Std) Establish(ctx context.Context, raw net.Conn, serverName string, opts *Options) (net.Conn, error) {
	serverName = opts.serverName(serverName)
	roots, err := opts.rootCAs()
	if err != nil {
		return nil, fail(raw, serverName, err)
	}
	c := tls.Client(raw, &tls.Config{
		ServerName:         serverName,
		RootCAs:            roots,
		MinVersion:         opts.minVersion(),
		NextProtos:         []string{ALPN},
		InsecureSkipVerify: opts.insecure(),
	})
	if err := c.HandshakeContext(ctx); err != nil {
		return nil, fail(raw, serverName, err)
	}
	if err := checkALPN(c.ConnectionState().NegotiatedProtocol); err != nil {
		return nil, fail(c, serverName, err)
	}
	return c, nil
}
