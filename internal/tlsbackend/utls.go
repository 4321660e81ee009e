package tlsbackend

import (
	"context"
	"net"

	utls "github.com/refraction-networking/utls"
)

// UTLS is the refraction-networking/utls backend, it shapes the
// ClientHello after [Options.Fingerprint].
type UTLS struct{}

func init() { register(UTLS{}) }

func (UTLS) Name() string { return "utls" }

func (UTLS) Establish(ctx context.Context, raw net.Conn, serverName string, opts *Options) (net.Conn, error) {
	serverName = opts.serverName(serverName)
	roots, err := opts.rootCAs()
	if err != nil {
		return nil, fail(raw, serverName, err)
	}
	hello := utls.HelloGolang
	if opts != nil && opts.Fingerprint == "randomized" {
		hello = utls.HelloRandomizedNoALPN
	}
	c := utls.UClient(raw, &utls.Config{
		ServerName:         serverName,
		RootCAs:            roots,
		MinVersion:         opts.minVersion(),
		NextProtos:         []string{ALPN},
		InsecureSkipVerify: opts.insecure(),
	}, hello)
	if err := c.HandshakeContext(ctx); err != nil {
		return nil, fail(raw, serverName, err)
	}
	if err := checkALPN(c.ConnectionState().NegotiatedProtocol); err != nil {
		return nil, fail(c, serverName, err)
	}
	return c, nil
}
