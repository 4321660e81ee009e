package dialer

import (
	"context"
	"net"

	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/frankli0324/go-h1client/internal/tlsbackend"
	"github.com/hashicorp/go-multierror"
)

var zeroDialer net.Dialer

func (d *CoreDialer) Dial(ctx context.Context, ep http.Endpoint) (net.Conn, error) {
	if !http.SupportedScheme(ep.Scheme) {
		return nil, &http.Error{Kind: http.KindUnsupportedScheme, Endpoint: ep, Phase: http.PhaseConnecting}
	}
	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}
	conn, err := d.dialTCP(ctx, ep)
	if err != nil {
		return nil, err
	}
	if !ep.TLS() {
		return conn, nil
	}
	backend := d.TLSBackend
	if backend == nil {
		backend = tlsbackend.Default()
	}
	return backend.Establish(ctx, conn, ep.Host, d.TLSOptions)
}

func (d *CoreDialer) dialTCP(ctx context.Context, ep http.Endpoint) (net.Conn, error) {
	network, dst := "tcp", ep.Addr()
	cfg := d.ResolveConfig
	if cfg == nil {
		return zeroDialer.DialContext(ctx, network, dst)
	}

	ipNetwork := "ip"
	if cfg.Network == "ip4" || cfg.Network == "ip6" {
		ipNetwork = cfg.Network
		network = "tcp" + cfg.Network[2:]
	}
	if static, ok := cfg.StaticHosts[ep.Host]; ok {
		return zeroDialer.DialContext(ctx, network, net.JoinHostPort(static, ep.Port))
	}
	if dns := cfg.CustomDNSServer; dns != "" {
		ips, err := d.LookupIPServer(ctx, ipNetwork, ep.Host, dns)
		if err != nil {
			return nil, err
		}
		return dialAny(ctx, network, ips, ep.Port)
	}
	return zeroDialer.DialContext(ctx, network, dst)
}

// dialAny tries ips in order and returns the first connection made.
func dialAny(ctx context.Context, network string, ips []net.IP, port string) (net.Conn, error) {
	var merr *multierror.Error
	for _, ip := range ips {
		conn, err := zeroDialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil || len(ips) == 1 {
			return nil, err
		}
		merr = multierror.Append(merr, err)
	}
	if merr == nil {
		return nil, &net.AddrError{Err: "no addresses resolved", Addr: port}
	}
	return nil, merr
}
