package dialer

import (
	"github.com/frankli0324/go-h1client/internal/dialer"
	"github.com/frankli0324/go-h1client/internal/tlsbackend"
)

// Dialers are responsible for creating the connections requests are
// written to and responses are read from: a raw TCP connection for http
// endpoints, an encrypted one for https.
//
// A Dialer MUST NOT hold connection state, pooling is done by the
// [Client], so a Dialer could be swapped out without pain. It SHOULD hold
// the connection related configs like [ResolveConfig] or the TLS backend.
type Dialer = dialer.Dialer

// CoreDialer is the default implementation of the [Dialer] interface. It
// would be used by a zero value [Client].
type CoreDialer = dialer.CoreDialer

// we need a dedicated resolver to customize the DNS server used for
// resolving hostnames.
//
// the standard library didn't provide a intuitive way of
// setting DNS server addresses since it only follows the
// system configuration (e.g. /etc/resolv.conf), leaving us only
// one option of using [net.Resolver.Dial] hook with a Go Resolver.
//
// this part of code tries to take advantage of that
// only option as far as possible to provide a relativly
// intuitive configuration API.
type ResolveConfig = dialer.ResolveConfig

type TLSBackend = tlsbackend.Backend
type TLSOptions = tlsbackend.Options

// TLSBackendByName returns "std" or "utls", an empty name means the
// backend selected at build time.
func TLSBackendByName(name string) (TLSBackend, bool) {
	return tlsbackend.Lookup(name)
}
