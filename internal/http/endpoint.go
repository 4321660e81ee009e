package http

import (
	"net"
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{
	"http": "80", "https": "443",
}

// Endpoint identifies a pool of interchangeable connections. two endpoints
// are equal only if all three fields are byte-identical, no DNS level
// normalization is performed.
type Endpoint struct {
	Scheme string
	Host   string
	Port   string
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, e.Port)
}

func (e Endpoint) String() string {
	return e.Scheme + "://" + e.Addr()
}

// TLS reports whether connections to e are encrypted.
func (e Endpoint) TLS() bool {
	return e.Scheme == "https"
}

// SupportedScheme reports whether requests with the given URL scheme
// could be sent.
func SupportedScheme(scheme string) bool {
	_, ok := defaultPorts[scheme]
	return ok
}

// EndpointOf derives the pooling key for a parsed URL, filling in the
// default port of the scheme.
func EndpointOf(u *url.URL) (Endpoint, error) {
	scheme := strings.ToLower(u.Scheme)
	port, ok := defaultPorts[scheme]
	if !ok {
		ep := Endpoint{Scheme: scheme, Host: u.Hostname(), Port: u.Port()}
		return Endpoint{}, &Error{Kind: KindUnsupportedScheme, Endpoint: ep, Phase: PhaseResolving, Err: errScheme(u.Scheme)}
	}
	host := u.Hostname()
	if host == "" {
		ep := Endpoint{Scheme: scheme, Port: port}
		return Endpoint{}, &Error{Kind: KindRequest, Endpoint: ep, Phase: PhaseResolving, Err: url.InvalidHostError("empty host")}
	}
	if p := u.Port(); p != "" {
		port = p
	}
	return Endpoint{Scheme: scheme, Host: host, Port: port}, nil
}

type errScheme string

func (e errScheme) Error() string {
	return "unsupported scheme " + `"` + string(e) + `"`
}
