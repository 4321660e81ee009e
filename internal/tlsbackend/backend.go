// Package tlsbackend turns an established TCP connection into an encrypted
// one. Two implementations exist, [Std] backed by crypto/tls and [UTLS]
// backed by refraction-networking/utls. The default one is picked at
// compile time, building with the "utls" tag makes [Default] return UTLS.
package tlsbackend

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	pkgerrors "github.com/pkg/errors"
)

// ALPN is the only application protocol ever offered.
const ALPN = "http/1.1"

type Backend interface {
	Name() string
	// Establish performs the handshake over raw. on failure raw is closed
	// and a *[Error] is returned.
	Establish(ctx context.Context, raw net.Conn, serverName string, opts *Options) (net.Conn, error)
}

type Options struct {
	MinVersion uint16 // default tls.VersionTLS12
	RootCAs    *x509.CertPool
	CAFile     string // PEM bundle appended to RootCAs, "~" is expanded
	ServerName string // overrides the name derived from the endpoint
	// Fingerprint selects the ClientHello of the utls backend, "golang"
	// (default) or "randomized". ignored by the std backend.
	Fingerprint string

	DangerouslyDisableCertificateValidation bool
}

func (o *Options) Clone() *Options {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

func (o *Options) minVersion() uint16 {
	if o == nil || o.MinVersion == 0 {
		return tls.VersionTLS12
	}
	return o.MinVersion
}

func (o *Options) serverName(fallback string) string {
	if o != nil && o.ServerName != "" {
		return o.ServerName
	}
	return fallback
}

func (o *Options) insecure() bool {
	return o != nil && o.DangerouslyDisableCertificateValidation
}

func (o *Options) rootCAs() (*x509.CertPool, error) {
	if o == nil {
		return nil, nil
	}
	if o.CAFile == "" {
		return o.RootCAs, nil
	}
	path, err := homedir.Expand(o.CAFile)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "expand ca file")
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read ca file")
	}
	pool := o.RootCAs
	if pool == nil {
		pool = x509.NewCertPool()
	} else {
		pool = pool.Clone()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, pkgerrors.Errorf("no certificates found in %s", o.CAFile)
	}
	return pool, nil
}

var backends = map[string]Backend{}

func register(b Backend) {
	backends[b.Name()] = b
}

// Lookup returns the backend registered under name, an empty name means
// the compiled in default.
func Lookup(name string) (Backend, bool) {
	if name == "" {
		return Default(), true
	}
	b, ok := backends[name]
	return b, ok
}

type Reason int

const (
	ReasonHandshake Reason = iota
	ReasonCertificate
	ReasonHostname
	ReasonProtocolVersion
)

func (r Reason) String() string {
	switch r {
	case ReasonCertificate:
		return "certificate"
	case ReasonHostname:
		return "hostname"
	case ReasonProtocolVersion:
		return "protocol version"
	}
	return "handshake"
}

type Error struct {
	Reason     Reason
	ServerName string
	Err        error
}

func (e *Error) Error() string {
	return "tls " + e.Reason.String() + " failure with " + e.ServerName + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// fail closes raw and classifies err.
func fail(raw net.Conn, serverName string, err error) error {
	raw.Close()
	return &Error{Reason: classify(err), ServerName: serverName, Err: err}
}

func classify(err error) Reason {
	var (
		hostname x509.HostnameError
		unknown  x509.UnknownAuthorityError
		invalid  x509.CertificateInvalidError
		verify   *tls.CertificateVerificationError
	)
	switch {
	case errors.As(err, &hostname):
		return ReasonHostname
	case errors.As(err, &unknown), errors.As(err, &invalid), errors.As(err, &verify):
		return ReasonCertificate
	case strings.Contains(err.Error(), "protocol version"):
		// alerts and local version checks share this wording in both backends
		return ReasonProtocolVersion
	}
	return ReasonHandshake
}

// checkALPN fails when the peer picked a protocol other than http/1.1.
// an empty result means the peer doesn't speak ALPN, which is fine.
func checkALPN(proto string) error {
	if proto != "" && proto != ALPN {
		return errors.New("server negotiated unsupported application protocol " + proto)
	}
	return nil
}
