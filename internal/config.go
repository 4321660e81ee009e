package internal

import (
	"crypto/tls"
	"crypto/x509"
	"time"

	"github.com/frankli0324/go-h1client/internal/clock"
	"github.com/frankli0324/go-h1client/internal/dialer"
	"github.com/frankli0324/go-h1client/internal/events"
	"github.com/frankli0324/go-h1client/internal/tlsbackend"
	"github.com/frankli0324/go-h1client/utils/netpool"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const DefaultMaxDrainBytes = 64 << 10

// Options configures a [Client]. the zero value of a field means its
// default, see [DefaultOptions].
type Options struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`  // per read
	WriteTimeout   time.Duration `mapstructure:"write_timeout"` // whole request
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"` // negative disables expiry

	MaxIdleConns        int   `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int   `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int   `mapstructure:"max_conns_per_host"` // 0 means unlimited
	MaxHeaderBytes      int   `mapstructure:"max_header_bytes"`
	MaxDrainBytes       int64 `mapstructure:"max_drain_bytes"`
	MaxRedirects        int   `mapstructure:"max_redirects"` // 0 disables following redirects

	// JanitorInterval starts a background sweep of expired idle
	// connections, expired connections are skipped on checkout regardless.
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
	// UserAgent is sent when the request doesn't carry one.
	UserAgent string `mapstructure:"user_agent"`

	TLS     TLSOptions            `mapstructure:"tls"`
	Resolve *dialer.ResolveConfig `mapstructure:"resolve"`

	Sink  events.Sink `mapstructure:"-"`
	Clock clock.Clock `mapstructure:"-"`
}

type TLSOptions struct {
	Backend     string `mapstructure:"backend"`     // "std" or "utls", empty means the compiled in default
	MinVersion  string `mapstructure:"min_version"` // "1.2" or "1.3"
	CAFile      string `mapstructure:"ca_file"`
	ServerName  string `mapstructure:"server_name"`
	Fingerprint string `mapstructure:"fingerprint"`

	DangerouslyDisableCertificateValidation bool `mapstructure:"dangerously_disable_certificate_validation"`

	RootCAs *x509.CertPool `mapstructure:"-"`
}

func DefaultOptions() Options {
	return Options{
		IdleTimeout:         netpool.DefaultIdleTimeout,
		MaxIdleConns:        netpool.DefaultMaxIdle,
		MaxIdleConnsPerHost: netpool.DefaultMaxIdlePerHost,
		MaxDrainBytes:       DefaultMaxDrainBytes,
	}
}

// LoadOptions decodes options from v on top of [DefaultOptions]. durations
// are written like "5s". locating and reading the config file is left to
// the caller. resolve.static_hosts is keyed by host names, so v should be
// created with a key delimiter other than ".".
func LoadOptions(v *viper.Viper) (Options, error) {
	opts := DefaultOptions()
	if err := v.Unmarshal(&opts); err != nil {
		return opts, errors.Wrap(err, "decode client options")
	}
	if _, _, err := opts.TLS.build(); err != nil {
		return opts, err
	}
	return opts, nil
}

// build resolves the tls section into a backend and its options.
func (o TLSOptions) build() (tlsbackend.Backend, *tlsbackend.Options, error) {
	backend, ok := tlsbackend.Lookup(o.Backend)
	if !ok {
		return nil, nil, errors.Errorf("tls: unknown backend %q", o.Backend)
	}
	var version uint16
	switch o.MinVersion {
	case "", "1.2":
		version = tls.VersionTLS12
	case "1.3":
		version = tls.VersionTLS13
	default:
		return nil, nil, errors.Errorf("tls: unsupported min_version %q", o.MinVersion)
	}
	switch o.Fingerprint {
	case "", "golang", "randomized":
	default:
		return nil, nil, errors.Errorf("tls: unknown fingerprint %q", o.Fingerprint)
	}
	return backend, &tlsbackend.Options{
		MinVersion:  version,
		RootCAs:     o.RootCAs,
		CAFile:      o.CAFile,
		ServerName:  o.ServerName,
		Fingerprint: o.Fingerprint,

		DangerouslyDisableCertificateValidation: o.DangerouslyDisableCertificateValidation,
	}, nil
}

// withDefaults fills zero fields so that a partially filled Options behaves
// like one returned by DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.IdleTimeout == 0 {
		o.IdleTimeout = d.IdleTimeout
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = d.MaxIdleConns
	}
	if o.MaxIdleConnsPerHost <= 0 {
		o.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if o.MaxDrainBytes <= 0 {
		o.MaxDrainBytes = d.MaxDrainBytes
	}
	if o.Sink == nil {
		o.Sink = events.Nop
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}
