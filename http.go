package http

import (
	"github.com/frankli0324/go-h1client/internal"
	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/frankli0324/go-h1client/internal/transport"
	"github.com/spf13/viper"
)

type Client = internal.Client
type Options = internal.Options
type TLSOptions = internal.TLSOptions
type Header = http.Header
type HeaderField = http.HeaderField
type Request = http.Request
type PreparedRequest = http.PreparedRequest
type Response = http.Response
type Endpoint = http.Endpoint

type Handler = internal.Handler
type Middleware = internal.Middleware

type Error = http.Error
type Kind = http.Kind
type Phase = http.Phase
type ProtocolError = transport.ProtocolError

var (
	ErrRequest           = http.ErrRequest
	ErrConnect           = http.ErrConnect
	ErrTLS               = http.ErrTLS
	ErrProtocol          = http.ErrProtocol
	ErrTimeout           = http.ErrTimeout
	ErrUnsupportedScheme = http.ErrUnsupportedScheme
	ErrPoolExhausted     = http.ErrPoolExhausted
	ErrCanceled          = http.ErrCanceled
	ErrTooManyRedirects  = internal.ErrTooManyRedirects

	NoBody = http.NoBody
)

func NewHeader(kv ...string) Header {
	return http.NewHeader(kv...)
}

func NewClient(opts Options) (*Client, error) {
	return internal.NewClient(opts)
}

func DefaultOptions() Options {
	return internal.DefaultOptions()
}

func LoadOptions(v *viper.Viper) (Options, error) {
	return internal.LoadOptions(v)
}
