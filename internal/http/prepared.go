package http

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/net/http/httpguts"
)

type PreparedRequest struct {
	*Request

	U          *url.URL
	Endpoint   Endpoint
	GetBody    func() (io.ReadCloser, error)
	Header     Header // without Host and framing headers
	HeaderHost string

	// ContentLength is -1 if the body is streamed with chunked encoding.
	ContentLength int64
	// NoBody is set when the request carries no body at all.
	NoBody bool
	// Replayable is set when GetBody could be called more than once.
	Replayable bool
	// ExplicitLength is set when the caller supplied Content-Length.
	ExplicitLength bool
	// Close is set when the caller asked for "Connection: close".
	Close bool
}

// headers the protocol allows only once, the first occurrence wins
var singletonHeaders = []string{
	"host", "content-length", "content-type", "authorization", "user-agent",
}

var idempotentMethods = map[string]bool{
	"GET": true, "HEAD": true, "OPTIONS": true, "TRACE": true, "PUT": true, "DELETE": true,
}

func (r *Request) Prepare() (*PreparedRequest, error) {
	method := r.Method
	if method == "" {
		method = "GET"
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Phase: PhaseResolving, Err: err}
	}
	ep, err := EndpointOf(u)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*PreparedRequest, error) {
		return nil, &Error{Kind: KindRequest, Endpoint: ep, Phase: PhaseResolving, Err: err}
	}
	if !httpguts.ValidHeaderFieldName(method) {
		return fail(fmt.Errorf("invalid method %q", method))
	}
	if method == "CONNECT" {
		return fail(fmt.Errorf("method %s is not supported", method))
	}

	host := u.Host
	cl := int64(-1)
	seen := map[string]bool{}
	headers := make(Header, 0, len(r.Header))
	closing := false
	// user defined headers has higher priority
	for _, f := range r.Header {
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return fail(fmt.Errorf("invalid header field name %q", f.Name))
		}
		if !httpguts.ValidHeaderFieldValue(f.Value) {
			return fail(fmt.Errorf("invalid header field value for %q", f.Name))
		}
		lower := strings.ToLower(f.Name)
		if isSingleton(lower) {
			if seen[lower] {
				continue
			}
			seen[lower] = true
		}
		switch lower {
		case "host":
			host = f.Value
			continue
		case "content-length":
			v, err := strconv.ParseInt(textTrim(f.Value), 10, 64)
			if err != nil || v < 0 {
				return fail(fmt.Errorf("invalid content-length %q", f.Value))
			}
			cl = v
			continue
		case "transfer-encoding": // framing is decided below
			continue
		case "connection":
			if httpguts.HeaderValuesContainsToken([]string{f.Value}, "close") {
				closing = true
			}
		}
		headers = append(headers, f)
	}
	if host == "" || !httpguts.ValidHostHeader(host) {
		return fail(url.InvalidHostError(host))
	}

	pr := &PreparedRequest{
		Request: r, U: u, Endpoint: ep,
		Header: headers, HeaderHost: host,
		ContentLength: -1, Close: closing,
	}
	if err := pr.updateBody(); err != nil {
		// note that updateBody potentially updates content-length
		return fail(err)
	}
	if pr.Request.Method == "" {
		pr.Request = &Request{Method: method, URL: r.URL, Body: r.Body, Header: r.Header, Trailer: r.Trailer}
	}
	if cl != -1 {
		pr.ExplicitLength = true
		switch {
		case pr.NoBody && cl != 0:
			return fail(ErrContentLengthBody)
		case pr.ContentLength != -1 && pr.ContentLength != cl:
			return fail(ErrContentLengthBody)
		}
		// content-length wins over chunked streaming
		pr.ContentLength = cl
	} else if len(r.Trailer) > 0 && !pr.NoBody {
		pr.ContentLength = -1
	}
	for _, f := range r.Trailer {
		if !httpguts.ValidHeaderFieldName(f.Name) || !httpguts.ValidHeaderFieldValue(f.Value) {
			return fail(fmt.Errorf("invalid trailer field %q", f.Name))
		}
	}
	return pr, nil
}

// Idempotent reports whether the request could be sent again without
// side effects, which requires both an idempotent method and a body
// that could be produced twice.
func (r *PreparedRequest) Idempotent() bool {
	return idempotentMethods[r.Method] && (r.NoBody || r.Replayable)
}

func isSingleton(lower string) bool {
	for _, s := range singletonHeaders {
		if s == lower {
			return true
		}
	}
	return false
}

func textTrim(s string) string {
	return strings.Trim(s, " \t")
}

// should only be called once at [Prepare]
func (r *PreparedRequest) updateBody() (err error) {
	if r.Request.Body == nil {
		r.NoBody, r.Replayable, r.ContentLength = true, true, 0
		r.GetBody = func() (io.ReadCloser, error) {
			return NoBody, nil
		}
		return nil
	}
	r.Replayable = true
	switch b := r.Request.Body.(type) {
	case string:
		r.ContentLength = int64(len(b))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(b)), nil
		}
	case []byte:
		r.ContentLength = int64(len(b))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		}
	case *bytes.Buffer: // below is taken from http.NewRequest
		r.ContentLength = int64(b.Len())
		buf := b.Bytes()
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		}
	case *bytes.Reader:
		r.ContentLength = int64(b.Len())
		snapshot := *b
		r.GetBody = func() (io.ReadCloser, error) {
			r := snapshot
			return io.NopCloser(&r), nil
		}
	case *strings.Reader:
		r.ContentLength = int64(b.Len())
		snapshot := *b
		r.GetBody = func() (io.ReadCloser, error) {
			r := snapshot
			return io.NopCloser(&r), nil
		}
	case func() (io.ReadCloser, error):
		r.GetBody = b
	case io.Reader:
		r.Replayable = false
		if sizer, ok := b.(interface{ Size() int64 }); ok {
			r.ContentLength = sizer.Size()
		}
		cb, ok := b.(io.ReadCloser)
		if !ok {
			cb = io.NopCloser(b)
		}
		once := atomic.Bool{}
		r.GetBody = func() (io.ReadCloser, error) {
			if once.CompareAndSwap(false, true) {
				return cb, nil
			}
			return nil, ErrBodyReadAfterClose
		}
	default:
		return fmt.Errorf("unsupported body type: %T", r.Request.Body)
	}
	return nil
}
