package transport

import (
	"bufio"
	"io"
	"strings"

	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/frankli0324/go-h1client/internal/transport/chunked"
)

// ReadRequest decodes a request head from r, the server side counterpart
// of [HTTP1.Write]. the returned Request has URL set to the raw
// request-target and Body set to an io.Reader honoring the framing (or
// nil if there is none). Trailer is filled once a chunked Body hits EOF.
func ReadRequest(r *bufio.Reader) (*http.Request, error) {
	hr := newHeadReader(r, 0)
	line, err := hr.readLine()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, wrapProto("request line", err)
	}
	method, rest, ok1 := strings.Cut(string(line), " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || method == "" || target == "" {
		return nil, &ProtocolError{What: "request line " + quote(line)}
	}
	if major, _, ok := parseHTTPVersion(proto); !ok || major != 1 {
		return nil, &ProtocolError{What: "http version " + quote([]byte(proto))}
	}
	req := &http.Request{Method: method, URL: target}
	if req.Header, err = hr.readHeader("header"); err != nil {
		return nil, err
	}

	cl, err := contentLength(req.Header)
	if err != nil {
		return nil, err
	}
	if te := req.Header.Values("Transfer-Encoding"); len(te) > 0 {
		if !isChunked(te) {
			return nil, &ProtocolError{What: "transfer-encoding"}
		}
		req.Body = protoReader{chunked.NewChunkedReader(r, func(br *bufio.Reader) error {
			trailer, err := newHeadReader(br, 0).readHeader("trailer")
			if err == nil && len(trailer) > 0 {
				req.Trailer = trailer
			}
			return err
		}), "chunked body"}
	} else if cl > 0 {
		req.Body = &fixedReader{r, cl}
	}
	return req, nil
}
