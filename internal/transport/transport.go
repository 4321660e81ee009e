package transport

import (
	"bufio"
	"io"

	"github.com/frankli0324/go-h1client/internal/http"
)

// Transport encodes one request onto a stream and decodes exactly one
// response from it. looping over interim responses and redirects is left
// to the caller.
type Transport interface {
	Write(w io.Writer, req *http.PreparedRequest) error
	Read(r *bufio.Reader, req *http.PreparedRequest, resp *http.Response) error
}

var _ Transport = HTTP1{}
