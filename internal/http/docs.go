// package http contains the request and response type, which are meant
// to be exported. the package name is meant to be same with the top
// level package name so that IDEs and code editors could pick them up
//
// the package also holds the pooling key ([Endpoint]) and the error
// taxonomy shared by the dialer, the pool, the codec and the client,
// plus a couple of values from the standard library to avoid annoying imports
package http

import (
	"net/http"
)

var (
	NoBody                 = http.NoBody
	ErrBodyReadAfterClose  = http.ErrBodyReadAfterClose
	ErrContentLengthBody   = errBodyLength("conflicting value between body size and content-length request header")
	ErrBodyShorterThanSize = errBodyLength("request body shorter than content-length")
)

type errBodyLength string

func (e errBodyLength) Error() string { return string(e) }
