// package transport contains implementations to requirements on *message syntaxes*
// defined by http related RFCs.
//
// as of 2022.06, RFCs that were to define HTTP/1.1 (RFC753x) are obsoleted by:
//
//  HTTP Semantics (RFC9110)
//  HTTP Caching (RFC9111) and
//  HTTP/1.1 (RFC9112)
//
// only the client side of HTTP/1.1 is implemented: writing requests and
// reading responses, with the framing rules of RFC9112 section 6.
// ReadRequest exists for tests that play the server.
//
// header fields are kept in wire order ([http.Header] is a list), token
// and value checks are borrowed from golang.org/x/net/http/httpguts.

package transport
