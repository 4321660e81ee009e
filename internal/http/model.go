package http

import (
	"io"
)

type Request struct {
	Method string
	URL    string
	// Body is one of nil, string, []byte, *bytes.Buffer, *bytes.Reader,
	// *strings.Reader, func() (io.ReadCloser, error) or any io.Reader.
	// readers exposing Size() int64 are sent with a fixed length, other
	// readers are streamed with chunked transfer-encoding.
	Body   interface{}
	Header Header
	// Trailer is sent after a chunked body, it forces chunked framing
	// unless Content-Length was set explicitly.
	Trailer Header
}

type Response struct {
	Proto      string
	ProtoMajor int
	ProtoMinor int
	Status     string // e.g. "200 OK"
	StatusCode int
	Reason     string
	Header     Header
	// Trailer is populated once a chunked Body has been read to EOF.
	Trailer Header

	ContentLength int64 // -1 if unknown
	Chunked       bool
	// Close reports that the connection will not be reused after Body is done.
	Close bool

	Endpoint Endpoint
	Request  *Request
	Body     io.ReadCloser
}
