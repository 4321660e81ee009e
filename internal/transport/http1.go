package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/frankli0324/go-h1client/internal/http"
	"github.com/frankli0324/go-h1client/internal/transport/chunked"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/http/httpguts"
)

// HTTP1 implements HTTP/1.1 message syntax (RFC9112) for a client.
type HTTP1 struct {
	MaxHeaderBytes int // limit on the size of a response head, default 1MiB
}

// methods that are expected to carry a body, an empty one is announced
// with "Content-Length: 0"
var bodyMethods = map[string]bool{"POST": true, "PUT": true, "PATCH": true}

// Write writes the request head and body. errors returned by the body
// source are returned as is, it's up to the caller to tell them apart
// from errors of w.
func (t HTTP1) Write(w io.Writer, r *http.PreparedRequest) error {
	body, err := r.GetBody() // can write body
	if err != nil {
		return err
	}
	if body != nil {
		defer body.Close() // request body is ALWAYS closed
	}

	if err := t.writeHeader(w, r); err != nil {
		return err
	}
	if r.NoBody || body == nil {
		return nil
	}
	if r.ContentLength >= 0 {
		if _, err := io.CopyN(w, body, r.ContentLength); err != nil {
			if err == io.EOF {
				err = http.ErrBodyShorterThanSize
			}
			return err
		}
		return nil
	}
	cw := chunked.NewChunkedWriter(w)
	if _, err := io.Copy(cw, body); err != nil {
		return err
	}
	return cw.CloseWithTrailer(r.Trailer)
}

// writeHeader writes the request line and header part of an http 1.1 request
// e.g.:
//
//	GET / HTTP/1.1\r\n
//	Host: www.google.com\r\n
//	X-Xx-Yy: cccccc\r\n
//	\r\n
//
// the head is assembled in a pooled buffer and handed to w in one call.
func (t HTTP1) writeHeader(w io.Writer, r *http.PreparedRequest) error {
	header := bytebufferpool.Get()
	defer bytebufferpool.Put(header)

	header.WriteString(r.Method)
	header.WriteByte(' ')
	header.WriteString(r.U.RequestURI())
	header.WriteString(" HTTP/1.1\r\n")

	header.WriteString("Host: ")
	header.WriteString(r.HeaderHost)
	header.WriteString("\r\n")
	for _, f := range r.Header {
		header.WriteString(f.Name)
		header.WriteString(": ")
		header.WriteString(f.Value)
		header.WriteString("\r\n")
	}
	switch {
	case r.NoBody:
		if r.ExplicitLength || bodyMethods[r.Method] {
			header.WriteString("Content-Length: 0\r\n")
		}
	case r.ContentLength >= 0:
		header.WriteString("Content-Length: ")
		header.B = strconv.AppendInt(header.B, r.ContentLength, 10)
		header.WriteString("\r\n")
	default:
		header.WriteString("Transfer-Encoding: chunked\r\n")
		if len(r.Trailer) > 0 {
			header.WriteString("Trailer: ")
			for i, f := range r.Trailer {
				if i > 0 {
					header.WriteString(", ")
				}
				header.WriteString(f.Name)
			}
			header.WriteString("\r\n")
		}
	}
	header.WriteString("\r\n")
	_, err := w.Write(header.B)
	return err
}

// Read decodes one response head from r and attaches a body reader that
// honors the message framing. req is needed since the framing of a
// response depends on the request method.
func (t HTTP1) Read(r *bufio.Reader, req *http.PreparedRequest, resp *http.Response) (err error) {
	hr := newHeadReader(r, t.MaxHeaderBytes)

	line, err := hr.readLine()
	if err != nil {
		if err == io.EOF {
			return &ProtocolError{"status line", ErrEmptyResponse}
		}
		return wrapProto("status line", err)
	}
	if err := parseStatusLine(string(line), resp); err != nil {
		return err
	}

	// Parse the response headers.
	resp.Header, err = hr.readHeader("header")
	if err != nil {
		return err
	}
	return t.readTransfer(r, req, resp)
}

// parseStatusLine parses "HTTP/1.x SP 3DIGIT [SP reason]"
func parseStatusLine(line string, resp *http.Response) error {
	proto, status, ok := strings.Cut(line, " ")
	if !ok {
		return &ProtocolError{What: "status line " + quote([]byte(line))}
	}
	major, minor, ok := parseHTTPVersion(proto)
	if !ok || major != 1 {
		return &ProtocolError{What: "http version " + quote([]byte(proto))}
	}
	resp.Proto, resp.ProtoMajor, resp.ProtoMinor = proto, major, minor
	resp.Status = status

	statusCode, reason, _ := strings.Cut(status, " ")
	if len(statusCode) != 3 {
		return &ProtocolError{What: "status code " + quote([]byte(statusCode))}
	}
	code, err := strconv.Atoi(statusCode)
	if err != nil || code < 100 {
		return &ProtocolError{What: "status code " + quote([]byte(statusCode))}
	}
	resp.StatusCode, resp.Reason = code, reason
	return nil
}

func parseHTTPVersion(vers string) (major, minor int, ok bool) {
	if len(vers) != len("HTTP/1.1") || !strings.HasPrefix(vers, "HTTP/") || vers[6] != '.' {
		return 0, 0, false
	}
	maj, mnr := vers[5], vers[7]
	if maj < '0' || maj > '9' || mnr < '0' || mnr > '9' {
		return 0, 0, false
	}
	return int(maj - '0'), int(mnr - '0'), true
}

func (t HTTP1) readTransfer(r *bufio.Reader, req *http.PreparedRequest, resp *http.Response) error {
	resp.Close = shouldClose(resp.ProtoMinor, resp.Header) || (req != nil && req.Close)
	resp.ContentLength = -1

	cl, err := contentLength(resp.Header)
	if err != nil {
		return err
	}
	te := resp.Header.Values("Transfer-Encoding")

	noBody := resp.StatusCode/100 == 1 || resp.StatusCode == 204 || resp.StatusCode == 304 ||
		(req != nil && req.Method == "HEAD")
	switch {
	case noBody:
		if cl >= 0 && resp.StatusCode/100 != 1 {
			resp.ContentLength = cl
		} else if resp.StatusCode/100 == 1 || resp.StatusCode == 204 {
			resp.ContentLength = 0
		}
		resp.Body = http.NoBody
	case len(te) > 0:
		// the final coding must be chunked, otherwise the body is delimited
		// by the connection close (RFC9112 6.3)
		if !isChunked(te) {
			resp.Close = true
			resp.Body = io.NopCloser(r)
			return nil
		}
		resp.Chunked = true
		resp.Body = io.NopCloser(protoReader{chunked.NewChunkedReader(r, func(br *bufio.Reader) error {
			trailer, err := newHeadReader(br, t.MaxHeaderBytes).readHeader("trailer")
			if err != nil {
				return err
			}
			if len(trailer) > 0 {
				resp.Trailer = trailer
			}
			return nil
		}), "chunked body"})
	case cl == 0:
		resp.ContentLength = 0
		resp.Body = http.NoBody
	case cl > 0:
		resp.ContentLength = cl
		resp.Body = io.NopCloser(&fixedReader{r, cl})
	default:
		// neither framing header: the body runs until the peer closes
		resp.Close = true
		resp.Body = io.NopCloser(r)
	}
	return nil
}

func isChunked(te []string) bool {
	last := te[len(te)-1]
	if i := strings.LastIndexByte(last, ','); i >= 0 {
		last = last[i+1:]
	}
	return strings.EqualFold(strings.TrimSpace(last), "chunked")
}

// contentLength returns -1 if no Content-Length is present.
func contentLength(h http.Header) (int64, error) {
	contentLens := h.Values("Content-Length")
	if len(contentLens) == 0 {
		return -1, nil
	}
	// Hardening against HTTP request smuggling, taken from standard library
	first := strings.TrimSpace(contentLens[0])
	for _, ct := range contentLens[1:] {
		if first != strings.TrimSpace(ct) {
			return 0, &ProtocolError{What: "content-length", Err: fmt.Errorf("message cannot contain multiple Content-Length headers; got %q", contentLens)}
		}
	}
	n, err := strconv.ParseUint(first, 10, 63)
	if err != nil {
		return 0, &ProtocolError{What: "content-length " + quote([]byte(first))}
	}
	return int64(n), nil
}

func shouldClose(minor int, h http.Header) bool {
	conn := h.Values("Connection")
	if httpguts.HeaderValuesContainsToken(conn, "close") {
		return true
	}
	if minor == 0 {
		return !httpguts.HeaderValuesContainsToken(conn, "keep-alive")
	}
	return false
}

// IsProtocolError reports whether err was caused by malformed framing.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
