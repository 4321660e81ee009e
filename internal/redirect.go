package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/frankli0324/go-h1client/internal/http"
)

var ErrTooManyRedirects = errors.New("too many redirects")

var safeMethods = map[string]bool{"GET": true, "HEAD": true, "OPTIONS": true, "TRACE": true}

// follow runs the handler chain once per hop. every hop disposes of its
// own connection before the next one starts.
func (c *Client) follow(ctx context.Context, pr *PreparedRequest) (*http.Response, error) {
	h := c.handler()
	for hops := 0; ; hops++ {
		resp, err := h(ctx, pr)
		if err != nil || c.opts.MaxRedirects <= 0 {
			return resp, err
		}
		next, err := redirect(pr, resp)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		if next == nil {
			return resp, nil
		}
		resp.Body.Close()
		if hops >= c.opts.MaxRedirects {
			return nil, &http.Error{Kind: http.KindRequest, Endpoint: next.Endpoint, Phase: http.PhaseResolving, Err: ErrTooManyRedirects}
		}
		pr = next
	}
}

// redirect returns the request to send after resp, or nil if resp is to
// be handed to the caller.
func redirect(pr *PreparedRequest, resp *http.Response) (*PreparedRequest, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, nil
	}
	method, body, trailer := pr.Method, pr.Request.Body, pr.Request.Trailer
	switch resp.StatusCode {
	case 301, 302, 303:
		if method != "HEAD" {
			method = "GET"
		}
		body, trailer = nil, nil
	case 307, 308:
		// the method is kept, so only requests without side effects follow
		if !safeMethods[method] || (!pr.NoBody && !pr.Replayable) {
			return nil, nil
		}
	default:
		return nil, nil
	}
	u, err := pr.U.Parse(loc)
	if err != nil {
		return nil, &http.Error{Kind: http.KindProtocol, Endpoint: pr.Endpoint, Phase: http.PhaseReadingHeaders, Err: fmt.Errorf("invalid Location %q: %w", loc, err)}
	}
	header := pr.Request.Header.Clone()
	if body == nil {
		header.Del("Content-Length")
		header.Del("Content-Type")
	}
	if !strings.EqualFold(u.Host, pr.U.Host) {
		// credentials and the virtual host are bound to the original host
		header.Del("Authorization")
		header.Del("Host")
	}
	next := &http.Request{Method: method, URL: u.String(), Body: body, Header: header, Trailer: trailer}
	return next.Prepare()
}
