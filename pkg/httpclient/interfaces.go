// Package httpclient is the transport used by the course client and the
// webhook publisher.
package httpclient

import (
	"context"
	"io"
	"net/http"
)

// Response exposes the parts of a reply the callers decode.
type Response interface {
	Body() []byte
	StatusCode() int
	// Cookies are the cookies set by the response.
	Cookies() []*http.Cookie
}

// Client sends requests to absolute URLs. Implementations must be safe for
// concurrent use and must not replay cookies on their own.
type Client interface {
	// Send issues a request with a raw body; a nil body sends none.
	Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error)
	// Upload posts a single-file multipart form.
	Upload(ctx context.Context, url string, headers map[string]string, field, filename string, r io.Reader) (Response, error)
}
