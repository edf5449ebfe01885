package httpclient

import (
	"context"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "course-grader/1.0"

// RestyClient implements Client on top of resty. The cookie jar resty.New
// installs is removed; callers attach session cookies explicitly.
type RestyClient struct {
	rc *resty.Client
}

func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{rc: NewRestyHTTPClient(timeout)}
}

// NewRestyHTTPClient returns the configured resty client itself, for callers
// that build requests directly.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	c := resty.New().SetHeader("User-Agent", userAgent).SetCookieJar(nil)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

func (r *RestyClient) Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error) {
	req := r.request(ctx, headers)
	if body != nil {
		req.SetBody(body)
	}
	return wrap(req.Execute(method, url))
}

func (r *RestyClient) Upload(ctx context.Context, url string, headers map[string]string, field, filename string, rd io.Reader) (Response, error) {
	return wrap(r.request(ctx, headers).SetFileReader(field, filename, rd).Post(url))
}

func (r *RestyClient) request(ctx context.Context, headers map[string]string) *resty.Request {
	req := r.rc.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	return req
}

func wrap(resp *resty.Response, err error) (Response, error) {
	if err != nil {
		return nil, err
	}
	return restyResponse{resp}, nil
}

type restyResponse struct {
	*resty.Response
}
