// Package courses is a client for the course grading backend REST API.
package courses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/Adda-Baaj/course-grader/pkg/httpclient"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	defaultTimeout = 10 * time.Second
)

// Operation names, used in errors, logs and metrics.
const (
	OpListCourses        = "list_courses"
	OpGetCourseDetails   = "get_course_details"
	OpListGroups         = "list_groups"
	OpListLabs           = "list_labs"
	OpRegisterAndCheck   = "register_and_check"
	OpGradeLab           = "grade_lab"
	OpLogin              = "admin_login"
	OpCheckAuth          = "admin_check_auth"
	OpLogout             = "admin_logout"
	OpDeleteCourse       = "delete_course"
	OpGetCourseSource    = "get_course_source"
	OpUpdateCourseSource = "update_course_source"
	OpUploadCourse       = "upload_course"
)

// Config describes how to reach the backend.
type Config struct {
	BaseURL string
	// GradeBaseURL overrides BaseURL for the grade call only.
	GradeBaseURL string
	Endpoints    Endpoints
	Timeout      time.Duration
	Headers      map[string]string
	// DecodeErrorBodies decodes non-2xx bodies into the result instead of
	// returning *APIError. A body that does not fit the result, or leaves it
	// empty, is still returned as *APIError.
	DecodeErrorBodies bool
}

// Logger defines the logging surface the client relies on.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}

// Observer receives one call per completed request. statusCode is 0 when no response arrived.
type Observer interface {
	ObserveRequest(operation string, statusCode int, elapsed time.Duration)
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the resty transport.
func WithHTTPClient(hc httpclient.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(log Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(c *Client) {
		c.observer = obs
	}
}

// Client issues one HTTP request per call. It is safe for concurrent use.
type Client struct {
	baseURL           string
	gradeBaseURL      string
	endpoints         Endpoints
	headers           map[string]string
	decodeErrorBodies bool

	http     httpclient.Client
	log      Logger
	observer Observer

	// session holds the admin cookies; only admin requests carry them.
	session adminSession
}

// New builds a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	gradeBase := base
	if cfg.GradeBaseURL != "" {
		if gradeBase, err = normalizeBaseURL(cfg.GradeBaseURL); err != nil {
			return nil, fmt.Errorf("grade base url: %w", err)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	c := &Client{
		baseURL:           base,
		gradeBaseURL:      gradeBase,
		endpoints:         cfg.Endpoints.withDefaults(),
		headers:           headers,
		decodeErrorBodies: cfg.DecodeErrorBodies,
		log:               noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(cfg.Timeout)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Request describes a single call for Do.
type Request struct {
	Operation string
	Method    string
	// Path is an Endpoints-style template expanded with Params.
	Path   string
	Params map[string]string
	// BaseURL overrides the client base for this request.
	BaseURL string
	// Body is JSON-encoded when non-nil.
	Body any

	admin bool
}

// Do sends req and decodes the response body into out (skipped when out is nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	op := req.Operation
	if op == "" {
		op = req.Method + " " + req.Path
	}
	target, err := c.resolve(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var payload []byte
	if req.Body != nil {
		if payload, err = json.Marshal(req.Body); err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
	}

	return c.exchange(op, target, out, req.admin, func(headers map[string]string) (httpclient.Response, error) {
		if payload != nil {
			headers["Content-Type"] = "application/json"
		}
		return c.http.Send(ctx, req.Method, target, headers, payload)
	})
}

func (c *Client) resolve(req Request) (string, error) {
	base := c.baseURL
	if req.BaseURL != "" {
		base = req.BaseURL
	}
	path, err := expandPath(req.Path, req.Params)
	if err != nil {
		return "", err
	}
	return joinURL(base, path), nil
}

// exchange runs send, reports it and decodes the result. Admin exchanges
// carry the session cookies and pick up the ones the response sets.
func (c *Client) exchange(op, target string, out any, admin bool, send func(headers map[string]string) (httpclient.Response, error)) error {
	headers := c.requestHeaders()
	if admin {
		if cookie := c.session.header(); cookie != "" {
			headers["Cookie"] = cookie
		}
	}
	start := time.Now()
	resp, err := send(headers)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(op, 0, elapsed)
		c.log.WarnObj("backend request failed", "request_error", map[string]any{
			"operation": op,
			"url":       target,
			"error":     err.Error(),
		})
		return fmt.Errorf("%s: request: %w", op, err)
	}
	c.observe(op, resp.StatusCode(), elapsed)
	if admin {
		c.session.update(resp.Cookies())
	}
	c.log.DebugObj("backend request completed", "request_meta", map[string]any{
		"operation":  op,
		"url":        target,
		"status":     resp.StatusCode(),
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return c.decode(op, resp, out)
}

func (c *Client) requestHeaders() map[string]string {
	headers := make(map[string]string, len(c.headers)+2)
	for k, v := range c.headers {
		headers[k] = v
	}
	headers["Accept"] = "application/json"
	return headers
}

func (c *Client) observe(op string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(op, status, elapsed)
	}
}

func (c *Client) decode(op string, resp httpclient.Response, out any) error {
	status := resp.StatusCode()
	body := resp.Body()
	if !isSuccess(status) {
		return c.decodeErrorBody(op, status, body, out)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%s: %w: empty body (status %d)", op, ErrDecode, status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w (status %d): %w", op, ErrDecode, status, err)
	}
	return nil
}

// decodeErrorBody handles a non-2xx response. In legacy mode the body becomes
// the result only when it decodes into out with no unknown fields and fills
// something in; otherwise the caller gets *APIError.
func (c *Client) decodeErrorBody(op string, status int, body []byte, out any) error {
	apiErr := newAPIError(op, status, body)
	if !c.decodeErrorBodies {
		return apiErr
	}
	if out == nil {
		return nil
	}
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return apiErr
	}
	fresh := reflect.New(target.Type().Elem())
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(fresh.Interface()); err != nil || fresh.Elem().IsZero() {
		return apiErr
	}
	target.Elem().Set(fresh.Elem())
	return nil
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
