package courses

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Adda-Baaj/course-grader/internal/domain"
	"github.com/Adda-Baaj/course-grader/pkg/httpclient"
	"gopkg.in/yaml.v3"
)

// Admin calls carry the admin_session cookie set by Login. The client keeps
// it apart from the transport, so student operations never send it.

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login opens an admin session.
func (c *Client) Login(ctx context.Context, login, password string) (domain.AuthStatus, error) {
	var out domain.AuthStatus
	err := c.Do(ctx, Request{
		Operation: OpLogin,
		admin:     true,
		Method:    http.MethodPost,
		Path:      c.endpoints.AdminLogin,
		Body:      loginRequest{Login: login, Password: password},
	}, &out)
	return out, err
}

// CheckAuth reports whether the current admin session is still valid.
func (c *Client) CheckAuth(ctx context.Context) (domain.AuthStatus, error) {
	var out domain.AuthStatus
	err := c.Do(ctx, Request{
		Operation: OpCheckAuth,
		admin:     true,
		Method:    http.MethodGet,
		Path:      c.endpoints.AdminCheck,
	}, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context) (domain.Message, error) {
	var out domain.Message
	err := c.Do(ctx, Request{
		Operation: OpLogout,
		admin:     true,
		Method:    http.MethodPost,
		Path:      c.endpoints.AdminLogout,
	}, &out)
	if err == nil {
		c.session.clear()
	}
	return out, err
}

func (c *Client) DeleteCourse(ctx context.Context, courseID string) (domain.Message, error) {
	var out domain.Message
	err := c.Do(ctx, Request{
		Operation: OpDeleteCourse,
		admin:     true,
		Method:    http.MethodDelete,
		Path:      c.endpoints.Course,
		Params:    map[string]string{ParamCourseID: courseID},
	}, &out)
	return out, err
}

// GetCourseSource returns the YAML a course is defined by.
func (c *Client) GetCourseSource(ctx context.Context, courseID string) (domain.CourseSource, error) {
	var out domain.CourseSource
	err := c.Do(ctx, Request{
		Operation: OpGetCourseSource,
		admin:     true,
		Method:    http.MethodGet,
		Path:      c.endpoints.CourseSource,
		Params:    map[string]string{ParamCourseID: courseID},
	}, &out)
	return out, err
}

type courseSourceRequest struct {
	Content string `json:"content"`
}

// UpdateCourseSource replaces a course definition. Content that is not valid
// YAML is rejected before any request is made.
func (c *Client) UpdateCourseSource(ctx context.Context, courseID, content string) (domain.Message, error) {
	if err := validateYAML([]byte(content)); err != nil {
		return domain.Message{}, fmt.Errorf("%s: %w", OpUpdateCourseSource, err)
	}
	var out domain.Message
	err := c.Do(ctx, Request{
		Operation: OpUpdateCourseSource,
		admin:     true,
		Method:    http.MethodPut,
		Path:      c.endpoints.CourseSource,
		Params:    map[string]string{ParamCourseID: courseID},
		Body:      courseSourceRequest{Content: content},
	}, &out)
	return out, err
}

// UploadCourse uploads a new course YAML file named filename.
func (c *Client) UploadCourse(ctx context.Context, filename string, r io.Reader) (domain.Message, error) {
	var out domain.Message
	// The backend matches the extension case-sensitively.
	if !strings.HasSuffix(filename, ".yaml") && !strings.HasSuffix(filename, ".yml") {
		return out, fmt.Errorf("%s: file %q must have a .yaml or .yml extension", OpUploadCourse, filename)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return out, fmt.Errorf("%s: read file: %w", OpUploadCourse, err)
	}
	if err := validateYAML(raw); err != nil {
		return out, fmt.Errorf("%s: %w", OpUploadCourse, err)
	}

	path, err := expandPath(c.endpoints.CourseUpload, nil)
	if err != nil {
		return out, fmt.Errorf("%s: %w", OpUploadCourse, err)
	}
	target := joinURL(c.baseURL, path)
	err = c.exchange(OpUploadCourse, target, &out, true, func(headers map[string]string) (httpclient.Response, error) {
		return c.http.Upload(ctx, target, headers, "file", filepath.Base(filename), bytes.NewReader(raw))
	})
	return out, err
}

func validateYAML(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid course yaml: %w", err)
	}
	return nil
}
