package courses

import (
	"fmt"
	"net/url"
	"strings"
)

// Path placeholders understood by Endpoints templates.
const (
	ParamCourseID = "courseId"
	ParamGroupID  = "groupId"
	ParamLabID    = "labId"
)

// Endpoints holds the path template of every operation. Placeholders are
// written as {courseId}, {groupId} and {labId}.
type Endpoints struct {
	Courses      string
	Course       string
	Groups       string
	Labs         string
	Register     string
	Grade        string
	CourseSource string
	CourseUpload string
	AdminLogin   string
	AdminCheck   string
	AdminLogout  string
}

// DefaultEndpoints returns the routes served by the grading backend.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Courses:      "/courses",
		Course:       "/courses/{courseId}",
		Groups:       "/courses/{courseId}/groups",
		Labs:         "/courses/{courseId}/groups/{groupId}/labs",
		Register:     "/courses/{courseId}/groups/{groupId}/register",
		Grade:        "/courses/{courseId}/groups/{groupId}/labs/{labId}/grade",
		CourseSource: "/courses/{courseId}/edit",
		CourseUpload: "/courses/upload",
		AdminLogin:   "/api/admin/login",
		AdminCheck:   "/api/admin/check-auth",
		AdminLogout:  "/api/admin/logout",
	}
}

// withDefaults fills empty templates from DefaultEndpoints.
func (e Endpoints) withDefaults() Endpoints {
	def := DefaultEndpoints()
	fill := func(v *string, fallback string) {
		if strings.TrimSpace(*v) == "" {
			*v = fallback
		}
	}
	fill(&e.Courses, def.Courses)
	fill(&e.Course, def.Course)
	fill(&e.Groups, def.Groups)
	fill(&e.Labs, def.Labs)
	fill(&e.Register, def.Register)
	fill(&e.Grade, def.Grade)
	fill(&e.CourseSource, def.CourseSource)
	fill(&e.CourseUpload, def.CourseUpload)
	fill(&e.AdminLogin, def.AdminLogin)
	fill(&e.AdminCheck, def.AdminCheck)
	fill(&e.AdminLogout, def.AdminLogout)
	return e
}

// expandPath substitutes params into template, escaping each value as a single path segment.
func expandPath(template string, params map[string]string) (string, error) {
	path := template
	for name, value := range params {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	if i := strings.IndexByte(path, '{'); i >= 0 {
		return "", fmt.Errorf("path %q has unresolved placeholder at %d", template, i)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, nil
}

// joinURL appends path to base without doubling the separator.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
