// Package domain holds the payloads exchanged with the grading backend
// and the records the watcher keeps about them.
package domain

import (
	"net/url"
	"strings"
	"time"
)

// Course is an entry of the course listing.
type Course struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Semester string `json:"semester"`
	Logo     string `json:"logo"`
	Email    string `json:"email"`
}

// CourseDetails is the single-course view.
type CourseDetails struct {
	ID                 string `json:"id"`
	Config             string `json:"config"`
	Name               string `json:"name"`
	Semester           string `json:"semester"`
	Email              string `json:"email"`
	GitHubOrganization string `json:"github-organization"`
	GoogleSpreadsheet  string `json:"google-spreadsheet"`
}

// RegistrationForm binds a student's full name to a GitHub account.
type RegistrationForm struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Patronymic string `json:"patronymic"`
	GitHub     string `json:"github"`
}

const (
	RegistrationRegistered        = "registered"
	RegistrationAlreadyRegistered = "already_registered"
)

type RegistrationResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const (
	GradeStatusUpdated = "updated"
	GradeStatusPending = "pending"
)

// GradeResult is the backend verdict for one lab submission.
type GradeResult struct {
	Status       string       `json:"status"`
	Result       string       `json:"result,omitempty"`
	Message      string       `json:"message"`
	Passed       string       `json:"passed,omitempty"`
	Checks       []string     `json:"checks,omitempty"`
	FilesChecked FilesChecked `json:"files_checked"`
}

// Final reports whether the result will not change on a later grade call.
func (g GradeResult) Final() bool {
	return strings.EqualFold(g.Status, GradeStatusUpdated)
}

type FilesChecked struct {
	Required []string `json:"required"`
	Tests    []string `json:"tests"`
}

// Submission identifies one student's lab work to grade.
type Submission struct {
	CourseID string `json:"course_id" yaml:"course_id"`
	GroupID  string `json:"group_id" yaml:"group_id"`
	LabID    string `json:"lab_id" yaml:"lab_id"`
	GitHub   string `json:"github" yaml:"github"`
}

// Key is a stable identifier for the submission; each part is path-escaped so "/" stays a separator.
func (s Submission) Key() string {
	parts := []string{s.CourseID, s.GroupID, s.LabID, s.GitHub}
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// GradeRecord is a stored grading outcome.
type GradeRecord struct {
	Submission Submission  `json:"submission"`
	Result     GradeResult `json:"result"`
	GradedAt   time.Time   `json:"graded_at"`
}

// AuthStatus reports whether the admin session is valid.
type AuthStatus struct {
	Authenticated bool `json:"authenticated"`
}

// CourseSource is the raw YAML definition of a course.
type CourseSource struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Message is a plain acknowledgement; the backend uses either key.
type Message struct {
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Text returns whichever field the backend filled.
func (m Message) Text() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Detail
}
