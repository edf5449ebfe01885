// Package roster loads the list of submissions the watcher grades (YAML, JSON or an XLSX sheet).
package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adda-Baaj/course-grader/internal/domain"
	"gopkg.in/yaml.v3"
)

type rosterFile struct {
	Submissions []domain.Submission `json:"submissions" yaml:"submissions"`
}

// Roster is an immutable, validated set of submissions in file order.
type Roster struct {
	submissions []domain.Submission
}

// Load reads and validates a roster file.
func Load(path string) (*Roster, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("roster file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}

	return Parse(raw, filepath.Ext(path))
}

// Parse decodes roster content; ext selects the format, empty tries all.
func Parse(data []byte, ext string) (*Roster, error) {
	parsed, err := parseRoster(data, ext)
	if err != nil {
		return nil, err
	}
	if len(parsed.Submissions) == 0 {
		return nil, errors.New("roster file contains no submissions entries")
	}

	r := &Roster{submissions: make([]domain.Submission, len(parsed.Submissions))}
	seen := make(map[string]struct{}, len(parsed.Submissions))
	for i := range parsed.Submissions {
		s := sanitizeSubmission(parsed.Submissions[i])
		if err := validateSubmission(s); err != nil {
			return nil, fmt.Errorf("submissions[%d]: %w", i, err)
		}
		key := s.Key()
		if _, exists := seen[key]; exists {
			return nil, fmt.Errorf("duplicate submission %q", key)
		}
		seen[key] = struct{}{}
		r.submissions[i] = s
	}
	return r, nil
}

type unmarshalFn func([]byte, any) error

func parseRoster(data []byte, ext string) (rosterFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == ".xlsx" {
		return parseSheet(data)
	}

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var errs []error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var out rosterFile
		if err := d.fn(data, &out); err != nil {
			errs = append(errs, fmt.Errorf("decode %s roster: %w", d.name, err))
			continue
		}
		return out, nil
	}
	if len(errs) == 0 {
		return rosterFile{}, fmt.Errorf("roster file extension %q not recognized (expected YAML, JSON or XLSX)", ext)
	}
	return rosterFile{}, errors.Join(errs...)
}

func sanitizeSubmission(s domain.Submission) domain.Submission {
	s.CourseID = strings.TrimSpace(s.CourseID)
	s.GroupID = strings.TrimSpace(s.GroupID)
	s.LabID = strings.TrimSpace(s.LabID)
	s.GitHub = strings.TrimSpace(s.GitHub)
	return s
}

func validateSubmission(s domain.Submission) error {
	if s.CourseID == "" {
		return errors.New("course_id is required")
	}
	if s.GroupID == "" {
		return fmt.Errorf("group_id is required for course %q", s.CourseID)
	}
	if s.LabID == "" {
		return fmt.Errorf("lab_id is required for course %q group %q", s.CourseID, s.GroupID)
	}
	if s.GitHub == "" {
		return fmt.Errorf("github is required for course %q group %q lab %q", s.CourseID, s.GroupID, s.LabID)
	}
	return nil
}

// All returns a copy of the submissions in file order.
func (r *Roster) All() []domain.Submission {
	if r == nil {
		return nil
	}
	out := make([]domain.Submission, len(r.submissions))
	copy(out, r.submissions)
	return out
}

func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.submissions)
}
