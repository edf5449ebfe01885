package courses

import (
	"context"
	"net/http"

	"github.com/Adda-Baaj/course-grader/internal/domain"
)

// ListCourses returns every course the backend knows about.
func (c *Client) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var out []domain.Course
	err := c.Do(ctx, Request{
		Operation: OpListCourses,
		Method:    http.MethodGet,
		Path:      c.endpoints.Courses,
	}, &out)
	return out, err
}

// GetCourseDetails returns one course.
func (c *Client) GetCourseDetails(ctx context.Context, courseID string) (domain.CourseDetails, error) {
	var out domain.CourseDetails
	err := c.Do(ctx, Request{
		Operation: OpGetCourseDetails,
		Method:    http.MethodGet,
		Path:      c.endpoints.Course,
		Params:    map[string]string{ParamCourseID: courseID},
	}, &out)
	return out, err
}

// ListGroups returns the group names of a course.
func (c *Client) ListGroups(ctx context.Context, courseID string) ([]string, error) {
	var out []string
	err := c.Do(ctx, Request{
		Operation: OpListGroups,
		Method:    http.MethodGet,
		Path:      c.endpoints.Groups,
		Params:    map[string]string{ParamCourseID: courseID},
	}, &out)
	return out, err
}

// ListLabs returns the labs available to a group.
func (c *Client) ListLabs(ctx context.Context, courseID, groupID string) ([]string, error) {
	var out []string
	err := c.Do(ctx, Request{
		Operation: OpListLabs,
		Method:    http.MethodGet,
		Path:      c.endpoints.Labs,
		Params:    map[string]string{ParamCourseID: courseID, ParamGroupID: groupID},
	}, &out)
	return out, err
}

// RegisterAndCheck posts form as JSON. form is usually a domain.RegistrationForm.
func (c *Client) RegisterAndCheck(ctx context.Context, courseID, groupID string, form any) (domain.RegistrationResult, error) {
	var out domain.RegistrationResult
	err := c.Do(ctx, Request{
		Operation: OpRegisterAndCheck,
		Method:    http.MethodPost,
		Path:      c.endpoints.Register,
		Params:    map[string]string{ParamCourseID: courseID, ParamGroupID: groupID},
		Body:      form,
	}, &out)
	return out, err
}

type gradeRequest struct {
	GitHub string `json:"github"`
}

// GradeLab asks the backend to grade github's repository for a lab.
func (c *Client) GradeLab(ctx context.Context, courseID, groupID, labID, github string) (domain.GradeResult, error) {
	var out domain.GradeResult
	err := c.Do(ctx, Request{
		Operation: OpGradeLab,
		Method:    http.MethodPost,
		Path:      c.endpoints.Grade,
		BaseURL:   c.gradeBaseURL,
		Params: map[string]string{
			ParamCourseID: courseID,
			ParamGroupID:  groupID,
			ParamLabID:    labID,
		},
		Body: gradeRequest{GitHub: github},
	}, &out)
	return out, err
}
