package publishers

import (
	"time"

	"github.com/Adda-Baaj/course-grader/internal/domain"
	"github.com/google/uuid"
)

// Event represents the grade payload published downstream.
type Event struct {
	ID       string    `json:"id"`
	CourseID string    `json:"course_id"`
	GroupID  string    `json:"group_id"`
	LabID    string    `json:"lab_id"`
	GitHub   string    `json:"github"`
	Status   string    `json:"status"`
	Result   string    `json:"result"`
	Passed   string    `json:"passed"`
	Message  string    `json:"message"`
	GradedAt time.Time `json:"graded_at"`
}

// NewEvent constructs an Event for a stored grade record.
func NewEvent(rec domain.GradeRecord) Event {
	return Event{
		ID:       uuid.NewString(),
		CourseID: rec.Submission.CourseID,
		GroupID:  rec.Submission.GroupID,
		LabID:    rec.Submission.LabID,
		GitHub:   rec.Submission.GitHub,
		Status:   rec.Result.Status,
		Result:   rec.Result.Result,
		Passed:   rec.Result.Passed,
		Message:  rec.Result.Message,
		GradedAt: rec.GradedAt.UTC(),
	}
}

// attributes are the routing attributes attached by message-queue publishers.
// Empty values are left out.
func (e Event) attributes() map[string]string {
	attrs := make(map[string]string, 3)
	for k, v := range map[string]string{
		"course_id": e.CourseID,
		"lab_id":    e.LabID,
		"status":    e.Status,
	} {
		if v != "" {
			attrs[k] = v
		}
	}
	return attrs
}
