// Package grading runs grading passes over a roster of submissions.
package grading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adda-Baaj/course-grader/internal/domain"
	"github.com/Adda-Baaj/course-grader/internal/logger"
	"github.com/Adda-Baaj/course-grader/internal/storage"
	"github.com/Adda-Baaj/course-grader/pkg/publishers"
)

// Grader triggers grading for one submission on the backend.
type Grader interface {
	GradeLab(ctx context.Context, courseID, groupID, labID, github string) (domain.GradeResult, error)
}

// EventPublisher delivers grade events; *publishers.Fanout satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Recorder receives grading counters. *metrics.Recorder satisfies it.
type Recorder interface {
	ObserveGrade(status string)
	ObservePublishFailure()
}

// Summary counts the outcomes of one pass.
type Summary struct {
	Skipped   int `json:"skipped"`
	Pending   int `json:"pending"`
	Graded    int `json:"graded"`
	Failed    int `json:"failed"`
	Published int `json:"published"`
}

// Service grades submissions sequentially, persisting and publishing final results.
type Service struct {
	grader    Grader
	store     storage.Store
	publisher EventPublisher
	recorder  Recorder
	log       logger.Logger
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithRecorder(rec Recorder) Option {
	return func(s *Service) {
		s.recorder = rec
	}
}

// WithClock overrides the time source used for GradedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a grading service. A nil publisher disables publishing.
func NewService(grader Grader, store storage.Store, publisher EventPublisher, opts ...Option) *Service {
	s := &Service{
		grader:    grader,
		store:     store,
		publisher: publisher,
		log:       logger.NopLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one grading pass. Per-submission errors are joined; the pass
// continues past them and stops early only when ctx is done.
func (s *Service) Run(ctx context.Context, subs []domain.Submission) (Summary, error) {
	var sum Summary
	if s == nil || s.grader == nil || s.store == nil {
		return sum, fmt.Errorf("grading service is not initialized")
	}
	if len(subs) == 0 {
		return sum, fmt.Errorf("no submissions configured for grading")
	}

	var errs []error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.grade(ctx, sub, &sum); err != nil {
			sum.Failed++
			errs = append(errs, err)
			s.log.ErrorObj("submission grading failed", "grade_error", map[string]any{
				"submission": sub.Key(),
				"error":      err.Error(),
			})
		}
	}
	return sum, errors.Join(errs...)
}

func (s *Service) grade(ctx context.Context, sub domain.Submission, sum *Summary) error {
	key := sub.Key()
	prev, found, err := s.store.Lookup(key)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", key, err)
	}
	if found && prev.Result.Final() {
		sum.Skipped++
		return nil
	}

	res, err := s.grader.GradeLab(ctx, sub.CourseID, sub.GroupID, sub.LabID, sub.GitHub)
	if err != nil {
		return fmt.Errorf("grade %s: %w", key, err)
	}
	s.observeGrade(res.Status)

	if !res.Final() {
		sum.Pending++
		s.log.InfoObj("grade pending", "grade_pending", map[string]any{
			"submission": key,
			"status":     res.Status,
			"message":    res.Message,
		})
		return nil
	}

	rec := domain.GradeRecord{Submission: sub, Result: res, GradedAt: s.now().UTC()}
	if err := s.store.Record(rec); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	sum.Graded++
	s.log.InfoObj("grade recorded", "grade_result", map[string]any{
		"submission": key,
		"result":     res.Result,
		"passed":     res.Passed,
	})

	if s.publisher == nil {
		return nil
	}
	evt := publishers.NewEvent(rec)
	delivered, err := s.publisher.Publish(ctx, evt)
	sum.Published += delivered
	if err != nil {
		if s.recorder != nil {
			s.recorder.ObservePublishFailure()
		}
		return fmt.Errorf("publish %s (event %s): %w", key, evt.ID, err)
	}
	return nil
}

func (s *Service) observeGrade(status string) {
	if s.recorder != nil {
		s.recorder.ObserveGrade(status)
	}
}
