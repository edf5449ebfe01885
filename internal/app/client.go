package app

import (
	"fmt"

	"github.com/Adda-Baaj/course-grader/internal/config"
	"github.com/Adda-Baaj/course-grader/internal/logger"
	"github.com/Adda-Baaj/course-grader/pkg/courses"
)

// NewClient builds a backend client from application config. obs may be nil.
func NewClient(cfg *config.Config, log logger.Logger, obs courses.Observer) (*courses.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	opts := []courses.Option{courses.WithLogger(log)}
	if obs != nil {
		opts = append(opts, courses.WithObserver(obs))
	}
	client, err := courses.New(courses.Config{
		BaseURL:           cfg.APIBaseURL,
		GradeBaseURL:      cfg.APIGradeBaseURL,
		Timeout:           cfg.APITimeout,
		DecodeErrorBodies: cfg.DecodeErrorBodies,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init course client: %w", err)
	}
	return client, nil
}
