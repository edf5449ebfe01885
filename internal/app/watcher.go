package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Adda-Baaj/course-grader/internal/config"
	"github.com/Adda-Baaj/course-grader/internal/grading"
	"github.com/Adda-Baaj/course-grader/internal/logger"
	"github.com/Adda-Baaj/course-grader/internal/roster"
	"github.com/Adda-Baaj/course-grader/internal/storage"
	"github.com/Adda-Baaj/course-grader/pkg/metrics"
	"github.com/Adda-Baaj/course-grader/pkg/publishers"
)

// Watcher periodically grades every roster submission until its result is final.
// It owns the store, the publishers and the optional metrics endpoint.
type Watcher struct {
	cfg           *config.Config
	roster        *roster.Roster
	fanout        *publishers.Fanout
	service       *grading.Service
	recorder      *metrics.Recorder
	gradeInterval time.Duration
	log           logger.Logger
	store         storage.Store
	closeOnce     sync.Once
}

// NewWatcher builds a watcher runtime from config files.
func NewWatcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rost, err := roster.Load(cfg.RosterFile)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	log.InfoObj("roster loaded", "roster_meta", map[string]any{
		"path":        cfg.RosterFile,
		"submissions": rost.Len(),
	})

	recorder := metrics.NewRecorder()
	client, err := NewClient(cfg, log, recorder)
	if err != nil {
		return nil, err
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		RecordTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"record_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	service := grading.NewService(client, store, fanout,
		grading.WithLogger(log),
		grading.WithRecorder(recorder),
	)

	return &Watcher{
		cfg:           cfg,
		roster:        rost,
		fanout:        fanout,
		service:       service,
		recorder:      recorder,
		gradeInterval: cfg.GradeInterval,
		log:           log,
		store:         store,
	}, nil
}

// buildFanout loads the publishers file. A missing file is fatal only when publishers are required.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	path := strings.TrimSpace(cfg.PublishersFile)
	if path == "" {
		if cfg.PublishersRequired {
			return nil, fmt.Errorf("publishers_file is required")
		}
		return publishers.NewFanout(nil), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !cfg.PublishersRequired {
		log.WarnObj("publishers file not found; grade events will not be published", "publishers_file", path)
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	if len(enabled) == 0 && cfg.PublishersRequired {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	summaries := make([]map[string]string, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]string{"id": p.ID, "type": p.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// Run grades once immediately, then on every interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	defer w.Close()

	if w.cfg.MetricsAddr != "" {
		stop := w.serveMetrics(w.cfg.MetricsAddr)
		defer stop()
	}

	w.log.InfoObj("watcher loop starting", "watcher_state", map[string]any{
		"submissions":      w.roster.Len(),
		"publishers_count": w.fanout.Size(),
		"grade_interval":   w.gradeInterval.String(),
	})

	if _, err := w.RunOnce(ctx); err != nil {
		w.log.ErrorObj("initial grading pass failed", "error", err.Error())
	}

	ticker := time.NewTicker(w.gradeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.InfoObj("watcher loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.ErrorObj("scheduled grading pass failed", "error", err.Error())
			}
		}
	}
}

// RunOnce performs a single grading pass over the roster.
func (w *Watcher) RunOnce(ctx context.Context) (grading.Summary, error) {
	start := time.Now()
	subs := w.roster.All()
	w.log.InfoObj("grading pass started", "pass_meta", map[string]any{
		"submissions": len(subs),
		"started_at":  start.UTC(),
	})
	sum, err := w.service.Run(ctx, subs)
	w.log.InfoObj("grading pass completed", "pass_meta", map[string]any{
		"summary":    sum,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return sum, err
}

func (w *Watcher) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", w.recorder.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.ErrorObj("metrics server failed", "error", err.Error())
		}
	}()
	w.log.InfoObj("metrics endpoint listening", "metrics_addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// Close releases the store and publishers, logging any errors encountered.
// Run calls it on exit; callers using only RunOnce must call it themselves.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	w.closeOnce.Do(func() {
		if w.store != nil {
			if err := w.store.Close(); err != nil {
				w.log.ErrorObj("storage close failed", "error", err.Error())
			}
		}
		if err := w.fanout.Close(); err != nil {
			w.log.ErrorObj("publishers close failed", "error", err.Error())
		}
	})
}
