package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adda-Baaj/course-grader/internal/app"
	"github.com/Adda-Baaj/course-grader/internal/config"
	"github.com/Adda-Baaj/course-grader/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gradewatch failed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("gradewatch", pflag.ContinueOnError)
	once := fs.Bool("once", false, "run a single grading pass and exit")
	fs.String("roster", "", "roster file (overrides ROSTER_FILE)")
	fs.String("publishers", "", "publishers file (overrides PUBLISHERS_FILE)")
	fs.Int64("interval", 0, "seconds between grading passes (overrides GRADE_INTERVAL)")
	fs.String("metrics-addr", "", "listen address for /metrics (overrides METRICS_ADDR)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	v := viper.New()
	bindChanged(v, fs, map[string]string{
		"roster":       "roster_file",
		"publishers":   "publishers_file",
		"interval":     "grade_interval",
		"metrics-addr": "metrics_addr",
	})

	cfg, err := config.LoadWith(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("gradewatch starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := app.NewWatcher(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize watcher", "error", err.Error())
		return err
	}

	if *once {
		return runOnce(ctx, watcher)
	}
	if err := watcher.Run(ctx); err != nil {
		return fmt.Errorf("watcher run: %w", err)
	}
	return nil
}

func runOnce(ctx context.Context, w *app.Watcher) error {
	defer w.Close()
	sum, err := w.RunOnce(ctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(sum); encErr != nil {
		return encErr
	}
	return err
}

// bindChanged binds only flags the user set, so unset flags do not mask env values.
func bindChanged(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if f := fs.Lookup(flag); f != nil && f.Changed {
			_ = v.BindPFlag(key, f)
		}
	}
}
