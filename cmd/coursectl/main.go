package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/Adda-Baaj/course-grader/internal/app"
	"github.com/Adda-Baaj/course-grader/internal/config"
	"github.com/Adda-Baaj/course-grader/internal/logger"
	"github.com/Adda-Baaj/course-grader/pkg/courses"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "coursectl: %v\n", err)
		}
		os.Exit(1)
	}
}

// env is what every command receives.
type env struct {
	cfg    *config.Config
	client *courses.Client
	log    logger.Logger
	stdout io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) (any, error)
}

var commands = map[string]command{
	"courses":  {usage: "courses", run: cmdCourses},
	"course":   {usage: "course <course-id>", run: cmdCourse},
	"groups":   {usage: "groups <course-id>", run: cmdGroups},
	"labs":     {usage: "labs <course-id> <group-id>", run: cmdLabs},
	"register": {usage: "register <course-id> <group-id> --name N --surname S [--patronymic P] --github G", run: cmdRegister},
	"grade":    {usage: "grade <course-id> <group-id> <lab-id> --github G", run: cmdGrade},
	"admin":    {usage: "admin login|check|logout|delete|source|update|upload ...", run: cmdAdmin},
	"history":  {usage: "history [--export grades.xlsx|-]", run: cmdHistory},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("coursectl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.String("base-url", "", "backend base url (overrides API_BASE_URL)")
	fs.String("grade-base-url", "", "base url for the grade call (overrides API_GRADE_BASE_URL)")
	fs.Int64("timeout", 0, "request timeout in seconds (overrides API_TIMEOUT_SECONDS)")
	fs.Bool("decode-error-bodies", false, "return error response bodies as results")
	fs.String("log-level", "", "log level written to stderr (default warn)")
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	rest := fs.Args()
	if len(rest) == 0 || rest[0] == "help" {
		printUsage(stderr, fs)
		return errUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		printUsage(stderr, fs)
		return errUsage
	}

	v := viper.New()
	for flag, key := range map[string]string{
		"base-url":            "api_base_url",
		"grade-base-url":      "api_grade_base_url",
		"timeout":             "api_timeout_seconds",
		"decode-error-bodies": "api_decode_error_bodies",
		"log-level":           "log_level",
	} {
		if f := fs.Lookup(flag); f.Changed {
			_ = v.BindPFlag(key, f)
		}
	}
	cfg, err := config.LoadWith(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !fs.Changed("log-level") && os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}

	log, err := logger.InitWriter(cfg, stderr)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	client, err := app.NewClient(cfg, log, nil)
	if err != nil {
		return err
	}

	out, err := cmd.run(ctx, &env{cfg: cfg, client: client, log: log, stdout: stdout}, rest[1:])
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: coursectl %s\n", cmd.usage)
		}
		// Legacy mode prints whatever the backend answered when it is JSON.
		var apiErr *courses.APIError
		if cfg.DecodeErrorBodies && errors.As(err, &apiErr) && json.Valid(apiErr.Body) {
			return printJSON(stdout, json.RawMessage(apiErr.Body))
		}
		return err
	}
	if out == nil {
		return nil
	}
	return printJSON(stdout, out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: coursectl [flags] <command> [args]\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	b.WriteString("\nflags:\n")
	b.WriteString(fs.FlagUsages())
	fmt.Fprint(w, b.String())
}
