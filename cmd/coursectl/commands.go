package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adda-Baaj/course-grader/internal/domain"
	"github.com/Adda-Baaj/course-grader/internal/report"
	"github.com/Adda-Baaj/course-grader/internal/storage"
	"github.com/spf13/pflag"
)

// parseArgs parses flags for a subcommand and checks the positional count.
func parseArgs(name string, args []string, positional int, define func(fs *pflag.FlagSet)) ([]string, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if define != nil {
		define(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if fs.NArg() != positional {
		return nil, errUsage
	}
	return fs.Args(), nil
}

func cmdCourses(ctx context.Context, e *env, args []string) (any, error) {
	if _, err := parseArgs("courses", args, 0, nil); err != nil {
		return nil, err
	}
	return e.client.ListCourses(ctx)
}

func cmdCourse(ctx context.Context, e *env, args []string) (any, error) {
	pos, err := parseArgs("course", args, 1, nil)
	if err != nil {
		return nil, err
	}
	return e.client.GetCourseDetails(ctx, pos[0])
}

func cmdGroups(ctx context.Context, e *env, args []string) (any, error) {
	pos, err := parseArgs("groups", args, 1, nil)
	if err != nil {
		return nil, err
	}
	return e.client.ListGroups(ctx, pos[0])
}

func cmdLabs(ctx context.Context, e *env, args []string) (any, error) {
	pos, err := parseArgs("labs", args, 2, nil)
	if err != nil {
		return nil, err
	}
	return e.client.ListLabs(ctx, pos[0], pos[1])
}

func cmdRegister(ctx context.Context, e *env, args []string) (any, error) {
	var form domain.RegistrationForm
	pos, err := parseArgs("register", args, 2, func(fs *pflag.FlagSet) {
		fs.StringVar(&form.Name, "name", "", "student first name")
		fs.StringVar(&form.Surname, "surname", "", "student surname")
		fs.StringVar(&form.Patronymic, "patronymic", "", "student patronymic")
		fs.StringVar(&form.GitHub, "github", "", "github username")
	})
	if err != nil {
		return nil, err
	}
	if form.Name == "" || form.Surname == "" || form.GitHub == "" {
		return nil, errUsage
	}
	return e.client.RegisterAndCheck(ctx, pos[0], pos[1], form)
}

func cmdGrade(ctx context.Context, e *env, args []string) (any, error) {
	var github string
	pos, err := parseArgs("grade", args, 3, func(fs *pflag.FlagSet) {
		fs.StringVar(&github, "github", "", "github username")
	})
	if err != nil {
		return nil, err
	}
	if github == "" {
		return nil, errUsage
	}
	return e.client.GradeLab(ctx, pos[0], pos[1], pos[2], github)
}

// cmdAdmin runs admin operations. Each process has a fresh cookie jar, so every
// subcommand other than login signs in first when credentials are configured.
func cmdAdmin(ctx context.Context, e *env, args []string) (any, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	sub, args := args[0], args[1:]

	login, password := e.cfg.AdminLogin, e.cfg.AdminPassword
	credFlags := func(fs *pflag.FlagSet) {
		fs.StringVar(&login, "login", login, "admin login (default ADMIN_LOGIN)")
		fs.StringVar(&password, "password", password, "admin password (default ADMIN_PASSWORD)")
	}
	signIn := func() error {
		if login == "" {
			return nil
		}
		if _, err := e.client.Login(ctx, login, password); err != nil {
			return fmt.Errorf("admin login: %w", err)
		}
		return nil
	}

	switch sub {
	case "login":
		if _, err := parseArgs("admin login", args, 0, credFlags); err != nil {
			return nil, err
		}
		if login == "" {
			return nil, fmt.Errorf("admin login requires --login or ADMIN_LOGIN")
		}
		return e.client.Login(ctx, login, password)

	case "check":
		if _, err := parseArgs("admin check", args, 0, credFlags); err != nil {
			return nil, err
		}
		if err := signIn(); err != nil {
			return nil, err
		}
		return e.client.CheckAuth(ctx)

	case "logout":
		if _, err := parseArgs("admin logout", args, 0, credFlags); err != nil {
			return nil, err
		}
		if err := signIn(); err != nil {
			return nil, err
		}
		return e.client.Logout(ctx)

	case "delete":
		pos, err := parseArgs("admin delete", args, 1, credFlags)
		if err != nil {
			return nil, err
		}
		if err := signIn(); err != nil {
			return nil, err
		}
		return e.client.DeleteCourse(ctx, pos[0])

	case "source":
		var outPath string
		pos, err := parseArgs("admin source", args, 1, func(fs *pflag.FlagSet) {
			credFlags(fs)
			fs.StringVar(&outPath, "out", "", "write the YAML content to this file")
		})
		if err != nil {
			return nil, err
		}
		if err := signIn(); err != nil {
			return nil, err
		}
		src, err := e.client.GetCourseSource(ctx, pos[0])
		if err != nil {
			return nil, err
		}
		if outPath == "" {
			return src, nil
		}
		if err := os.WriteFile(outPath, []byte(src.Content), 0o644); err != nil {
			return nil, fmt.Errorf("write course source: %w", err)
		}
		return map[string]string{"filename": src.Filename, "written": outPath}, nil

	case "update":
		pos, err := parseArgs("admin update", args, 2, credFlags)
		if err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(pos[1])
		if err != nil {
			return nil, fmt.Errorf("read course file: %w", err)
		}
		if err := signIn(); err != nil {
			return nil, err
		}
		return e.client.UpdateCourseSource(ctx, pos[0], string(raw))

	case "upload":
		pos, err := parseArgs("admin upload", args, 1, credFlags)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(pos[0])
		if err != nil {
			return nil, fmt.Errorf("open course file: %w", err)
		}
		defer f.Close()
		if err := signIn(); err != nil {
			return nil, err
		}
		return e.client.UploadCourse(ctx, filepath.Base(pos[0]), f)

	default:
		return nil, errUsage
	}
}

func cmdHistory(_ context.Context, e *env, args []string) (any, error) {
	var export string
	if _, err := parseArgs("history", args, 0, func(fs *pflag.FlagSet) {
		fs.StringVar(&export, "export", "", "write the history to an .xlsx workbook (- for stdout)")
	}); err != nil {
		return nil, err
	}

	store, err := storage.NewStore(e.cfg.StorageType, e.cfg.BBoltPath, storage.Options{
		RecordTTL:       e.cfg.StorageTTL,
		CleanupInterval: e.cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	records, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("list grade history: %w", err)
	}
	if export == "" {
		if records == nil {
			records = []domain.GradeRecord{}
		}
		return records, nil
	}
	if export == "-" {
		if err := report.Write(e.stdout, records); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if !strings.EqualFold(filepath.Ext(export), ".xlsx") {
		return nil, fmt.Errorf("export file must end in .xlsx")
	}
	if err := report.WriteXLSX(export, records); err != nil {
		return nil, err
	}
	return map[string]any{"exported": len(records), "path": export}, nil
}
