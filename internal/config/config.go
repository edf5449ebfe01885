package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	APIBaseURL        string        `mapstructure:"api_base_url"`
	APIGradeBaseURL   string        `mapstructure:"api_grade_base_url"`
	APITimeoutSeconds int64         `mapstructure:"api_timeout_seconds"`
	APITimeout        time.Duration `mapstructure:"-"`
	DecodeErrorBodies bool          `mapstructure:"api_decode_error_bodies"`

	AdminLogin    string `mapstructure:"admin_login"`
	AdminPassword string `mapstructure:"admin_password" json:"-"`

	RosterFile           string        `mapstructure:"roster_file"`
	PublishersFile       string        `mapstructure:"publishers_file"`
	PublishersRequired   bool          `mapstructure:"publishers_required"`
	GradeIntervalSeconds int64         `mapstructure:"grade_interval"`
	GradeInterval        time.Duration `mapstructure:"-"`
	MetricsAddr          string        `mapstructure:"metrics_addr"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	return load(viper.New())
}

// LoadWith reads configuration through v, which may carry bound CLI flags.
// Flag values take precedence over the environment.
func LoadWith(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load("configs/.env")
	if v == nil {
		v = viper.New()
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "course-grader")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("api_base_url", "http://localhost:8000")
	v.SetDefault("api_grade_base_url", "")
	v.SetDefault("api_timeout_seconds", 10)
	v.SetDefault("api_decode_error_bodies", false)
	v.SetDefault("admin_login", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("roster_file", "./configs/roster.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("publishers_required", false)
	v.SetDefault("grade_interval", 300) // seconds
	v.SetDefault("metrics_addr", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/grades.db")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
}

func (cfg *Config) finalize() error {
	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	if err := validateURL("api_base_url", cfg.APIBaseURL); err != nil {
		return err
	}
	cfg.APIGradeBaseURL = strings.TrimSpace(cfg.APIGradeBaseURL)
	if cfg.APIGradeBaseURL != "" {
		if err := validateURL("api_grade_base_url", cfg.APIGradeBaseURL); err != nil {
			return err
		}
	}

	if cfg.APITimeoutSeconds <= 0 {
		return fmt.Errorf("invalid api_timeout_seconds (must be positive seconds)")
	}
	cfg.APITimeout = time.Duration(cfg.APITimeoutSeconds) * time.Second

	if cfg.GradeIntervalSeconds <= 0 {
		return fmt.Errorf("invalid grade_interval (must be positive seconds)")
	}
	cfg.GradeInterval = time.Duration(cfg.GradeIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q (must be an http or https url)", key, raw)
	}
	return nil
}
