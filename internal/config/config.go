// Package config loads layered configuration: defaults, then a YAML file,
// then a .env file, then LEETBUDDY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/abhisek/leetbuddy/internal/logging"
	"github.com/abhisek/leetbuddy/internal/remote"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LEETBUDDY"

// Config is the full application configuration.
type Config struct {
	// Timezone names the IANA zone that defines "today". Empty means local.
	Timezone string `yaml:"timezone" envconfig:"TIMEZONE" validate:"tzname"`

	Catalog      CatalogConfig      `yaml:"catalog" envconfig:"CATALOG"`
	Enforcement  EnforcementConfig  `yaml:"enforcement" envconfig:"ENFORCEMENT"`
	Verification VerificationConfig `yaml:"verification" envconfig:"VERIFICATION"`
	Redirect     RedirectConfig     `yaml:"redirect" envconfig:"REDIRECT"`
	Server       ServerConfig       `yaml:"server" envconfig:"SERVER"`
	Remote       remote.Config      `yaml:"remote" envconfig:"REMOTE"`
	Log          logging.Config     `yaml:"log" envconfig:"LOG"`
}

// CatalogConfig points at an on-disk catalog. Empty Dir uses the
// embedded catalog.
type CatalogConfig struct {
	Dir   string `yaml:"dir" envconfig:"DIR"`
	Watch bool   `yaml:"watch" envconfig:"WATCH"`
}

type EnforcementConfig struct {
	BypassDuration time.Duration `yaml:"bypass_duration" envconfig:"BYPASS_DURATION" validate:"gt=0"`
	Cooldown       time.Duration `yaml:"cooldown" envconfig:"COOLDOWN" validate:"gte=0"`
	TickInterval   time.Duration `yaml:"tick_interval" envconfig:"TICK_INTERVAL" validate:"gt=0"`
}

type VerificationConfig struct {
	AllowUnverified bool `yaml:"allow_unverified" envconfig:"ALLOW_UNVERIFIED"`
}

// RedirectConfig locates the rule file the browser side reads.
type RedirectConfig struct {
	RulesPath string `yaml:"rules_path" envconfig:"RULES_PATH"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR" validate:"required,hostname_port"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Enforcement: EnforcementConfig{
			BypassDuration: 10 * time.Minute,
			Cooldown:       30 * time.Minute,
			TickInterval:   time.Minute,
		},
		Verification: VerificationConfig{AllowUnverified: true},
		Server:       ServerConfig{Addr: "127.0.0.1:7878"},
		Remote:       remote.DefaultConfig(),
		Log:          logging.DefaultConfig(),
	}
}

// Options controls where Load looks.
type Options struct {
	// Path is an explicit YAML file; a missing file is an error.
	// Empty falls back to DefaultPath, which may be absent.
	Path string
	// EnvFile is the dotenv file to read; empty means ".env".
	EnvFile string
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("tzname", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})
}

// Load builds a Config from every layer and validates the result.
func Load(opts Options) (Config, error) {
	cfg := Default()

	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location returns the zone that defines calendar days.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RulesPath returns the configured rule file, defaulting to rules.json
// beside the database at dbPath. An empty dbPath falls back to the data
// directory.
func (c Config) RulesPath(dbPath string) (string, error) {
	if c.Redirect.RulesPath != "" {
		return c.Redirect.RulesPath, nil
	}
	if dbPath != "" {
		return filepath.Join(filepath.Dir(dbPath), "rules.json"), nil
	}
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "rules.json"), nil
}

// DefaultPath resolves $XDG_CONFIG_HOME/leetbuddy/config.yaml, falling
// back to ~/.config.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "leetbuddy", "config.yaml"), nil
}

func dataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "leetbuddy"), nil
}
