package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// EnvConfigPath names the variable that points at a TOML config file when
// -config is not given.
const EnvConfigPath = "NEBULA_CONFIG"

// Config holds the client settings. Values are layered: defaults, then the
// TOML file, then .env and the environment, then command-line flags.
type Config struct {
	APIURL        string `toml:"api_url" env:"NEBULA_API_URL"`
	Dev           bool   `toml:"dev" env:"NEBULA_DEV"`
	LogPath       string `toml:"log_path" env:"NEBULA_LOG_PATH"`
	Search        bool   `toml:"search" env:"NEBULA_SEARCH"`
	Thinking      bool   `toml:"thinking" env:"NEBULA_THINKING"`
	MaxUploadSize int64  `toml:"max_upload_size" env:"NEBULA_MAX_UPLOAD_SIZE"`
	ThreadID      int64  `toml:"thread_id" env:"NEBULA_THREAD_ID"`

	// ConfigPath is the TOML file that was read, if any.
	ConfigPath string `toml:"-" env:"-"`
}

func Defaults() *Config {
	return &Config{
		APIURL:        "http://localhost:8000",
		MaxUploadSize: 10 * 1024 * 1024,
	}
}

// Load builds the configuration for the given command-line arguments
// (without the program name).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("nebula", flag.ContinueOnError)
	flags := Defaults()
	configPath := fs.String("config", "", "Path to a TOML config file")
	fs.StringVar(&flags.APIURL, "api", flags.APIURL, "Backend base URL")
	fs.BoolVar(&flags.Dev, "dev", flags.Dev, "Development mode")
	fs.StringVar(&flags.LogPath, "logPath", flags.LogPath, "Path to save the log file")
	fs.BoolVar(&flags.Search, "search", flags.Search, "Enable web search for every message")
	fs.BoolVar(&flags.Thinking, "think", flags.Thinking, "Enable deep reasoning for every message")
	fs.Int64Var(&flags.MaxUploadSize, "maxUpload", flags.MaxUploadSize, "Maximum upload size in bytes")
	fs.Int64Var(&flags.ThreadID, "thread", flags.ThreadID, "Thread to open on start")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Defaults()

	path := *configPath
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		cfg.ConfigPath = path
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api":
			cfg.APIURL = flags.APIURL
		case "dev":
			cfg.Dev = flags.Dev
		case "logPath":
			cfg.LogPath = flags.LogPath
		case "search":
			cfg.Search = flags.Search
		case "think":
			cfg.Thinking = flags.Thinking
		case "maxUpload":
			cfg.MaxUploadSize = flags.MaxUploadSize
		case "thread":
			cfg.ThreadID = flags.ThreadID
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.APIURL == "":
		return errors.New("api url is required")
	case c.MaxUploadSize <= 0:
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadSize)
	case c.ThreadID < 0:
		return fmt.Errorf("thread id must not be negative, got %d", c.ThreadID)
	}
	return nil
}
