package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Transcriber backend names accepted in config.
const (
	TranscriberWhisperCLI = "whisper-cli"
	TranscriberOpenAI     = "openai"
)

type Config struct {
	RecordingsDir string
	FeedURL       string

	Transcriber  string // whisper-cli or openai
	WhisperBin   string
	WhisperModel string
	OpenAIAPIKey string
	OpenAIModel  string

	Notifications bool
	WebhookURL    string
}

type fileConfig struct {
	RecordingsDir string `toml:"recordings_dir"`
	FeedURL       string `toml:"feed_url"`
	Transcriber   string `toml:"transcriber"`
	WhisperBin    string `toml:"whisper_bin"`
	WhisperModel  string `toml:"whisper_model"`
	OpenAIAPIKey  string `toml:"openai_api_key"`
	OpenAIModel   string `toml:"openai_model"`
	Notifications *bool  `toml:"notifications"`
	WebhookURL    string `toml:"notify_webhook_url"`
}

func Load() (*Config, error) {
	// A .env next to the binary is convenient for API keys; absence is fine.
	_ = godotenv.Load()

	cfg := &Config{
		RecordingsDir: defaultRecordingsDir(),
		Transcriber:   TranscriberWhisperCLI,
	}

	if configPath := configFilePath(); configPath != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(configPath, &fc); err != nil {
			return nil, fmt.Errorf("reading %s: %w", configPath, err)
		}
		if fc.RecordingsDir != "" {
			cfg.RecordingsDir = expandTilde(fc.RecordingsDir)
		}
		if fc.FeedURL != "" {
			cfg.FeedURL = fc.FeedURL
		}
		if fc.Transcriber != "" {
			cfg.Transcriber = fc.Transcriber
		}
		if fc.WhisperBin != "" {
			cfg.WhisperBin = expandTilde(fc.WhisperBin)
		}
		if fc.WhisperModel != "" {
			cfg.WhisperModel = expandTilde(fc.WhisperModel)
		}
		cfg.OpenAIAPIKey = fc.OpenAIAPIKey
		if fc.OpenAIModel != "" {
			cfg.OpenAIModel = fc.OpenAIModel
		}
		if fc.Notifications != nil {
			cfg.Notifications = *fc.Notifications
		}
		cfg.WebhookURL = fc.WebhookURL
	}

	applyEnvOverrides(cfg)

	if err := os.MkdirAll(cfg.RecordingsDir, 0o755); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENATEWATCH_RECORDINGS_DIR"); v != "" {
		cfg.RecordingsDir = expandTilde(v)
	}
	if v := os.Getenv("SENATEWATCH_FEED_URL"); v != "" {
		cfg.FeedURL = v
	}
	if v := os.Getenv("SENATEWATCH_OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("SENATEWATCH_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "senatewatch")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "senatewatch")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func defaultRecordingsDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "senate_recordings")
	}
	return filepath.Join(".", "senate_recordings")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
