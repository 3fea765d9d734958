package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"streamclean/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvBaseURL, "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "streamclean")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.HistoryPath() != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.Server.BaseURL != "http://localhost:8000/api" {
		t.Fatalf("unexpected base url: %q", cfg.Server.BaseURL)
	}
	if cfg.RequestTimeout().Seconds() != 30 {
		t.Fatalf("unexpected request timeout: %v", cfg.RequestTimeout())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "streamclean.toml")

	type payload struct {
		Server struct {
			BaseURL        string `toml:"base_url"`
			RequestTimeout int    `toml:"request_timeout"`
		} `toml:"server"`
		Logging struct {
			Format string `toml:"format"`
			Level  string `toml:"level"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Server.BaseURL = "media.lan:8000/api/"
	custom.Server.RequestTimeout = 5
	custom.Logging.Format = "JSON"
	custom.Logging.Level = "Debug"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Server.BaseURL != "http://media.lan:8000/api" {
		t.Fatalf("expected normalized base url, got %q", cfg.Server.BaseURL)
	}
	if cfg.Server.RequestTimeout != 5 {
		t.Fatalf("expected request timeout 5, got %d", cfg.Server.RequestTimeout)
	}
	if cfg.Server.EventsTimeout != config.Default().Server.EventsTimeout {
		t.Fatalf("expected default events timeout, got %d", cfg.Server.EventsTimeout)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased logging options, got %+v", cfg.Logging)
	}
}

func TestEnvVarFillsDefaultBaseURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvBaseURL, "https://media.example.com/api")
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.BaseURL != "https://media.example.com/api" {
		t.Fatalf("expected base url from env, got %q", cfg.Server.BaseURL)
	}

	configPath := filepath.Join(t.TempDir(), "streamclean.toml")
	if err := os.WriteFile(configPath, []byte("[server]\nbase_url = \"http://file.lan/api\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err = config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.BaseURL != "http://file.lan/api" {
		t.Fatalf("expected file value to win over env, got %q", cfg.Server.BaseURL)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "base_url") {
		t.Fatalf("sample config missing base_url: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Server.BaseURL != config.Default().Server.BaseURL {
		t.Fatalf("sample base url drifted from default: %q", cfg.Server.BaseURL)
	}
	if !strings.Contains(cfg.Paths.StateDir, "streamclean") {
		t.Fatalf("expected state dir to contain streamclean, got %q", cfg.Paths.StateDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive request timeout")
	}

	cfg = config.Default()
	cfg.Server.EventsTimeout = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive events timeout")
	}

	cfg = config.Default()
	cfg.Server.BaseURL = "ftp://media.lan"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http scheme")
	}

	cfg = config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log format")
	}

	cfg = config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}

	cfg = config.Default()
	cfg.Notifications.NtfyTopic = "ntfy.sh/topic"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for ntfy topic without scheme")
	}

	cfg = config.Default()
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/topic"
	cfg.Notifications.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive notification timeout")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
