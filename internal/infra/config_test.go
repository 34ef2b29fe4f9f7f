package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
app:
  name: stock-sub
  version: 1.4.0
backend:
  base_url: https://api.stock-sub.example
  ws_url: wss://api.stock-sub.example/stream
trading:
  mode: demo
logging:
  level: info
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Backend.TimeoutSec != 10 {
		t.Errorf("default timeout = %d, want 10", cfg.Backend.TimeoutSec)
	}
	if cfg.SettleDelay() != 1500*time.Millisecond {
		t.Errorf("default settle delay = %v", cfg.SettleDelay())
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Errorf("default poll interval = %v", cfg.PollInterval())
	}
	if cfg.NoticeTTL() != 5*time.Second {
		t.Errorf("default notice ttl = %v", cfg.NoticeTTL())
	}
	if cfg.Server.ListenAddr == "" {
		t.Error("listen addr default missing")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad base url", "backend:\n  base_url: ftp://nope\n"},
		{"bad ws url", "backend:\n  base_url: https://ok\n  ws_url: http://nope\n"},
		{"bad mode", "backend:\n  base_url: https://ok\ntrading:\n  mode: yolo\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("STOCKSUB_API_TOKEN", "tok-from-env")
	t.Setenv("STOCKSUB_BASE_URL", "https://override.example")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend.APIToken != "tok-from-env" {
		t.Errorf("token = %q, want env override", cfg.Backend.APIToken)
	}
	if cfg.Backend.BaseURL != "https://override.example" {
		t.Errorf("base url = %q, want env override", cfg.Backend.BaseURL)
	}
}
