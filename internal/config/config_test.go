package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
api:
  api_key: test-key
`

func TestLoadAndValidate_Defaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("RestURL = %q, want %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.WSURL != DefaultWSURL {
		t.Errorf("WSURL = %q, want %q", cfg.API.WSURL, DefaultWSURL)
	}
	if cfg.Stream.SubscribeInterval != DefaultSubscribeInterval {
		t.Errorf("SubscribeInterval = %s, want %s", cfg.Stream.SubscribeInterval, DefaultSubscribeInterval)
	}
	if cfg.Chain.CacheTTL != DefaultCacheTTL {
		t.Errorf("CacheTTL = %s, want %s", cfg.Chain.CacheTTL, DefaultCacheTTL)
	}
}

func TestLoadAndValidate_EnvExpansion(t *testing.T) {
	t.Setenv("CHAINFEED_TEST_KEY", "secret-from-env")

	path := writeConfig(t, `
api:
  api_key: ${CHAINFEED_TEST_KEY}
  ws_url: wss://feed.example.com/ws
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.API.APIKey != "secret-from-env" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.API.APIKey)
	}
	if cfg.API.WSURL != "wss://feed.example.com/ws" {
		t.Errorf("WSURL = %q", cfg.API.WSURL)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.API.APIKey = "" },
			wantSub: "api.api_key",
		},
		{
			name:    "bad ws url",
			mutate:  func(c *Config) { c.API.WSURL = "http://not-a-ws-url" },
			wantSub: "api.ws_url",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantSub: "server.port",
		},
		{
			name: "backoff inversion",
			mutate: func(c *Config) {
				c.Stream.ReconnectBaseDelay = 2 * time.Minute
				c.Stream.ReconnectMaxDelay = time.Second
			},
			wantSub: "reconnect_base_delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.API.APIKey = "k"
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
