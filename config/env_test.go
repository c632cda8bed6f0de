package config

import (
	"strings"
	"testing"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when SLACK_TOKEN is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "xoxb-token")
	t.Setenv("SLACK_TYPES", "")
	t.Setenv("SLACK_CHANNELS", "")
	t.Setenv("FETCH_THREADS", "")
	t.Setenv("OLDEST_TS", "")
	t.Setenv("LATEST_TS", "")
	t.Setenv("PAGE_SIZE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChannelTypes != "public_channel,private_channel" {
		t.Errorf("ChannelTypes = %q", cfg.ChannelTypes)
	}
	if cfg.Channels != "*" {
		t.Errorf("Channels = %q", cfg.Channels)
	}
	if !cfg.FetchThreads {
		t.Error("FetchThreads default should be true")
	}
	if cfg.OldestTS != "0" || cfg.LatestTS != "" {
		t.Errorf("bounds = %q..%q", cfg.OldestTS, cfg.LatestTS)
	}
	if cfg.PageSize != 200 {
		t.Errorf("PageSize = %d", cfg.PageSize)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
}

func TestLoadInvalidPageSize(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "xoxb-token")
	t.Setenv("PAGE_SIZE", "0")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "PAGE_SIZE") {
		t.Fatalf("err = %v", err)
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"Yes", true},
		{"y", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"banana", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("FETCH_THREADS", tt.value)
			if got := envBool("FETCH_THREADS", true); got != tt.want {
				t.Errorf("envBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
