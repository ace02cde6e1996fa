package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  mode: test\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 3020 {
		t.Errorf("port = %d, want 3020", cfg.Server.Port)
	}
	if cfg.Download.RetentionMinutes != 10 {
		t.Errorf("retention_minutes = %d, want 10", cfg.Download.RetentionMinutes)
	}
	if cfg.Download.TimeoutMinutes != 30 {
		t.Errorf("timeout_minutes = %d, want 30", cfg.Download.TimeoutMinutes)
	}
	if want := int64(100 * 1024 * 1024); cfg.Download.LowSpaceThresholdBytes != want {
		t.Errorf("low_space_threshold_bytes = %d, want %d", cfg.Download.LowSpaceThresholdBytes, want)
	}
	if cfg.YtDlp.Binary != "yt-dlp" {
		t.Errorf("ytdlp.binary = %q, want yt-dlp", cfg.YtDlp.Binary)
	}
	if cfg.RateLimit.PerMinute != 60 || cfg.RateLimit.Burst != 10 {
		t.Errorf("ratelimit = %+v", cfg.RateLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 8080
  mode: release
download:
  tmp_dir: /data/downloads
  retention_minutes: 5
  timeout_minutes: 15
ytdlp:
  binary: /usr/local/bin/yt-dlp
  cookies_file: /etc/youtube/cookies.txt
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 || cfg.Server.Mode != "release" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Download.TmpDir != "/data/downloads" {
		t.Errorf("tmp_dir = %q", cfg.Download.TmpDir)
	}
	if cfg.Download.Retention() != 5*time.Minute {
		t.Errorf("Retention() = %v, want 5m", cfg.Download.Retention())
	}
	if cfg.Download.Timeout() != 15*time.Minute {
		t.Errorf("Timeout() = %v, want 15m", cfg.Download.Timeout())
	}
	if cfg.YtDlp.CookiesFile != "/etc/youtube/cookies.txt" {
		t.Errorf("cookies_file = %q", cfg.YtDlp.CookiesFile)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"port too high", "server:\n  port: 70000\n"},
		{"zero retention", "download:\n  retention_minutes: 0\n"},
		{"negative timeout", "download:\n  timeout_minutes: -5\n"},
		{"negative threshold", "download:\n  low_space_threshold_bytes: -1\n"},
		{"empty binary", "ytdlp:\n  binary: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("Load accepted an invalid config")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load succeeded with a missing explicit config file")
	}
}
