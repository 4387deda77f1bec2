package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
api:
  base_url: https://color.example.com/
  timeout: 45s
  feedback_timeout: 5s

store:
  driver: mysql
  dsn: "hue:secret@tcp(10.0.0.5:3306)/huebot?parseTime=true"

cache:
  stale_normal: 20m
  stale_live: 30s
  gc: 2h
  refresh_schedule: "*/5 * * * *"
  retry: 4

chat:
  auto_diagnosis_turns: 4
  report_keywords: ["리포트", "summary please"]

log:
  mode: production

share:
  slack_webhook: https://hooks.slack.com/services/T/B/X
  discord_webhook: https://discord.com/api/webhooks/1/abc
`

const minimalYAML = `
api:
  base_url: http://localhost:8000
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.BaseURL != "https://color.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.API.Timeout)
	}
	if cfg.API.FeedbackTimeout != 5*time.Second {
		t.Errorf("FeedbackTimeout = %v, want 5s", cfg.API.FeedbackTimeout)
	}
	if cfg.Store.Driver != "mysql" {
		t.Errorf("Store.Driver = %q, want mysql", cfg.Store.Driver)
	}
	if cfg.Store.Path != "" {
		t.Errorf("Store.Path = %q, want empty for mysql", cfg.Store.Path)
	}
	if cfg.Cache.StaleNormal != 20*time.Minute || cfg.Cache.StaleLive != 30*time.Second {
		t.Errorf("stale windows = %v/%v", cfg.Cache.StaleNormal, cfg.Cache.StaleLive)
	}
	if cfg.Cache.RefreshSchedule != "*/5 * * * *" {
		t.Errorf("RefreshSchedule = %q", cfg.Cache.RefreshSchedule)
	}
	if cfg.Cache.Retry != 4 {
		t.Errorf("Retry = %d, want 4", cfg.Cache.Retry)
	}
	if cfg.Chat.AutoDiagnosisTurns != 4 {
		t.Errorf("AutoDiagnosisTurns = %d, want 4", cfg.Chat.AutoDiagnosisTurns)
	}
	if len(cfg.Chat.ReportKeywords) != 2 || cfg.Chat.ReportKeywords[1] != "summary please" {
		t.Errorf("ReportKeywords = %v", cfg.Chat.ReportKeywords)
	}
	if cfg.Log.Mode != "production" {
		t.Errorf("Log.Mode = %q", cfg.Log.Mode)
	}
	if cfg.Share.DiscordWebhook == "" || cfg.Share.SlackWebhook == "" {
		t.Error("share webhooks not parsed")
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.API.Timeout)
	}
	if cfg.API.FeedbackTimeout != 10*time.Second {
		t.Errorf("FeedbackTimeout = %v, want 10s", cfg.API.FeedbackTimeout)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if !strings.HasSuffix(cfg.Store.Path, "huebot.db") {
		t.Errorf("Store.Path = %q, want default huebot.db", cfg.Store.Path)
	}
	if cfg.Cache.StaleNormal != 30*time.Minute {
		t.Errorf("StaleNormal = %v, want 30m", cfg.Cache.StaleNormal)
	}
	if cfg.Cache.StaleLive != time.Minute {
		t.Errorf("StaleLive = %v, want 1m", cfg.Cache.StaleLive)
	}
	if cfg.Cache.GC != time.Hour {
		t.Errorf("GC = %v, want 1h", cfg.Cache.GC)
	}
	if cfg.Cache.RefreshSchedule != "@every 10m" {
		t.Errorf("RefreshSchedule = %q", cfg.Cache.RefreshSchedule)
	}
	if cfg.Cache.Retry != 2 {
		t.Errorf("Retry = %d, want 2", cfg.Cache.Retry)
	}
	if cfg.Chat.AutoDiagnosisTurns != 3 {
		t.Errorf("AutoDiagnosisTurns = %d, want 3", cfg.Chat.AutoDiagnosisTurns)
	}
	if len(cfg.Chat.ReportKeywords) != len(DefaultReportKeywords) {
		t.Errorf("ReportKeywords = %v, want defaults", cfg.Chat.ReportKeywords)
	}
	if cfg.Log.Mode != "development" {
		t.Errorf("Log.Mode = %q, want development", cfg.Log.Mode)
	}
}

func TestParse_DefaultKeywordsNotShared(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Chat.ReportKeywords[0] = "changed"
	if DefaultReportKeywords[0] == "changed" {
		t.Error("defaults must be copied, not aliased")
	}
}

func TestParse_TildeStorePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg, err := Parse([]byte(minimalYAML + "store:\n  path: ~/data/hue.db\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(home, "data", "hue.db")
	if cfg.Store.Path != want {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, want)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing base url", "log:\n  mode: production\n", "api.base_url is required"},
		{"bad scheme", "api:\n  base_url: ftp://x\n", "must start with http"},
		{"mysql without dsn", minimalYAML + "store:\n  driver: mysql\n", "store.dsn is required"},
		{"unknown driver", minimalYAML + "store:\n  driver: postgres\n", "not supported"},
		{"negative retry", minimalYAML + "cache:\n  retry: -1\n", "cache.retry"},
		{"empty keyword", minimalYAML + "chat:\n  report_keywords: [\"  \"]\n", "report_keywords[0] is empty"},
		{"bad log mode", minimalYAML + "log:\n  mode: verbose\n", "log.mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	_, err := Parse([]byte("store:\n  driver: oracle\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "api.base_url is required") || !strings.Contains(msg, "store.driver") {
		t.Errorf("error = %q, want both failures joined", msg)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("api: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want config: parse prefix", err.Error())
	}
}

func TestParseEnvOverrides(t *testing.T) {
	env := map[string]string{
		"HUE_BASE_URL":        "https://override.example.com",
		"HUE_TOKEN":           "  tok-123 ",
		"HUE_LOG_MODE":        "production",
		"HUE_SLACK_WEBHOOK":   "https://hooks.slack.com/services/env",
		"HUE_DISCORD_WEBHOOK": "https://discord.com/api/webhooks/9/env",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg, err := parse([]byte(minimalYAML), lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.BaseURL != "https://override.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Token != "tok-123" {
		t.Errorf("Token = %q, want trimmed tok-123", cfg.Token)
	}
	if cfg.Log.Mode != "production" {
		t.Errorf("Log.Mode = %q", cfg.Log.Mode)
	}
	if !strings.HasSuffix(cfg.Share.SlackWebhook, "/env") || !strings.HasSuffix(cfg.Share.DiscordWebhook, "/env") {
		t.Errorf("share overrides not applied: %+v", cfg.Share)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huebot.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HUE_BASE_URL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/huebot.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want config: read prefix", err.Error())
	}
}
