package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
store:
  path: /tmp/rules.db
engine:
  tickIntervalMS: 5000
feeds:
  - id: feed-1
    vehiclePositionsURL: https://example.com/vp.pb
    tripUpdatesURL: https://example.com/tu.pb
    timetableURL: https://example.com/timetable
`)
	if err := LoadAppConfig(path); err != nil {
		t.Fatalf("LoadAppConfig() failed: %v", err)
	}
	if Config.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", Config.Server.Port)
	}
	if Config.Store.Path != "/tmp/rules.db" {
		t.Errorf("unexpected store path %q", Config.Store.Path)
	}
	if Config.Engine.TickIntervalMS != 5000 {
		t.Errorf("expected tick interval 5000, got %d", Config.Engine.TickIntervalMS)
	}
	if len(Config.Feeds) != 1 || Config.Feeds[0].ID != "feed-1" {
		t.Errorf("unexpected feeds: %+v", Config.Feeds)
	}
}

func TestLoadAppConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
feeds:
  - id: feed-1
`)
	if err := LoadAppConfig(path); err != nil {
		t.Fatalf("LoadAppConfig() failed: %v", err)
	}
	if Config.Server.Port != 16181 {
		t.Errorf("expected default port 16181, got %d", Config.Server.Port)
	}
	if Config.Store.Path != "gtfsrt-trigger.db" {
		t.Errorf("expected default store path, got %q", Config.Store.Path)
	}
	if Config.Engine.TickIntervalMS != 60000 || Config.Engine.FetchTimeoutMS != 30000 {
		t.Errorf("engine defaults not applied: %+v", Config.Engine)
	}
	if Config.Engine.WebhookTimeoutMS != 15000 || Config.Engine.DeliveryAttempts != 3 {
		t.Errorf("engine defaults not applied: %+v", Config.Engine)
	}
}

func TestLoadAppConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "feed without id",
			content: `
feeds:
  - vehiclePositionsURL: https://example.com/vp.pb
`,
		},
		{
			name: "feed with malformed URL",
			content: `
feeds:
  - id: feed-1
    vehiclePositionsURL: not a url
`,
		},
		{
			name: "bad default webhook URL",
			content: `
notifier:
  defaultWebhookURL: nope
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if err := LoadAppConfig(path); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadAppConfigMissingFile(t *testing.T) {
	if err := LoadAppConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestFeedByID(t *testing.T) {
	Config = AppConfig{Feeds: []FeedConfig{{ID: "feed-1"}, {ID: "feed-2"}}}

	f, ok := FeedByID("feed-2")
	if !ok || f.ID != "feed-2" {
		t.Errorf("FeedByID(feed-2) = %+v, %v", f, ok)
	}
	if _, ok := FeedByID("feed-9"); ok {
		t.Error("unexpected hit for unknown feed")
	}
}
