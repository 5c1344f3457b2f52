package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the global application configuration
var Config AppConfig

// LoadAppConfig loads and validates the application configuration.
// An empty path falls back to config.yml in the working directory.
func LoadAppConfig(path string) error {
	paths := []string{"config.yml", "./config/config.yml"}
	if path != "" {
		paths = []string{path}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}
	applyDefaults(&cfg)
	v := validator.New()
	if err := v.Struct(cfg.Server); err != nil {
		return err
	}
	for _, f := range cfg.Feeds {
		if err := v.Struct(f); err != nil {
			return fmt.Errorf("feed %q: %w", f.ID, err)
		}
	}
	if err := v.Struct(cfg.Engine); err != nil {
		return err
	}
	if err := v.Struct(cfg.Notifier); err != nil {
		return err
	}
	Config = cfg
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 16181
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "gtfsrt-trigger.db"
	}
	if cfg.Engine.TickIntervalMS == 0 {
		cfg.Engine.TickIntervalMS = 60000
	}
	if cfg.Engine.FetchTimeoutMS == 0 {
		cfg.Engine.FetchTimeoutMS = 30000
	}
	if cfg.Engine.WebhookTimeoutMS == 0 {
		cfg.Engine.WebhookTimeoutMS = 15000
	}
	if cfg.Engine.DeliveryAttempts == 0 {
		cfg.Engine.DeliveryAttempts = 3
	}
}

// FeedByID looks up a configured feed; ok is false for unknown IDs.
func FeedByID(id string) (FeedConfig, bool) {
	for _, f := range Config.Feeds {
		if f.ID == id {
			return f, true
		}
	}
	return FeedConfig{}, false
}
