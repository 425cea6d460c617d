package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		DeepSeek: DeepSeekConfig{
			APIKey:      "sk-test",
			Temperature: 0.3,
			Timeout:     25 * time.Second,
		},
		Reddit: RedditConfig{
			Enabled:        true,
			Subreddits:     []string{"wallstreetbets"},
			RequestsPerSec: 1,
		},
		Pipeline: PipelineConfig{
			Schedule: "0 0 * * *",
			Window:   24 * time.Hour,
			MaxWords: 100,
			Workers:  4,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing api key", func(c *Config) { c.DeepSeek.APIKey = "" }, true},
		{"zero timeout", func(c *Config) { c.DeepSeek.Timeout = 0 }, true},
		{"bad schedule", func(c *Config) { c.Pipeline.Schedule = "every day" }, true},
		{"zero max words", func(c *Config) { c.Pipeline.MaxWords = 0 }, true},
		{"no subreddits", func(c *Config) { c.Reddit.Subreddits = nil }, true},
		{"no subreddits but reddit disabled", func(c *Config) {
			c.Reddit.Enabled = false
			c.Reddit.Subreddits = nil
		}, false},
		{"half oauth credentials", func(c *Config) { c.Reddit.ClientID = "id" }, true},
		{"telegram without chat", func(c *Config) { c.Telegram.BotToken = "token" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DeepSeek.Timeout != 25*time.Second {
		t.Errorf("expected 25s summarizer timeout, got %s", cfg.DeepSeek.Timeout)
	}
	if cfg.DeepSeek.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", cfg.DeepSeek.Temperature)
	}
	if cfg.Pipeline.MaxWords != 100 {
		t.Errorf("expected max words 100, got %d", cfg.Pipeline.MaxWords)
	}
	if len(cfg.Reddit.Subreddits) != 5 {
		t.Errorf("expected 5 default subreddits, got %v", cfg.Reddit.Subreddits)
	}
	if cfg.Database.GetDSN() == "" {
		t.Error("expected DSN")
	}
}

func TestLoadUnvalidated_SkipsProviderChecks(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("DB_MIGRATIONS_PATH", "/srv/migrations")

	if _, err := Load(); err == nil {
		t.Fatal("Load() must reject a missing api key")
	}

	cfg, err := LoadUnvalidated()
	if err != nil {
		t.Fatalf("LoadUnvalidated() error: %v", err)
	}
	if cfg.Database.MigrationsPath != "/srv/migrations" {
		t.Errorf("unexpected migrations path %q", cfg.Database.MigrationsPath)
	}
}
