package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr           string   `yaml:"addr"`
		Env            string   `yaml:"env"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		RateLimit      struct {
			Requests int           `yaml:"requests"`
			Window   time.Duration `yaml:"window"`
		} `yaml:"rate_limit"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		TrustProxy      bool          `yaml:"trust_proxy"`
	} `yaml:"server"`
	DataService struct {
		BaseURL string        `yaml:"base_url"`
		APIKey  string        `yaml:"api_key"`
		Bucket  string        `yaml:"bucket"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"data_service"`
	Live struct {
		Transport   string `yaml:"transport"`
		RealtimeURL string `yaml:"realtime_url"`
		NATSURL     string `yaml:"nats_url"`
		Subject     string `yaml:"subject"`
	} `yaml:"live"`
	Listing struct {
		PageSize   int    `yaml:"page_size"`
		PageStep   int    `yaml:"page_step"`
		ReloadCron string `yaml:"reload_cron"`
	} `yaml:"listing"`
	Detail struct {
		CacheTTL        time.Duration `yaml:"cache_ttl"`
		CacheSize       int           `yaml:"cache_size"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		HousekeepCron   string        `yaml:"housekeep_cron"`
	} `yaml:"detail"`
	Locale   string `yaml:"locale"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	WhatsApp struct {
		Number string `yaml:"number"`
	} `yaml:"whatsapp"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads a .env file if present, then config from a YAML file, then
// applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		c.Server.TrustProxy, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("DATA_SERVICE_URL"); v != "" {
		c.DataService.BaseURL = v
	}
	if v := os.Getenv("DATA_SERVICE_KEY"); v != "" {
		c.DataService.APIKey = v
	}
	if v := os.Getenv("LIVE_TRANSPORT"); v != "" {
		c.Live.Transport = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Live.NATSURL = v
	}
	if v := os.Getenv("LISTING_CRON"); v != "" {
		c.Listing.ReloadCron = v
	}
	if v := os.Getenv("DETAIL_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Detail.CacheTTL = d
		}
	}
	if v := os.Getenv("DETAIL_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Detail.CacheSize = n
		}
	}
	if v := os.Getenv("LOCALE"); v != "" {
		c.Locale = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("WHATSAPP_NUMBER"); v != "" {
		c.WhatsApp.Number = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.Server.RateLimit.Requests == 0 {
		c.Server.RateLimit.Requests = 100
	}
	if c.Server.RateLimit.Window == 0 {
		c.Server.RateLimit.Window = 15 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.DataService.Timeout == 0 {
		c.DataService.Timeout = 30 * time.Second
	}
	if c.DataService.Bucket == "" {
		c.DataService.Bucket = "financial_documents"
	}
	if c.Live.Transport == "" {
		c.Live.Transport = "websocket"
	}
	if c.Live.RealtimeURL == "" {
		c.Live.RealtimeURL = c.DataService.BaseURL
	}
	if c.Listing.PageSize == 0 {
		c.Listing.PageSize = 6
	}
	if c.Listing.PageStep == 0 {
		c.Listing.PageStep = 3
	}
	if c.Listing.ReloadCron == "" {
		c.Listing.ReloadCron = "0 */5 * * * *"
	}
	if c.Detail.CacheTTL == 0 {
		c.Detail.CacheTTL = 60 * time.Second
	}
	if c.Detail.CacheSize == 0 {
		c.Detail.CacheSize = 512
	}
	if c.Detail.RefreshInterval == 0 {
		c.Detail.RefreshInterval = 60 * time.Second
	}
	if c.Detail.HousekeepCron == "" {
		c.Detail.HousekeepCron = "0 0 * * * *"
	}
	if c.Locale == "" {
		c.Locale = "en-IN"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/sharedesk.db"
	}
}

// IsProduction reports whether error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// TelegramEnabled reports whether lead notifications can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.DataService.BaseURL == "" {
		return fmt.Errorf("data_service.base_url is required")
	}
	if c.DataService.APIKey == "" {
		return fmt.Errorf("data_service.api_key is required")
	}
	if c.Server.RateLimit.Requests < 0 || c.Server.RateLimit.Window < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if c.Detail.CacheTTL < 0 || c.Detail.RefreshInterval < 0 {
		return fmt.Errorf("detail durations must not be negative")
	}
	switch strings.ToLower(c.Live.Transport) {
	case "websocket", "realtime", "nats", "none", "off":
	default:
		return fmt.Errorf("live.transport %q is not one of websocket, nats, none", c.Live.Transport)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
