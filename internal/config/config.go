// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
}

// Server describes the webhook listener bind address and optional public URL.
type Server struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// Webhook holds inbound-signal authentication parameters.
type Webhook struct {
	Secret         string `yaml:"secret"`
	MaxSkewSeconds int    `yaml:"max_skew_seconds"`
	AuthDisabled   bool   `yaml:"auth_disabled"`
}

// Bybit describes venue connectivity and credentials.
type Bybit struct {
	RestURL    string `yaml:"rest_url"`
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	RecvWindow int    `yaml:"recv_window_ms"`
}

// Telegram configures the notification channel.
type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Trading encodes order defaults and notional guard-rails.
// DefaultAmountUSDT is the only notional ever used for opens; caller amounts are ignored.
type Trading struct {
	DefaultOrderType  string  `yaml:"default_order_type"`
	DefaultAmountUSDT float64 `yaml:"default_amount_usdt"`
	MinOrderUSDT      float64 `yaml:"min_order_usdt"`
	MaxOrderUSDT      float64 `yaml:"max_order_usdt"`
	Simulate          bool    `yaml:"simulate"`
}

// Tunnel configures the optional cloudflared supervisor.
type Tunnel struct {
	Enabled bool   `yaml:"enabled"`
	Bin     string `yaml:"bin"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Server   Server   `yaml:"server"`
	Webhook  Webhook  `yaml:"webhook"`
	Bybit    Bybit    `yaml:"bybit"`
	Telegram Telegram `yaml:"telegram"`
	Trading  Trading  `yaml:"trading"`
	Tunnel   Tunnel   `yaml:"tunnel"`
}

// Load reads a YAML file from disk, applies env overrides for secrets, and validates.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	config.overrideWithEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Webhook.MaxSkewSeconds == 0 {
		c.Webhook.MaxSkewSeconds = 300
	}
	if c.Bybit.RestURL == "" {
		c.Bybit.RestURL = "https://api.bybit.com"
	}
	if c.Bybit.RecvWindow == 0 {
		c.Bybit.RecvWindow = 5000
	}
	if c.Trading.DefaultOrderType == "" {
		c.Trading.DefaultOrderType = "market"
	}
	if c.Tunnel.Bin == "" {
		c.Tunnel.Bin = "cloudflared"
	}
}

// overrideWithEnv lets secrets live outside the config file; env always wins.
func (c *Config) overrideWithEnv() {
	if v := os.Getenv("HOOKBOT_WEBHOOK_SECRET"); v != "" {
		c.Webhook.Secret = v
	}
	if v := os.Getenv("HOOKBOT_BYBIT_KEY"); v != "" {
		c.Bybit.APIKey = v
	}
	if v := os.Getenv("HOOKBOT_BYBIT_SECRET"); v != "" {
		c.Bybit.APISecret = v
	}
	if v := os.Getenv("HOOKBOT_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("HOOKBOT_TELEGRAM_CHAT"); v != "" {
		c.Telegram.ChatID = v
	}
}

// Validate checks configuration validity before any component is wired.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if !c.Webhook.AuthDisabled && c.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret is required unless auth is disabled")
	}
	if c.Webhook.MaxSkewSeconds < 0 {
		return fmt.Errorf("max_skew_seconds must not be negative")
	}
	switch c.Trading.DefaultOrderType {
	case "market", "limit":
	default:
		return fmt.Errorf("default_order_type must be market or limit, got %q", c.Trading.DefaultOrderType)
	}
	if c.Trading.DefaultAmountUSDT <= 0 {
		return fmt.Errorf("default_amount_usdt must be > 0")
	}
	if c.Trading.MinOrderUSDT < 0 || c.Trading.MaxOrderUSDT <= 0 {
		return fmt.Errorf("order size bounds must be positive")
	}
	if c.Trading.MinOrderUSDT > c.Trading.MaxOrderUSDT {
		return fmt.Errorf("min_order_usdt %g exceeds max_order_usdt %g", c.Trading.MinOrderUSDT, c.Trading.MaxOrderUSDT)
	}
	return nil
}
