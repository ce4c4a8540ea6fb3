package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries all relay settings, grouped per component.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
	HTTP      HTTPConfig      `mapstructure:"http" json:"http"`
	WebSocket WebSocketConfig `mapstructure:"websocket" json:"websocket"`
	Session   SessionConfig   `mapstructure:"session" json:"session"`
}

// DatabaseConfig configures the persistence gateway. The retry settings
// bound the reconnect loop both at bootstrap and on probe failure.
type DatabaseConfig struct {
	Driver             string        `mapstructure:"driver" json:"driver"`
	DSN                string        `mapstructure:"dsn" json:"dsn"`
	MaxConnectAttempts int           `mapstructure:"max_connect_attempts" json:"max_connect_attempts"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay" json:"reconnect_delay"`
}

// HTTPConfig configures the listener serving /ws, /health and /api/stats.
type HTTPConfig struct {
	Host         string        `mapstructure:"host" json:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	Port         int           `mapstructure:"port" json:"port"`
}

// WebSocketConfig configures per-connection transport behavior.
type WebSocketConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval" json:"ping_interval"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer" json:"send_buffer"`
}

// SessionConfig points the authenticator at the web tier's session files.
// CookieName defaults to PHPSESSID because that is what the web tier sets.
type SessionConfig struct {
	Dir        string `mapstructure:"dir" json:"dir"`
	CookieName string `mapstructure:"cookie_name" json:"cookie_name"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:             "mysql",
			DSN:                "gamechat:gamechat@tcp(127.0.0.1:3306)/gamechat?parseTime=true",
			MaxConnectAttempts: 10,
			ReconnectDelay:     5 * time.Second,
		},
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8081,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			SendBuffer:   100,
		},
		Session: SessionConfig{
			Dir:        "./sessions",
			CookieName: "PHPSESSID",
		},
	}
}

// Load builds the configuration from defaults, environment variables
// (GAMECHAT_ prefix, e.g. GAMECHAT_DATABASE_DSN) and an optional YAML file.
// File values take precedence over environment values.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GAMECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("database.driver", defaults.Database.Driver)
	v.SetDefault("database.dsn", defaults.Database.DSN)
	v.SetDefault("database.max_connect_attempts", defaults.Database.MaxConnectAttempts)
	v.SetDefault("database.reconnect_delay", defaults.Database.ReconnectDelay)
	v.SetDefault("http.host", defaults.HTTP.Host)
	v.SetDefault("http.port", defaults.HTTP.Port)
	v.SetDefault("http.read_timeout", defaults.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", defaults.HTTP.WriteTimeout)
	v.SetDefault("websocket.ping_interval", defaults.WebSocket.PingInterval)
	v.SetDefault("websocket.read_timeout", defaults.WebSocket.ReadTimeout)
	v.SetDefault("websocket.write_timeout", defaults.WebSocket.WriteTimeout)
	v.SetDefault("websocket.send_buffer", defaults.WebSocket.SendBuffer)
	v.SetDefault("session.dir", defaults.Session.Dir)
	v.SetDefault("session.cookie_name", defaults.Session.CookieName)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every section; a relay that starts with a broken
// configuration can never serve a single message.
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver cannot be empty")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}

	if c.Database.MaxConnectAttempts <= 0 {
		return fmt.Errorf("database max connect attempts must be positive")
	}

	if c.Database.ReconnectDelay <= 0 {
		return fmt.Errorf("database reconnect delay must be positive")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}

	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}

	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}

	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}

	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}

	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("WebSocket send buffer must be positive")
	}

	if c.Session.Dir == "" {
		return fmt.Errorf("session directory cannot be empty")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name cannot be empty")
	}

	return nil
}
