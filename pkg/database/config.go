package database

import (
	"errors"
	"time"
)

// Config holds the settings for the relational store connection.
// Driver is a database/sql driver name; "mysql" in production (the web
// tier's database) and "sqlite3" in tests.
type Config struct {
	Driver             string        `json:"driver"`
	DSN                string        `json:"dsn"`
	MaxOpenConns       int           `json:"max_open_conns"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
	MaxConnectAttempts int           `json:"max_connect_attempts"`
	ReconnectDelay     time.Duration `json:"reconnect_delay"`
}

// DefaultConfig returns the production defaults. The bounded-retry settings
// (10 attempts, 5 seconds apart) match the web tier's expectations for a
// database that may still be starting up alongside the relay.
func DefaultConfig() *Config {
	return &Config{
		Driver:             "mysql",
		DSN:                "gamechat:gamechat@tcp(127.0.0.1:3306)/gamechat?parseTime=true",
		MaxOpenConns:       1,
		ConnMaxLifetime:    time.Hour,
		MaxConnectAttempts: 10,
		ReconnectDelay:     5 * time.Second,
	}
}

// Validate ensures the configuration is usable before any connect attempt.
func (c *Config) Validate() error {
	if c.Driver != "mysql" && c.Driver != "sqlite3" {
		return errors.New("driver must be mysql or sqlite3")
	}
	if c.DSN == "" {
		return errors.New("DSN cannot be empty")
	}
	if c.MaxOpenConns <= 0 {
		return errors.New("max open connections must be greater than 0")
	}
	if c.MaxConnectAttempts <= 0 {
		return errors.New("max connect attempts must be greater than 0")
	}
	if c.ReconnectDelay <= 0 {
		return errors.New("reconnect delay must be positive")
	}
	return nil
}
