package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port           string          `toml:"port"`
	Environment    string          `toml:"environment"`
	AllowedOrigins []string        `toml:"allowed_origins"`
	JWTSecret      string          `toml:"jwt_secret"`
	LogLevel       string          `toml:"log_level"`
	Redis          RedisConfig     `toml:"redis"`
	ICE            ICEConfig       `toml:"ice"`
	Signaling      SignalingConfig `toml:"signaling"`
}

// RedisConfig points at the optional pit directory. An empty Host disables it.
type RedisConfig struct {
	Host     string        `toml:"host"`
	Port     string        `toml:"port"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	TTL      time.Duration `toml:"ttl"`
}

// ICEConfig lists the STUN/TURN servers handed to browsers.
type ICEConfig struct {
	STUNURLs       []string `toml:"stun_urls"`
	TURNURLs       []string `toml:"turn_urls"`
	TURNUsername   string   `toml:"turn_username"`
	TURNCredential string   `toml:"turn_credential"`
}

// SignalingConfig tunes the websocket transport.
type SignalingConfig struct {
	SendBuffer      int           `toml:"send_buffer"`
	MaxMessageBytes int64         `toml:"max_message_bytes"`
	PongWait        time.Duration `toml:"pong_wait"`
	PingInterval    time.Duration `toml:"ping_interval"`
	WriteWait       time.Duration `toml:"write_wait"`
}

func Default() *Config {
	return &Config{
		Port:           "8080",
		Environment:    "development",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		JWTSecret:      "change-me-in-production",
		LogLevel:       "info",
		Redis: RedisConfig{
			Port: "6379",
			TTL:  24 * time.Hour,
		},
		ICE: ICEConfig{
			STUNURLs: []string{"stun:stun.l.google.com:19302"},
		},
		Signaling: SignalingConfig{
			SendBuffer:      256,
			MaxMessageBytes: 64 << 10,
			PongWait:        60 * time.Second,
			PingInterval:    54 * time.Second,
			WriteWait:       10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, then the TOML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	// Parse allowed origins (comma-separated)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitCommaSeparated(v)
	}

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}

	if v := os.Getenv("STUN_URLS"); v != "" {
		c.ICE.STUNURLs = splitCommaSeparated(v)
	}
	if v := os.Getenv("TURN_URLS"); v != "" {
		c.ICE.TURNURLs = splitCommaSeparated(v)
	}
	c.ICE.TURNUsername = getEnv("TURN_USERNAME", c.ICE.TURNUsername)
	c.ICE.TURNCredential = getEnv("TURN_CREDENTIAL", c.ICE.TURNCredential)
}

// Validate checks values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port %q: %w", c.Port, err)
	}
	if c.Signaling.SendBuffer <= 0 {
		return errors.New("signaling.send_buffer must be positive")
	}
	if c.Signaling.PingInterval >= c.Signaling.PongWait {
		return errors.New("signaling.ping_interval must be shorter than signaling.pong_wait")
	}
	if _, err := c.ICEServers(); err != nil {
		return err
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitCommaSeparated(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
