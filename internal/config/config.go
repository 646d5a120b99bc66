package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config aggregates every configurable piece of the service.
type Config struct {
	Server   ServerConfig
	Telnyx   TelnyxConfig
	Database DatabaseConfig
	Agent    AgentConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	telnyx := loadTelnyxConfig()
	database := loadDatabaseConfig()

	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Telnyx: telnyx, Database: database, Agent: agent}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// TelnyxConfig holds the call-control API credentials.
type TelnyxConfig struct {
	APIKey        string
	BaseURL       string
	WebhookSecret string
	ConnectionID  string
	FromNumber    string
}

// Configured reports whether an API key was provided.
func (c TelnyxConfig) Configured() bool {
	return c.APIKey != ""
}

func loadTelnyxConfig() TelnyxConfig {
	return TelnyxConfig{
		APIKey:        strings.TrimSpace(os.Getenv("TELNYX_API_KEY")),
		BaseURL:       getEnvOrDefault("TELNYX_BASE_URL", "https://api.telnyx.com/v2"),
		WebhookSecret: strings.TrimSpace(os.Getenv("TELNYX_WEBHOOK_SECRET")),
		ConnectionID:  strings.TrimSpace(os.Getenv("TELNYX_CONNECTION_ID")),
		FromNumber:    strings.TrimSpace(os.Getenv("TELNYX_FROM_NUMBER")),
	}
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string
}

func loadDatabaseConfig() DatabaseConfig {
	path := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if path == "" {
		path = filepath.Join("data", "frontdesk.db")
	}
	return DatabaseConfig{Path: path}
}

// AgentConfig tunes call-session housekeeping.
type AgentConfig struct {
	IdleTimeout     time.Duration
	CleanupSchedule string
}

func loadAgentConfig() (AgentConfig, error) {
	idle, err := parseDurationEnv("AGENT_IDLE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return AgentConfig{}, err
	}

	return AgentConfig{
		IdleTimeout:     idle,
		CleanupSchedule: getEnvOrDefault("AGENT_CLEANUP_SCHEDULE", "@every 5m"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
