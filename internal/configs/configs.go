/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures server parameters by reading operating system environment variables (optionally
seeded from a local .env file), including the running environment, listen address, CORS allowed
origins, log level, per-IP rate limits and per-connection transport limits.
*/
package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Host        string
	Port        int
	LogLevel    string

	// Security Settings
	// An empty AllowedOrigins list means cross-origin access is unrestricted.
	AllowedOrigins []string

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP. Enable only
	// behind a reverse proxy that overwrites those headers.
	TrustProxyHeaders bool

	// Rate Limiting Settings (requests per second and burst, per client IP)
	CreateRoomRate  float64
	CreateRoomBurst int
	WSConnectRate   float64
	WSConnectBurst  int

	// Connection Settings
	SendQueueSize   int
	MaxMessageBytes int64
}

// IsDevelopment reports whether the application runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// Addr returns the host:port pair the HTTP server listens on.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses the application configuration from environment variables.
// Values from a .env file in the working directory are loaded first; real environment
// variables always take precedence over it.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = getEnv("ENVIRONMENT", "development")
	cfg.Host = getEnv("HOST", "0.0.0.0")

	port, err := strconv.Atoi(getEnv("PORT", "8000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", port, 1024, 65535)
	}
	cfg.Port = port

	defaultLevel := "info"
	if cfg.IsDevelopment() {
		defaultLevel = "debug"
	}
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", defaultLevel))

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	trustProxy, err := strconv.ParseBool(getEnv("TRUST_PROXY_HEADERS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRUST_PROXY_HEADERS environment variable: %w", err)
	}
	cfg.TrustProxyHeaders = trustProxy

	// --- Rate Limiting Settings ---
	if cfg.CreateRoomRate, err = parseFloat("CREATE_ROOM_RATE", "1"); err != nil {
		return nil, err
	}
	if cfg.CreateRoomBurst, err = parseInt("CREATE_ROOM_BURST", "5"); err != nil {
		return nil, err
	}
	if cfg.WSConnectRate, err = parseFloat("WS_CONNECT_RATE", "1"); err != nil {
		return nil, err
	}
	if cfg.WSConnectBurst, err = parseInt("WS_CONNECT_BURST", "10"); err != nil {
		return nil, err
	}

	// --- Connection Settings ---
	if cfg.SendQueueSize, err = parseInt("SEND_QUEUE_SIZE", "256"); err != nil {
		return nil, err
	}
	maxBytes, err := parseInt("MAX_MESSAGE_BYTES", "65536")
	if err != nil {
		return nil, err
	}
	cfg.MaxMessageBytes = int64(maxBytes)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key, fallback string) (int, error) {
	v, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}

func parseFloat(key, fallback string) (float64, error) {
	v, err := strconv.ParseFloat(getEnv(key, fallback), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}
