// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables (optionally seeded from a .env
// file) with sensible defaults and validates all settings on startup to fail fast
// on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Upload   UploadConfig
	Session  SessionConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// BackendConfig selects and tunes the backend gateway.
// The variant is chosen once per process.
type BackendConfig struct {
	// APIBaseURL is the remote user service endpoint, host:port or http(s)://host:port
	APIBaseURL string `env:"API_BASE_URL" default:"localhost:8090"`

	// UseLocal forces the in-memory backend (default: false)
	UseLocal bool `env:"USE_LOCAL_BACKEND" default:"false"`

	// LocalLatency is the simulated delay of every local backend call (default: 1s)
	LocalLatency time.Duration `env:"LOCAL_BACKEND_LATENCY" default:"1s"`

	// RequestTimeout bounds a single remote call (default: 30s)
	RequestTimeout time.Duration `env:"BACKEND_REQUEST_TIMEOUT" default:"30s"`

	// RetryAttempts is how many times read-only remote calls are tried (default: 3)
	RetryAttempts int `env:"BACKEND_RETRY_ATTEMPTS" default:"3"`

	// RPCListenAddr is where cmd/userimportd serves the user service (default: :8090)
	RPCListenAddr string `env:"RPC_LISTEN_ADDR" default:":8090"`
}

// UploadConfig holds CSV upload processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 5MiB)
	MaxFileSize int64 `env:"MAX_UPLOAD_SIZE_BYTES" envAlt:"UPLOAD_MAX_FILE_SIZE" default:"5242880"`

	// AcceptedExtensions is a comma-separated list of file extensions (default: .csv)
	AcceptedExtensions []string `env:"ACCEPTED_EXTENSIONS" default:".csv"`

	// ValidationRules selects the field rule set: strict or lenient (default: strict)
	ValidationRules string `env:"VALIDATION_RULES" default:"strict"`

	// MaxConcurrent is the maximum number of uploads parsed in parallel (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// SessionConfig holds limits for web-hosted import sessions.
type SessionConfig struct {
	// MaxActive caps the number of live sessions in the registry (default: 100)
	MaxActive int `env:"SESSION_MAX_ACTIVE" default:"100"`
}

// SecurityConfig holds HTTP API access settings.
type SecurityConfig struct {
	// APIKeys is a comma-separated list of accepted X-API-Key values.
	// When empty the API is open.
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// RequireAPIKey reports whether requests must carry an API key.
func (c *SecurityConfig) RequireAPIKey() bool {
	return len(c.APIKeys) > 0
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}
