// Package config loads the process-wide configuration: nmap execution
// limits, the server boundary, and logging. It is read once at startup.
package config

import "time"

// Config is the root configuration document.
type Config struct {
	Nmap   NmapConfig   `mapstructure:"nmap" yaml:"nmap"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// NmapConfig controls how the scanner binary is invoked.
type NmapConfig struct {
	Binary         string                   `mapstructure:"binary" yaml:"binary"`
	DefaultTimeout time.Duration            `mapstructure:"default_timeout" yaml:"default_timeout"`
	MaxTimeout     time.Duration            `mapstructure:"max_timeout" yaml:"max_timeout"`
	Timeouts       map[string]time.Duration `mapstructure:"timeouts" yaml:"timeouts"`
	MaxOutputBytes int                      `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
	KillGrace      time.Duration            `mapstructure:"kill_grace" yaml:"kill_grace"`
	EnvPassthrough []string                 `mapstructure:"env_passthrough" yaml:"env_passthrough"`
	Redact         []string                 `mapstructure:"redact" yaml:"redact"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Transport       string        `mapstructure:"transport" yaml:"transport"` // stdio or http
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Mode            string        `mapstructure:"mode" yaml:"mode"` // gin mode
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst           int           `mapstructure:"burst" yaml:"burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json or text
	Output     string `mapstructure:"output" yaml:"output"` // stdout, stderr or file
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	Caller     bool   `mapstructure:"caller" yaml:"caller"`
}

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)
