package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NMAPTOOLS_NMAP_BINARY.
const EnvPrefix = "NMAPTOOLS"

// Loader reads configuration from defaults, an optional YAML file, a .env
// file and the environment, in increasing order of precedence. Flags bound
// to Viper() win over all of them.
type Loader struct {
	configFile string
	envFile    string
	viper      *viper.Viper
}

// NewLoader returns a loader. An empty configFile searches the default
// locations; a missing file there is not an error.
func NewLoader(configFile string) *Loader {
	return &Loader{configFile: configFile, envFile: ".env", viper: viper.New()}
}

// SetConfigFile selects an explicit config file. An empty path restores the
// default search.
func (l *Loader) SetConfigFile(path string) { l.configFile = path }

// SetEnvFile overrides the .env path. An empty path disables it.
func (l *Loader) SetEnvFile(path string) { l.envFile = path }

// Viper exposes the underlying instance so command flags can be bound.
func (l *Loader) Viper() *viper.Viper { return l.viper }

// ConfigFileUsed reports the file that was read, if any.
func (l *Loader) ConfigFileUsed() string { return l.viper.ConfigFileUsed() }

// Load resolves and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := loadEnvFile(l.envFile); err != nil {
		return nil, err
	}

	v := l.viper
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := l.readConfigFile(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) readConfigFile() error {
	v := l.viper
	path := l.configFile
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
	v.SetConfigName("nmaptools")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "nmaptools"))
	}
	v.AddConfigPath("/etc/nmaptools")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// loadEnvFile loads KEY=VALUE pairs without overriding variables that are
// already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("nmap.binary", "nmap")
	v.SetDefault("nmap.default_timeout", "120s")
	v.SetDefault("nmap.max_timeout", "30m")
	v.SetDefault("nmap.timeouts", map[string]string{})
	v.SetDefault("nmap.max_output_bytes", 1<<20)
	v.SetDefault("nmap.kill_grace", "2s")
	v.SetDefault("nmap.env_passthrough", []string{})
	v.SetDefault("nmap.redact", []string{})

	v.SetDefault("server.transport", TransportStdio)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file_path", "logs/nmaptools.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.caller", false)
}

// Validate checks cross-field constraints after defaults and overrides.
func Validate(cfg *Config) error {
	n := cfg.Nmap
	if strings.TrimSpace(n.Binary) == "" {
		return errors.New("nmap.binary is required")
	}
	if n.DefaultTimeout <= 0 {
		return fmt.Errorf("nmap.default_timeout must be positive, got %s", n.DefaultTimeout)
	}
	if n.MaxTimeout < n.DefaultTimeout {
		return fmt.Errorf("nmap.max_timeout %s is below nmap.default_timeout %s", n.MaxTimeout, n.DefaultTimeout)
	}
	for name, d := range n.Timeouts {
		if d <= 0 {
			return fmt.Errorf("nmap.timeouts.%s must be positive, got %s", name, d)
		}
	}
	if n.MaxOutputBytes <= 0 {
		return fmt.Errorf("nmap.max_output_bytes must be positive, got %d", n.MaxOutputBytes)
	}
	if n.KillGrace < 0 {
		return fmt.Errorf("nmap.kill_grace must not be negative, got %s", n.KillGrace)
	}

	s := cfg.Server
	switch s.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, s.Transport)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Port)
	}
	if s.RateLimit <= 0 {
		return fmt.Errorf("server.rate_limit must be positive, got %v", s.RateLimit)
	}
	if s.Burst < 1 {
		return fmt.Errorf("server.burst must be at least 1, got %d", s.Burst)
	}

	l := cfg.Log
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch l.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", l.Format)
	}
	switch l.Output {
	case "stdout", "stderr":
	case "file":
		if l.FilePath == "" {
			return errors.New("log.file_path is required when log.output is file")
		}
	default:
		return fmt.Errorf("log.output must be stdout, stderr or file, got %q", l.Output)
	}
	return nil
}
