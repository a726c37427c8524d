// Package logger builds the process logger from LogConfig.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hyperifyio/nmaptools/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Options adjusts how the config is applied.
type Options struct {
	// KeepStdoutClean redirects stdout output to stderr. Set when stdout
	// carries a protocol stream.
	KeepStdoutClean bool
	// Stdout and Stderr replace the process streams, mainly for tests.
	Stdout, Stderr io.Writer
}

// Logger wraps a configured logrus.Logger and the rotating file behind it,
// if any.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New builds a logger from cfg.
func New(cfg config.LogConfig, opts Options) (*Logger, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)
	log.SetReportCaller(cfg.Caller)

	if err := setFormatter(log, cfg); err != nil {
		return nil, err
	}
	l := &Logger{Logger: log}
	if err := l.setOutput(cfg, opts); err != nil {
		return nil, err
	}
	return l, nil
}

func setFormatter(log *logrus.Logger, cfg config.LogConfig) error {
	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
				logrus.FieldKeyFile:  "file",
			},
		})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
	return nil
}

func (l *Logger) setOutput(cfg config.LogConfig, opts Options) error {
	console := opts.Stdout
	if opts.KeepStdoutClean {
		console = opts.Stderr
	}
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		l.SetOutput(console)
	case "stderr":
		l.SetOutput(opts.Stderr)
	case "file":
		if cfg.FilePath == "" {
			return fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		l.file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		// Debug runs also mirror to the console.
		if l.GetLevel() >= logrus.DebugLevel {
			l.SetOutput(io.MultiWriter(console, l.file))
		} else {
			l.SetOutput(l.file)
		}
	default:
		return fmt.Errorf("unsupported log output: %s", cfg.Output)
	}
	return nil
}

// Close flushes and closes the log file, if one is open.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
