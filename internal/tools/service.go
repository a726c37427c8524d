package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyperifyio/nmaptools/internal/nmap"
)

// ServiceConfig is the read-only configuration of a Service.
type ServiceConfig struct {
	// Binary is argv[0] for every operation.
	Binary string
	// DefaultTimeout applies to operations without a table default.
	DefaultTimeout time.Duration
	// Timeouts overrides the default timeout per operation name.
	Timeouts map[string]time.Duration
	// MaxTimeout is the ceiling for any timeout, default or requested.
	MaxTimeout time.Duration
}

// Service dispatches tool calls by name: decode, build, run.
type Service struct {
	cfg    ServiceConfig
	runner Runner
	log    *logrus.Entry
}

// NewService returns a Service that executes through runner.
func NewService(cfg ServiceConfig, runner Runner, log *logrus.Logger) (*Service, error) {
	if cfg.Binary == "" {
		return nil, errors.New("service: binary is required")
	}
	if cfg.DefaultTimeout <= 0 {
		return nil, errors.New("service: default timeout must be positive")
	}
	if cfg.MaxTimeout < cfg.DefaultTimeout {
		return nil, fmt.Errorf("service: max timeout %s is below default timeout %s", cfg.MaxTimeout, cfg.DefaultTimeout)
	}
	for name := range cfg.Timeouts {
		if _, ok := Lookup(name); !ok {
			return nil, fmt.Errorf("service: timeout override for unknown tool %q", name)
		}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{cfg: cfg, runner: runner, log: log.WithField("component", "tools")}, nil
}

// Binary returns the configured scanner binary.
func (s *Service) Binary() string { return s.cfg.Binary }

// Timeout returns the effective default timeout of op, clamped to the
// ceiling.
func (s *Service) Timeout(op Operation) time.Duration {
	d := op.Timeout
	if v, ok := s.cfg.Timeouts[op.Name]; ok && v > 0 {
		d = v
	}
	if d <= 0 {
		d = s.cfg.DefaultTimeout
	}
	if s.cfg.MaxTimeout > 0 && d > s.cfg.MaxTimeout {
		d = s.cfg.MaxTimeout
	}
	return d
}

// Invoke runs the named operation with raw JSON arguments. Every failure is
// reported as an Outcome; Invoke never returns an error.
func (s *Service) Invoke(ctx context.Context, name string, raw json.RawMessage) Outcome {
	ctx = WithInvocation(ctx, name)
	log := s.log.WithFields(logrus.Fields{"tool": name, "invocation_id": InvocationID(ctx)})

	op, ok := Lookup(name)
	if !ok {
		log.Warn("unknown tool")
		return InvalidInput{Field: "tool", Rule: fmt.Sprintf("unknown tool %q", name)}
	}
	argv, limit, err := s.prepare(op, raw)
	if err != nil {
		out := invalidFrom(err)
		log.WithField("field", out.Field).Warnf("rejected arguments: %s", out.Rule)
		return out
	}
	log.WithField("timeout", limit.String()).Debug("invoking")
	return s.runner.Run(ctx, argv, limit)
}

func (s *Service) prepare(op Operation, raw json.RawMessage) ([]string, time.Duration, error) {
	args, requested, err := splitTimeout(raw)
	if err != nil {
		return nil, 0, err
	}
	limit := s.Timeout(op)
	if requested != nil {
		sec := *requested
		if sec < 1 {
			return nil, 0, &nmap.ValidationError{Field: "timeout_sec", Rule: "must be at least 1"}
		}
		// Compare in seconds; multiplying first overflows for huge requests.
		maxSec := int64(s.cfg.MaxTimeout / time.Second)
		if int64(sec) > maxSec {
			return nil, 0, &nmap.ValidationError{Field: "timeout_sec",
				Rule: fmt.Sprintf("must not exceed %d (maximum timeout %s)", maxSec, s.cfg.MaxTimeout)}
		}
		limit = time.Duration(sec) * time.Second
	}
	argv, err := op.Build(s.cfg.Binary, args)
	if err != nil {
		return nil, 0, err
	}
	return argv, limit, nil
}

func invalidFrom(err error) InvalidInput {
	var ve *nmap.ValidationError
	if errors.As(err, &ve) {
		return InvalidInput{Field: ve.Field, Rule: ve.Rule}
	}
	return InvalidInput{Field: "arguments", Rule: err.Error()}
}
