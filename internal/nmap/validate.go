// Package nmap turns typed scan parameters into nmap argument vectors.
//
// Every value that reaches the command line is checked against an allow-list
// first. Builders never produce a shell string: each flag and each value is
// its own argv element, targets always come last, and no target may look
// like an option.
package nmap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ValidationError identifies the offending field and the rule it broke.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Rule)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Rule: fmt.Sprintf(format, args...)}
}

const (
	maxTargetTokens = 256
	maxTargetBytes  = 4096
	maxScriptBytes  = 512
	maxRetries      = 50
	minPort         = 1
	maxPort         = 65535

	// PortsCommon selects nmap's most frequently open ports.
	PortsCommon = "common"
	// PortsAll selects every TCP/UDP port.
	PortsAll = "all"
)

var (
	targetChars   = regexp.MustCompile(`^[A-Za-z0-9.:/,\-_\s]+$`)
	scriptChars   = regexp.MustCompile(`^[A-Za-z0-9_.,:* ()-]+$`)
	categoryChars = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// shellMeta are sequences rejected in free-form option tokens. No shell ever
// sees them, but a token carrying one is never a legitimate nmap option.
var shellMeta = []string{";", "|", "&", "`", "$(", ">", "<"}

// fileOptions are long option names, without dashes, that make nmap read
// from or write to the local filesystem.
var fileOptions = []string{
	"iL", "oN", "oX", "oG", "oA", "oS", "oM",
	"resume", "datadir", "servicedb", "versiondb",
	"excludefile", "stylesheet", "script-args-file", "script-updatedb",
}

// exactOptions are harmless long options whose names are also a prefix of
// a file option. nmap prefers an exact match over prefix expansion.
var exactOptions = map[string]bool{
	"script":      true,
	"script-args": true,
	"version":     true,
	"data":        true,
	"exclude":     true,
}

// clusterSafeOptions are single-dash long options that would otherwise scan
// as a short option cluster reaching -i or -o.
var clusterSafeOptions = map[string]bool{
	"iR":             true,
	"iflist":         true,
	"ip-options":     true,
	"open":           true,
	"osscan-limit":   true,
	"osscan-guess":   true,
	"host-timeout":   true,
	"noninteractive": true,
}

// scriptOptions take an NSE script expression as their value.
var scriptOptions = map[string]bool{"script": true, "script-help": true}

// shortNoArg lists nmap short options that take no argument and so may be
// followed by another short option in the same token.
const shortNoArg = "46AFfhInqRrUV"

// ValidateTargets checks a free-text target list and splits it into argv
// tokens, one per host or network expression.
func ValidateTargets(targets string) ([]string, error) {
	trimmed := strings.TrimSpace(targets)
	if trimmed == "" {
		return nil, invalid("targets", "must not be empty")
	}
	if len(trimmed) > maxTargetBytes {
		return nil, invalid("targets", "must be at most %d bytes", maxTargetBytes)
	}
	if !targetChars.MatchString(trimmed) {
		return nil, invalid("targets", "only letters, digits, '.', ':', '/', ',', '-', '_' and whitespace are allowed")
	}
	tokens := strings.Fields(trimmed)
	if len(tokens) > maxTargetTokens {
		return nil, invalid("targets", "at most %d targets are allowed", maxTargetTokens)
	}
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "-") {
			return nil, invalid("targets", "target %q must not start with '-'", tok)
		}
	}
	return tokens, nil
}

// ValidatePorts accepts "common", "all", or a comma list of ports and
// port ranges such as "22,80,8000-8100".
func ValidatePorts(ports string) error {
	ports = strings.TrimSpace(ports)
	if ports == PortsCommon || ports == PortsAll {
		return nil
	}
	if ports == "" {
		return invalid("ports", "must not be empty")
	}
	for _, part := range strings.Split(ports, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := parsePort(lo)
		if err != nil {
			return invalid("ports", "%q: %v", part, err)
		}
		if !isRange {
			continue
		}
		last, err := parsePort(hi)
		if err != nil {
			return invalid("ports", "%q: %v", part, err)
		}
		if first > last {
			return invalid("ports", "%q: range start is greater than range end", part)
		}
	}
	return nil
}

func parsePort(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing port number")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("only digits, ',' and '-' are allowed")
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minPort || n > maxPort {
		return 0, fmt.Errorf("port must be between %d and %d", minPort, maxPort)
	}
	return n, nil
}

// ValidateScripts checks an NSE script name, category, or boolean expression
// such as "default and safe".
func ValidateScripts(field, scripts string) error {
	s := strings.TrimSpace(scripts)
	if s == "" {
		return invalid(field, "must not be empty")
	}
	if len(s) > maxScriptBytes {
		return invalid(field, "must be at most %d bytes", maxScriptBytes)
	}
	if strings.HasPrefix(s, "-") {
		return invalid(field, "must not start with '-'")
	}
	if !scriptChars.MatchString(s) {
		return invalid(field, "only letters, digits, spaces and '_.,:*-()' are allowed")
	}
	if strings.Contains(s, "..") || strings.Contains(strings.ToLower(s), ".nse") {
		return invalid(field, "must name installed scripts or categories, not script files")
	}
	return nil
}

// TokenizeOptions splits a raw option string on whitespace and vets each
// token. The result preserves the caller's order.
func TokenizeOptions(field, raw string) ([]string, error) {
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return nil, invalid(field, "must contain at least one option")
	}
	scriptValue := false
	for _, tok := range tokens {
		for _, meta := range shellMeta {
			if strings.Contains(tok, meta) {
				return nil, invalid(field, "token %q contains forbidden sequence %q", tok, meta)
			}
		}
		if scriptValue {
			scriptValue = false
			if err := ValidateScripts(field, tok); err != nil {
				return nil, err
			}
			continue
		}
		if !strings.HasPrefix(tok, "-") || tok == "-" {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(tok, "-"), "=")
		if readsLocalFiles(name, !strings.HasPrefix(tok, "--")) {
			return nil, invalid(field, "option %q reads or writes local files and is not allowed", tok)
		}
		if scriptOptions[name] {
			if !hasValue {
				scriptValue = true
				continue
			}
			if err := ValidateScripts(field, value); err != nil {
				return nil, err
			}
		}
	}
	return tokens, nil
}

// readsLocalFiles reports whether an option name, stripped of dashes and of
// any "=value", resolves to a file option the way nmap's getopt_long_only
// parser would resolve it. singleDash enables short option clusters such as
// "-niL/etc/hosts".
func readsLocalFiles(name string, singleDash bool) bool {
	if name == "" {
		return false
	}
	if singleDash && len(name) == 1 {
		return name == "i" || name == "o"
	}
	for _, opt := range fileOptions {
		if name == opt {
			return true
		}
		if strings.HasPrefix(opt, name) && !exactOptions[name] {
			return true
		}
	}
	if !singleDash || exactOptions[name] || clusterSafeOptions[name] {
		return false
	}
	for _, c := range name {
		if c == 'i' || c == 'o' {
			return true
		}
		if !strings.ContainsRune(shortNoArg, c) {
			return false
		}
	}
	return false
}

func checkRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return invalid(field, "must be between %d and %d", lo, hi)
	}
	return nil
}

func checkEnum(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return invalid(field, "must be one of %s", strings.Join(allowed, ", "))
}
