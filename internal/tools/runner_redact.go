package tools

import (
	"os"
	"regexp"
	"strings"
)

const redactedMark = "***REDACTED***"

type redactionPatterns struct {
	regexps  []*regexp.Regexp
	literals []string
}

// gatherRedactionPatterns compiles configured patterns plus those from
// NMAPTOOLS_REDACT (comma or semicolon separated). An entry that is not a
// valid regex is masked literally.
func gatherRedactionPatterns(configured []string) redactionPatterns {
	var pats redactionPatterns
	entries := append([]string(nil), configured...)
	if env := os.Getenv("NMAPTOOLS_REDACT"); env != "" {
		entries = append(entries, strings.FieldsFunc(env, func(r rune) bool { return r == ',' || r == ';' })...)
	}
	for _, f := range entries {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if rx, err := regexp.Compile(f); err == nil {
			pats.regexps = append(pats.regexps, rx)
		} else {
			pats.literals = append(pats.literals, f)
		}
	}
	return pats
}

func (p redactionPatterns) apply(s string) string {
	if s == "" {
		return s
	}
	for _, rx := range p.regexps {
		s = rx.ReplaceAllString(s, redactedMark)
	}
	for _, lit := range p.literals {
		s = strings.ReplaceAll(s, lit, redactedMark)
	}
	return s
}

// applyAll returns a redacted copy of values.
func (p redactionPatterns) applyAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = p.apply(v)
	}
	return out
}
