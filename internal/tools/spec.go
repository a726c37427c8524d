package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/hyperifyio/nmaptools/internal/nmap"
)

// Operation is one entry of the static tool table: a name, the schema
// advertised to clients, the default timeout and the argument builder.
// A zero Timeout means the service-wide default applies.
type Operation struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Timeout     time.Duration
	build       func(binary string, args json.RawMessage) ([]string, error)
}

// Build decodes args on top of the operation's defaults and returns the
// argument vector. Errors are always *nmap.ValidationError.
func (o Operation) Build(binary string, args json.RawMessage) ([]string, error) {
	return o.build(binary, args)
}

func define[P any](name, desc string, timeout time.Duration, schema json.RawMessage, defaults P, build func(string, P) ([]string, error)) Operation {
	return Operation{
		Name:        name,
		Description: desc,
		Schema:      schema,
		Timeout:     timeout,
		build: func(binary string, args json.RawMessage) ([]string, error) {
			p := defaults
			if err := decodeArgs(args, &p); err != nil {
				return nil, err
			}
			return build(binary, p)
		},
	}
}

const (
	// configuredTimeout defers to the service's default timeout.
	configuredTimeout time.Duration = 0
	mediumTimeout                   = 300 * time.Second
	longTimeout                     = 600 * time.Second
)

var operations = []Operation{
	define("nmap_basic_scan",
		"Perform a basic Nmap scan of specified targets",
		configuredTimeout,
		objectSchema(targetsParam, portsParam,
			enum("scan_type", "quick: top 100 ports, fast timing; comprehensive: service, OS and default scripts; stealth: slow SYN scan",
				nmap.ScanQuick, nmap.ScanQuick, nmap.ScanComprehensive, nmap.ScanStealth)),
		nmap.DefaultBasicScan, nmap.BuildBasicScan),
	define("nmap_service_detection",
		"Perform service and version detection scan",
		mediumTimeout,
		objectSchema(targetsParam, portsParam,
			integer("intensity", "Version detection intensity from 0 (light) to 9 (try all probes)", 7, 0, 9)),
		nmap.DefaultServiceDetection, nmap.BuildServiceDetection),
	define("nmap_os_detection",
		"Perform operating system detection scan",
		mediumTimeout,
		objectSchema(targetsParam, portsParam,
			integer("retries", "Extra OS detection attempts after the first", 2, 0, 50)),
		nmap.DefaultOSDetection, nmap.BuildOSDetection),
	define("nmap_script_scan",
		"Run NSE (Nmap Scripting Engine) scripts",
		mediumTimeout,
		objectSchema(targetsParam, portsParam,
			str("scripts", "Script names, categories or an expression such as \"default and safe\"", "default")),
		nmap.DefaultScriptScan, nmap.BuildScriptScan),
	define("nmap_stealth_scan",
		"Perform stealth scan (SYN scan) with minimal detection",
		mediumTimeout,
		objectSchema(targetsParam, portsParam,
			enum("timing_template", "Timing template controlling scan speed", "polite",
				"paranoid", "sneaky", "polite", "normal", "aggressive", "insane")),
		nmap.DefaultStealthScan, nmap.BuildStealthScan),
	define("nmap_comprehensive_scan",
		"Perform comprehensive scan with all detection methods",
		longTimeout,
		objectSchema(targetsParam, portsParam,
			boolean("include_scripts", "Also run the default NSE scripts", true)),
		nmap.DefaultComprehensiveScan, nmap.BuildComprehensiveScan),
	define("nmap_ping_scan",
		"Perform ping scan to discover live hosts",
		configuredTimeout,
		objectSchema(targetsParam,
			enum("method", "Host discovery probes", "both", "icmp", "tcp", "both")),
		nmap.DefaultPingScan, nmap.BuildPingScan),
	define("nmap_port_scan",
		"Scan specific ports on target hosts",
		configuredTimeout,
		objectSchema(targetsParam,
			required(str("ports", "Ports to scan, e.g. \"22,80,443\" or \"1-1024\"", nil)),
			enum("method", "Scan technique", "syn", "syn", "connect", "udp")),
		nmap.DefaultPortScan, nmap.BuildPortScan),
	define("nmap_vulnerability_scan",
		"Run vulnerability detection scripts",
		longTimeout,
		objectSchema(targetsParam, portsParam,
			str("vuln_category", "\"all\" or a script category intersected with vuln (e.g. \"safe\")", "all")),
		nmap.DefaultVulnerabilityScan, nmap.BuildVulnerabilityScan),
	define("nmap_network_discovery",
		"Discover hosts and services on a network",
		configuredTimeout,
		objectSchema(targetsParam,
			enum("discovery_method", "Discovery probes", "all", "ping", "arp", "syn", "all"),
			boolean("include_ports", "Also scan the top 100 ports of live hosts and identify services", true)),
		nmap.DefaultNetworkDiscovery, nmap.BuildNetworkDiscovery),
	define("nmap_custom_scan",
		"Perform custom Nmap scan with user-defined options",
		configuredTimeout,
		objectSchema(targetsParam,
			required(str("custom_options", "Nmap options separated by whitespace, e.g. \"-sS -p 1-1000\"", nil)),
			enum("output_format", "Output format written to stdout", "normal", "normal", "xml", "grepable")),
		nmap.DefaultCustomScan, nmap.BuildCustomScan),
}

var registry = make(map[string]Operation, len(operations))

func init() {
	for _, op := range operations {
		if _, dup := registry[op.Name]; dup {
			panic("tools: duplicate operation " + op.Name)
		}
		registry[op.Name] = op
	}
}

// Lookup returns the operation registered under name.
func Lookup(name string) (Operation, bool) {
	op, ok := registry[name]
	return op, ok
}

// Operations returns every operation sorted by name.
func Operations() []Operation {
	out := append([]Operation(nil), operations...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// splitTimeout removes the shared timeout_sec argument from args. The
// remainder is handed to the operation's builder.
func splitTimeout(args json.RawMessage) (json.RawMessage, *int, error) {
	if isEmptyArgs(args) {
		return nil, nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return nil, nil, &nmap.ValidationError{Field: "arguments", Rule: "must be a JSON object"}
	}
	raw, ok := fields["timeout_sec"]
	if !ok {
		return args, nil, nil
	}
	delete(fields, "timeout_sec")
	var sec int
	if err := json.Unmarshal(raw, &sec); err != nil {
		return nil, nil, &nmap.ValidationError{Field: "timeout_sec", Rule: "must be an integer number of seconds"}
	}
	rest, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("re-encode arguments: %w", err)
	}
	return rest, &sec, nil
}

func isEmptyArgs(args json.RawMessage) bool {
	t := bytes.TrimSpace(args)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// decodeArgs strictly decodes args into dst. Unknown fields, keys whose case
// differs from the declared name, and type mismatches become validation
// errors naming the field.
func decodeArgs(args json.RawMessage, dst any) error {
	if isEmptyArgs(args) {
		return nil
	}
	if err := checkExactKeys(args, dst); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return &nmap.ValidationError{Field: "arguments", Rule: "must be a JSON object"}
		}
		return &nmap.ValidationError{Field: typeErr.Field, Rule: "must be of type " + jsonTypeName(typeErr.Type.Kind().String())}
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return &nmap.ValidationError{Field: strings.Trim(name, `"`), Rule: "unknown argument"}
	}
	return &nmap.ValidationError{Field: "arguments", Rule: "must be a JSON object"}
}

// checkExactKeys rejects keys that encoding/json would only match
// case-insensitively. Non-object input is left for the decoder to report.
func checkExactKeys(args json.RawMessage, dst any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return nil
	}
	known := jsonFieldNames(reflect.TypeOf(dst))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !known[k] {
			return &nmap.ValidationError{Field: k, Rule: "unknown argument"}
		}
	}
	return nil
}

func jsonFieldNames(t reflect.Type) map[string]bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := map[string]bool{}
	if t.Kind() != reflect.Struct {
		return names
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		names[name] = true
	}
	return names
}

func jsonTypeName(kind string) string {
	switch kind {
	case "int", "int64", "int32":
		return "integer"
	case "bool":
		return "boolean"
	default:
		return kind
	}
}
