package tools

import (
	"encoding/json"
	"fmt"
)

// param describes one tool argument for the JSON Schema handed to clients.
type param struct {
	name     string
	typ      string
	desc     string
	enum     []string
	def      any
	min, max *int
	required bool
}

func intPtr(v int) *int { return &v }

func str(name, desc string, def any) param {
	return param{name: name, typ: "string", desc: desc, def: def}
}

func enum(name, desc, def string, values ...string) param {
	return param{name: name, typ: "string", desc: desc, def: def, enum: values}
}

func integer(name, desc string, def, lo, hi int) param {
	return param{name: name, typ: "integer", desc: desc, def: def, min: intPtr(lo), max: intPtr(hi)}
}

func boolean(name, desc string, def bool) param {
	return param{name: name, typ: "boolean", desc: desc, def: def}
}

func required(p param) param {
	p.required = true
	p.def = nil
	return p
}

var (
	targetsParam = required(str("targets",
		"Hosts, IP addresses, CIDR blocks or ranges separated by whitespace (e.g. \"192.168.1.1 10.0.0.0/24\")", nil))
	portsParam = str("ports",
		"\"common\" (top ports), \"all\", or a list such as \"22,80,443,8000-8100\"", "common")
)

// timeoutParam is accepted by every operation. The ceiling is enforced at
// invocation time against the loaded configuration.
var timeoutParam = param{
	name: "timeout_sec",
	typ:  "integer",
	desc: "Override the default timeout in seconds (capped by the server's maximum)",
	min:  intPtr(1),
}

// objectSchema renders params into a JSON Schema object. Unknown arguments
// are rejected, so additionalProperties is false.
func objectSchema(params ...param) json.RawMessage {
	props := make(map[string]map[string]any, len(params)+1)
	var req []string
	for _, p := range append(params, timeoutParam) {
		prop := map[string]any{"type": p.typ, "description": p.desc}
		if p.def != nil {
			prop["default"] = p.def
		}
		if len(p.enum) > 0 {
			prop["enum"] = p.enum
		}
		if p.min != nil {
			prop["minimum"] = *p.min
		}
		if p.max != nil {
			prop["maximum"] = *p.max
		}
		if p.required {
			req = append(req, p.name)
		}
		props[p.name] = prop
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(req) > 0 {
		schema["required"] = req
	}
	b, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema: %v", err))
	}
	return b
}
