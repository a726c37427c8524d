package tools

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/nmaptools/internal/nmap"
)

func TestOperations_TableIsCompleteAndSorted(t *testing.T) {
	ops := Operations()
	var names []string
	for _, op := range ops {
		names = append(names, op.Name)
	}
	assert.True(t, sort.StringsAreSorted(names))
	assert.ElementsMatch(t, []string{
		"nmap_basic_scan", "nmap_service_detection", "nmap_os_detection",
		"nmap_script_scan", "nmap_stealth_scan", "nmap_comprehensive_scan",
		"nmap_ping_scan", "nmap_port_scan", "nmap_vulnerability_scan",
		"nmap_network_discovery", "nmap_custom_scan",
	}, names)

	ops[0].Name = "mutated"
	_, ok := Lookup("mutated")
	assert.False(t, ok, "Operations must return a copy")
}

func TestOperations_SchemasAreStrictObjects(t *testing.T) {
	for _, op := range Operations() {
		var schema struct {
			Type                 string                    `json:"type"`
			Properties           map[string]map[string]any `json:"properties"`
			Required             []string                  `json:"required"`
			AdditionalProperties bool                      `json:"additionalProperties"`
		}
		require.NoError(t, json.Unmarshal(op.Schema, &schema), op.Name)
		assert.Equal(t, "object", schema.Type, op.Name)
		assert.False(t, schema.AdditionalProperties, op.Name)
		assert.Contains(t, schema.Required, "targets", op.Name)
		assert.Contains(t, schema.Properties, "timeout_sec", op.Name)
		assert.NotEmpty(t, op.Description, op.Name)
	}
}

func TestOperation_BuildCustomScanRoundTrip(t *testing.T) {
	op, ok := Lookup("nmap_custom_scan")
	require.True(t, ok)
	argv, err := op.Build("nmap", json.RawMessage(`{"targets":"192.168.1.1","custom_options":"-sS -p 1-1000"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"nmap", "-sS", "-p", "1-1000", "192.168.1.1"}, argv)
}

func TestOperation_BuildDoesNotLeakDefaultsBetweenCalls(t *testing.T) {
	op, ok := Lookup("nmap_service_detection")
	require.True(t, ok)
	_, err := op.Build("nmap", json.RawMessage(`{"targets":"10.0.0.1","intensity":2}`))
	require.NoError(t, err)
	argv, err := op.Build("nmap", json.RawMessage(`{"targets":"10.0.0.1"}`))
	require.NoError(t, err)
	assert.Equal(t, "7", argv[3])
}

func TestOperation_BuildRejectsMiscasedKeys(t *testing.T) {
	op, ok := Lookup("nmap_ping_scan")
	require.True(t, ok)
	for _, args := range []string{
		`{"TARGETS":"10.0.0.1"}`,
		`{"targets":"10.0.0.1","Method":"tcp"}`,
	} {
		_, err := op.Build("nmap", json.RawMessage(args))
		var ve *nmap.ValidationError
		require.ErrorAs(t, err, &ve, args)
		assert.Equal(t, "unknown argument", ve.Rule, args)
	}
}

func TestSplitTimeout(t *testing.T) {
	rest, sec, err := splitTimeout(json.RawMessage(`{"targets":"a","timeout_sec":30}`))
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, 30, *sec)
	assert.JSONEq(t, `{"targets":"a"}`, string(rest))

	rest, sec, err = splitTimeout(json.RawMessage(` null `))
	require.NoError(t, err)
	assert.Nil(t, sec)
	assert.Nil(t, rest)
}
