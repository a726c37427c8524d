package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/nmaptools/internal/tools"
)

type stubInvoker struct {
	mu    sync.Mutex
	names []string
	args  []string
	out   tools.Outcome
}

func (s *stubInvoker) Invoke(_ context.Context, name string, raw json.RawMessage) tools.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.args = append(s.args, string(raw))
	return s.out
}

func call(t *testing.T, inv *stubInvoker, msg string) map[string]any {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	s := New(inv, "test", log)
	resp := s.HandleMessage(context.Background(), json.RawMessage(msg))
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	return decoded
}

func TestToolsList_AdvertisesEveryOperation(t *testing.T) {
	resp := call(t, &stubInvoker{}, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result := resp["result"].(map[string]any)
	list := result["tools"].([]any)
	require.Len(t, list, len(tools.Operations()))

	var names []string
	for _, item := range list {
		tool := item.(map[string]any)
		names = append(names, tool["name"].(string))
		schema := tool["inputSchema"].(map[string]any)
		assert.Equal(t, "object", schema["type"])
	}
	assert.Contains(t, names, "nmap_basic_scan")
	assert.Contains(t, names, "nmap_custom_scan")
}

func TestToolsCall_SuccessIsText(t *testing.T) {
	inv := &stubInvoker{out: tools.Success{Stdout: "Host is up"}}
	resp := call(t, inv, `{"jsonrpc":"2.0","id":2,"method":"tools/call",
		"params":{"name":"nmap_ping_scan","arguments":{"targets":"10.0.0.1"}}}`)

	result := resp["result"].(map[string]any)
	assert.NotEqual(t, true, result["isError"])
	content := result["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "Host is up", content["text"])
	require.Equal(t, []string{"nmap_ping_scan"}, inv.names)
	assert.JSONEq(t, `{"targets":"10.0.0.1"}`, inv.args[0])
}

func TestToolsCall_FailureIsToolError(t *testing.T) {
	inv := &stubInvoker{out: tools.Timeout{Elapsed: time.Second, Limit: time.Second}}
	resp := call(t, inv, `{"jsonrpc":"2.0","id":3,"method":"tools/call",
		"params":{"name":"nmap_os_detection","arguments":{"targets":"10.0.0.1"}}}`)

	assert.Nil(t, resp["error"], "failures must not be protocol errors")
	result := resp["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
	content := result["content"].([]any)[0].(map[string]any)
	assert.True(t, strings.HasPrefix(content["text"].(string), "timeout exceeded"))
}

func TestServeStdio_RoundTrip(t *testing.T) {
	inv := &stubInvoker{out: tools.Success{Stdout: "ok"}}
	log, _ := logtest.NewNullLogger()
	s := New(inv, "test", log)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}` + "\n")
	pr, pw := io.Pipe()
	var out bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(&out, pr)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ServeStdio(ctx, s, in, pw, log)
	require.NoError(t, err)
	_ = pw.Close()
	<-done

	line := strings.SplitN(out.String(), "\n", 2)[0]
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	info := resp["result"].(map[string]any)["serverInfo"].(map[string]any)
	assert.Equal(t, ServerName, info["name"])
}

// delayInvoker sleeps per tool before answering.
type delayInvoker struct {
	delays map[string]time.Duration
}

func (d delayInvoker) Invoke(_ context.Context, name string, _ json.RawMessage) tools.Outcome {
	time.Sleep(d.delays[name])
	return tools.Success{Stdout: name + " done"}
}

func TestServeStdio_SlowCallDoesNotBlockFastCall(t *testing.T) {
	inv := delayInvoker{delays: map[string]time.Duration{"nmap_vulnerability_scan": 2 * time.Second}}
	log, _ := logtest.NewNullLogger()
	s := New(inv, "test", log)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- ServeStdio(ctx, s, inR, outW, log) }()

	start := time.Now()
	go func() {
		_, _ = io.WriteString(inW, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nmap_vulnerability_scan","arguments":{"targets":"10.0.0.1"}}}`+"\n")
		_, _ = io.WriteString(inW, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"nmap_ping_scan","arguments":{"targets":"10.0.0.1"}}}`+"\n")
		_ = inW.Close()
	}()

	r := bufio.NewReader(outR)
	readID := func() float64 {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		return resp["id"].(float64)
	}

	assert.Equal(t, float64(2), readID())
	assert.Less(t, time.Since(start), time.Second, "fast call waited for the slow one")
	assert.Equal(t, float64(1), readID())

	require.NoError(t, <-errCh)
}
