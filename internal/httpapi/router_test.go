package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/nmaptools/internal/tools"
)

func init() { gin.SetMode(gin.TestMode) }

type stubInvoker struct {
	mu   sync.Mutex
	args []string
	out  tools.Outcome
}

func (s *stubInvoker) Invoke(_ context.Context, _ string, raw json.RawMessage) tools.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.args = append(s.args, string(raw))
	return s.out
}

func newRouter(inv Invoker, rps float64, burst int) *gin.Engine {
	log, _ := logtest.NewNullLogger()
	return NewRouter(inv, Options{RateLimit: rps, Burst: burst, Version: "test"}, log)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCallTool_StatusPerOutcome(t *testing.T) {
	cases := []struct {
		out    tools.Outcome
		status int
	}{
		{tools.Success{Stdout: "Host is up"}, http.StatusOK},
		{tools.InvalidInput{Field: "ports", Rule: "bad"}, http.StatusBadRequest},
		{tools.NonZeroExit{Code: 1, Stderr: "boom"}, http.StatusFailedDependency},
		{tools.BinaryNotFound{Binary: "nmap"}, http.StatusServiceUnavailable},
		{tools.Timeout{Elapsed: time.Second, Limit: time.Second}, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		inv := &stubInvoker{out: tc.out}
		w := do(newRouter(inv, 100, 100), http.MethodPost, "/api/v1/tools/nmap_ping_scan", `{"targets":"10.0.0.1"}`)
		require.Equal(t, tc.status, w.Code, "%#v", tc.out)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "nmap_ping_scan", resp.Tool)
		assert.Equal(t, tc.out.Kind(), resp.Kind)
		assert.Equal(t, !tc.out.Failed(), resp.OK)
		assert.Equal(t, tc.out.String(), resp.Output)
		assert.JSONEq(t, `{"targets":"10.0.0.1"}`, inv.args[0])
	}
}

func TestCallTool_UnknownToolIs404(t *testing.T) {
	inv := &stubInvoker{out: tools.Success{}}
	w := do(newRouter(inv, 100, 100), http.MethodPost, "/api/v1/tools/nmap_teleport", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, inv.args)
}

func TestCallTool_OversizedBody(t *testing.T) {
	inv := &stubInvoker{out: tools.Success{}}
	body := `{"targets":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w := do(newRouter(inv, 100, 100), http.MethodPost, "/api/v1/tools/nmap_ping_scan", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "too large")
	assert.Empty(t, inv.args)
}

func TestListTools(t *testing.T) {
	w := do(newRouter(&stubInvoker{}, 100, 100), http.MethodGet, "/api/v1/tools", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Tools []ToolInfo `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tools, len(tools.Operations()))
	assert.Equal(t, "nmap_basic_scan", body.Tools[0].Name)
	assert.True(t, json.Valid(body.Tools[0].Schema))
}

func TestRateLimit_RejectsBurstOverflowButNotHealth(t *testing.T) {
	r := newRouter(&stubInvoker{out: tools.Success{}}, 0.01, 2)
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/tools", "").Code)
	}
	w := do(r, http.MethodGet, "/api/v1/tools", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "").Code)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	srv := NewServer("127.0.0.1", 0, newRouter(&stubInvoker{}, 100, 100), time.Second, log)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
