// Package httpapi serves the tool table as a small JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/nmaptools/internal/tools"
)

// maxBodyBytes bounds a tool call request body.
const maxBodyBytes = 64 << 10

// Invoker runs one tool call. *tools.Service implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, raw json.RawMessage) tools.Outcome
}

// Options configures the router.
type Options struct {
	RateLimit float64
	Burst     int
	Version   string
}

// Response is the body of every tool call.
type Response struct {
	Tool   string     `json:"tool"`
	OK     bool       `json:"ok"`
	Kind   tools.Kind `json:"kind"`
	Output string     `json:"output"`
}

// ToolInfo describes one operation in the listing.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// NewRouter builds the gin engine. Health checks bypass the rate limit.
func NewRouter(inv Invoker, opts Options, logger *logrus.Logger) *gin.Engine {
	log := logger.WithField("component", "http")
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "nmaptools", "version": opts.Version})
	})

	api := r.Group("/api/v1", rateLimit(rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst)))
	api.GET("/tools", listTools)
	api.POST("/tools/:name", callTool(inv))
	return r
}

func listTools(c *gin.Context) {
	ops := tools.Operations()
	out := make([]ToolInfo, 0, len(ops))
	for _, op := range ops {
		out = append(out, ToolInfo{Name: op.Name, Description: op.Description, Schema: op.Schema})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func callTool(inv Invoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if _, ok := tools.Lookup(name); !ok {
			c.JSON(http.StatusNotFound, Response{Tool: name, Kind: tools.KindInvalidInput,
				Output: tools.InvalidInput{Field: "tool", Rule: "unknown tool " + name}.String()})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		body, err := c.GetRawData()
		if err != nil {
			rule := "could not read request body"
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				rule = "request body too large"
			}
			c.JSON(http.StatusBadRequest, Response{Tool: name, Kind: tools.KindInvalidInput,
				Output: tools.InvalidInput{Field: "arguments", Rule: rule}.String()})
			return
		}
		out := inv.Invoke(c.Request.Context(), name, body)
		c.JSON(statusFor(out), Response{Tool: name, OK: !out.Failed(), Kind: out.Kind(), Output: out.String()})
	}
}

// statusFor maps an outcome to its HTTP status.
func statusFor(out tools.Outcome) int {
	switch out.Kind() {
	case tools.KindSuccess:
		return http.StatusOK
	case tools.KindInvalidInput:
		return http.StatusBadRequest
	case tools.KindNonZeroExit:
		return http.StatusFailedDependency
	case tools.KindBinaryNotFound:
		return http.StatusServiceUnavailable
	case tools.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
