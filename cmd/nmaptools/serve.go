package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/nmaptools/internal/config"
	"github.com/hyperifyio/nmaptools/internal/httpapi"
	"github.com/hyperifyio/nmaptools/internal/mcpserver"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over MCP stdio or HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	f := cmd.Flags()
	f.String("transport", "", "stdio or http (default stdio)")
	f.String("host", "", "HTTP listen host")
	f.Int("port", 0, "HTTP listen port")
	v := a.loader.Viper()
	_ = v.BindPFlag("server.transport", f.Lookup("transport"))
	_ = v.BindPFlag("server.host", f.Lookup("host"))
	_ = v.BindPFlag("server.port", f.Lookup("port"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	svc, err := a.newService()
	if err != nil {
		return err
	}
	s := a.cfg.Server
	a.log.WithField("transport", s.Transport).WithField("binary", svc.Binary()).Info("starting nmaptools")

	switch s.Transport {
	case config.TransportStdio:
		return mcpserver.ServeStdio(ctx, mcpserver.New(svc, version, a.log.Logger), a.in, a.out, a.log.Logger)
	case config.TransportHTTP:
		gin.SetMode(s.Mode)
		router := httpapi.NewRouter(svc, httpapi.Options{RateLimit: s.RateLimit, Burst: s.Burst, Version: version}, a.log.Logger)
		return httpapi.NewServer(s.Host, s.Port, router, s.ShutdownTimeout, a.log.Logger).Run(ctx)
	default:
		return fmt.Errorf("unsupported transport %q", s.Transport)
	}
}
