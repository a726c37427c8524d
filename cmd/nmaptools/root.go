package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/nmaptools/internal/config"
	"github.com/hyperifyio/nmaptools/internal/logger"
	"github.com/hyperifyio/nmaptools/internal/tools"
)

// quietAnnotation marks commands whose console logs are suppressed unless
// --log-level is given, so their stdout and stderr stay machine readable.
const quietAnnotation = "nmaptools/quiet-logs"

// exitCodeError ends the process with code after the command has already
// reported the failure itself.
type exitCodeError struct{ code int }

func (e exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// app carries the streams and the state resolved before a command runs.
type app struct {
	in          io.Reader
	out, errOut io.Writer

	configFile string
	envFile    string
	loader     *config.Loader
	cfg        *config.Config
	log        *logger.Logger

	lookPath func(string) (string, error)
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut, lookPath: exec.LookPath}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.Execute()
	if a.log != nil {
		_ = a.log.Close()
	}
	if err == nil {
		return 0
	}
	var exit exitCodeError
	if errors.As(err, &exit) {
		return exit.code
	}
	_, _ = fmt.Fprintln(errOut, "Error:", err)
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	a.loader = config.NewLoader("")
	root := &cobra.Command{
		Use:   "nmaptools",
		Short: "Nmap scans exposed as tools",
		Long: `nmaptools runs a fixed set of nmap scans on behalf of a client.

Each tool validates its arguments, builds an argument vector for nmap,
runs it without a shell under a timeout, and returns the raw output.

Examples:
  nmaptools serve                          # MCP over stdio
  nmaptools serve --transport http --port 8088
  nmaptools call nmap_ping_scan --args '{"targets":"192.168.1.0/24"}'
  nmaptools tools --format json > tools.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: ./nmaptools.yaml, ~/.config/nmaptools/, /etc/nmaptools/)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read; empty disables")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("nmap-binary", "", "nmap binary name or path")
	_ = a.loader.Viper().BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.loader.Viper().BindPFlag("nmap.binary", pf.Lookup("nmap-binary"))

	root.AddCommand(newServeCmd(a), newCallCmd(a), newToolsCmd(a), newVersionCmd(a))
	return root
}

// initConfig loads configuration and builds the logger for cmd.
func (a *app) initConfig(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}
	a.loader.SetConfigFile(a.configFile)
	a.loader.SetEnvFile(a.envFile)
	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.Log
	quiet := cmd.Annotations[quietAnnotation] == "true"
	if quiet && !cmd.Flags().Changed("log-level") && logCfg.Output != "file" {
		logCfg.Level = "fatal"
	}
	opts := logger.Options{Stdout: a.out, Stderr: a.errOut, KeepStdoutClean: a.stdoutIsProtocol(cmd)}
	log, err := logger.New(logCfg, opts)
	if err != nil {
		return err
	}
	a.log = log
	if used := a.loader.ConfigFileUsed(); used != "" {
		log.WithField("file", used).Debug("loaded config")
	}
	return nil
}

// stdoutIsProtocol reports whether stdout carries MCP frames or tool output.
func (a *app) stdoutIsProtocol(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "call", "tools":
		return true
	case "serve":
		return a.cfg.Server.Transport == config.TransportStdio
	}
	return false
}

// newService wires the executor and the dispatcher from the loaded config.
func (a *app) newService() (*tools.Service, error) {
	n := a.cfg.Nmap
	exe, err := tools.NewExecutor(tools.ExecutorConfig{
		MaxOutputBytes: n.MaxOutputBytes,
		KillGrace:      n.KillGrace,
		EnvPassthrough: n.EnvPassthrough,
		Redact:         n.Redact,
	}, tools.WithLookPath(a.lookPath), tools.WithAuditLogger(a.log.Logger))
	if err != nil {
		return nil, fmt.Errorf("nmap.env_passthrough: %w", err)
	}
	return tools.NewService(tools.ServiceConfig{
		Binary:         n.Binary,
		DefaultTimeout: n.DefaultTimeout,
		Timeouts:       n.Timeouts,
		MaxTimeout:     n.MaxTimeout,
	}, exe, a.log.Logger)
}
