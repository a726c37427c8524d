package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/nmaptools/internal/tools"
)

func newToolsCmd(a *app) *cobra.Command {
	var format, self string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List tools or export a tools.json manifest",
		Long: `List the available tools.

--format json and --format yaml print a manifest in which every tool is run
as "<self> call <name>", suitable for agent runners that execute tools as
subprocesses.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{quietAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.newService()
			if err != nil {
				return err
			}
			if format == "table" {
				return printToolTable(a, svc)
			}
			if self == "" {
				self = selfPath()
			}
			man, err := tools.BuildManifest(svc, self, a.cfg.Nmap.EnvPassthrough)
			if err != nil {
				return err
			}
			switch format {
			case "json":
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(man)
			case "yaml":
				return writeYAML(a, man)
			default:
				return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "table, json or yaml")
	cmd.Flags().StringVar(&self, "command", "", "program path written into the manifest (default: this executable)")
	return cmd
}

func printToolTable(a *app, svc *tools.Service) error {
	data := pterm.TableData{{"NAME", "TIMEOUT", "DESCRIPTION"}}
	for _, op := range tools.Operations() {
		data = append(data, []string{op.Name, svc.Timeout(op).String(), op.Description})
	}
	out, err := pterm.DefaultTable.WithHasHeader(true).WithBoxed(false).WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	_, err = fmt.Fprintln(a.out, out)
	return err
}

// writeYAML renders the manifest through its JSON form so embedded schemas
// come out as YAML mappings.
func writeYAML(a *app, man tools.Manifest) error {
	b, err := json.Marshal(man)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func selfPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "nmaptools"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		return resolved
	}
	return exe
}
