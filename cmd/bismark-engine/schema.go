// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bismark-engine/pkg/record"
	"github.com/pdiddy/bismark-engine/pkg/types"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [name]",
	Short: "Show the declared fields of each parameter and result record",
	Long: `Schema prints the field tables the pipeline records are bound to, in
declaration order. With a name (e.g. bismarkParams) only that table is
shown; every revision of it is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return printSchemas(os.Stdout, types.Schemas(), name, format)
	},
}

// schemaView is the printable form of a record.Schema.
type schemaView struct {
	Name    string         `json:"name" yaml:"name"`
	Version int            `json:"version" yaml:"version"`
	Fields  []record.Field `json:"fields" yaml:"fields"`
}

func printSchemas(w io.Writer, schemas []*record.Schema, name, format string) error {
	var views []schemaView
	for _, s := range schemas {
		if name != "" && s.Name() != name {
			continue
		}
		views = append(views, schemaView{Name: s.Name(), Version: s.Version(), Fields: s.Fields()})
	}
	if len(views) == 0 {
		return fmt.Errorf("no record named %q", name)
	}

	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "text":
		for _, s := range schemas {
			if name == "" || s.Name() == name {
				fmt.Fprintln(w, s.String())
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use yaml, json, or text", format)
	}
}

func init() {
	schemaCmd.Flags().String("format", "yaml", "output format: yaml, json, or text")
	rootCmd.AddCommand(schemaCmd)
}
