// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bismark-engine/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the call journal (list, export)",
	Long: `History reads the journal of pipeline calls kept in bismark.db. Every
call is stored with its full parameter and result records, including
fields the pipeline does not declare.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent calls, newest first",
	RunE:  runHistoryList,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the journal to YAML or JSON",
	Long: `Export writes the journal (or the calls matching --method) to
<db-dir>/export.yaml or export.json.`,
	RunE: runHistoryExport,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the genome index cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <assembly_or_genome_ref>",
	Short: "Show the cached index for a genome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer closeWarn(os.Stderr, st)

		e, ok, err := st.LookupIndex(context.Background(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no cached index for %s", args[0])
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	},
}

var cacheForgetCmd = &cobra.Command{
	Use:   "forget <assembly_or_genome_ref>",
	Short: "Drop a genome from the index cache (files are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer closeWarn(os.Stderr, st)

		if err := st.DeleteIndex(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Forgot index for %s\n", args[0])
		return nil
	},
}

// openStore opens bismark.db without touching the container runtime.
func openStore() (*store.Store, error) {
	cfg, err := engineConfig()
	if err != nil {
		return nil, err
	}
	return store.NewStore(cfg)
}

func callFilter(cmd *cobra.Command) store.CallFilter {
	method, _ := cmd.Flags().GetString("method")
	limit, _ := cmd.Flags().GetInt("limit")
	return store.CallFilter{Method: method, Limit: limit}
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeWarn(os.Stderr, st)

	calls, err := st.Calls(context.Background(), callFilter(cmd))
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatCalls(os.Stdout, calls, jsonOutput)
}

func formatCalls(w io.Writer, calls []store.CallRecord, jsonOutput bool) error {
	if jsonOutput {
		if calls == nil {
			calls = []store.CallRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(calls)
	}

	if len(calls) == 0 {
		fmt.Fprintln(w, "No calls recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-5s  %-38s  %-20s  %-10s  %s\n", "ID", "Method", "Started", "Duration", "Outcome")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, c := range calls {
		outcome := "ok"
		if c.Error != "" {
			outcome = c.Error
			if len(outcome) > 40 {
				outcome = outcome[:37] + "..."
			}
		}
		fmt.Fprintf(w, "%-5d  %-38s  %-20s  %-10s  %s\n",
			c.ID, c.Method, c.StartedAt.Local().Format("2006-01-02 15:04:05"), c.Duration().Round(time.Millisecond), outcome)
	}
	fmt.Fprintf(w, "\n%d calls\n", len(calls))
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeWarn(os.Stderr, st)

	var path string
	switch format {
	case "yaml", "":
		path, err = st.ExportYAML(context.Background(), callFilter(cmd))
	case "json":
		path, err = st.ExportJSON(context.Background(), callFilter(cmd))
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

func init() {
	historyCmd.PersistentFlags().String("method", "", "only calls of this method (e.g. run_bismark_app)")
	historyCmd.PersistentFlags().Int("limit", 0, "maximum calls (0 = default of 50)")

	historyListCmd.Flags().Bool("json", false, "output calls as JSON")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)

	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheForgetCmd)
	rootCmd.AddCommand(cacheCmd)
}
