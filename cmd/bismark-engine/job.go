// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bismark-engine/internal/job"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Run KBase-style JSON-RPC job files",
}

var jobRunCmd = &cobra.Command{
	Use:   "run <input.json> <output.json>",
	Short: "Run one job file and write the reply",
	Long: `Run reads a JSON-RPC 1.1 job document

  {"method": "kb_Bismark.run_bismark_app", "params": [{...}], "version": "1.1", "id": "1"}

dispatches it to the pipeline, and writes {"version", "id", "result"} or
{"version", "id", "error"} to the output file. Pipeline failures are
reported in the reply; the command itself fails only when a file cannot be
read or written.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeWarn(os.Stderr, e)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := e.dispatcher.RunFile(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "reply written to %s\n", args[1])
		return nil
	},
}

var jobMethodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the methods job files may call",
	Run: func(cmd *cobra.Command, args []string) {
		d := job.NewDispatcher(nil, nil, nil, nil, version)
		for _, m := range d.Methods() {
			fmt.Printf("%s.%s\n", job.Service, m)
		}
	},
}

func init() {
	jobCmd.AddCommand(jobRunCmd)
	jobCmd.AddCommand(jobMethodsCmd)
	rootCmd.AddCommand(jobCmd)
}
