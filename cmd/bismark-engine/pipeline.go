// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bismark-engine/internal/bismark"
	"github.com/pdiddy/bismark-engine/internal/job"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare <params>",
	Short: "Build (or reuse) the bisulfite index for a genome",
	Long: `Prepare reads preparation params (assembly_or_genome_ref, output_dir,
ws_for_cache) and runs bismark_genome_preparation unless the index cache
already holds the genome. Setting ws_for_cache records the new index in
the cache.`,
	Args: cobra.ExactArgs(1),
	RunE: stageRunner("prepare_genome"),
}

var alignCmd = &cobra.Command{
	Use:   "align <params>",
	Short: "Align bisulfite reads to a genome with bismark",
	Long: `Align reads alignment params (input_ref, assembly_or_genome_ref, lib_type,
mismatch, length, qual, minins, maxins), prepares the genome index, and
runs bismark. The result names the output directory, the BAM file, and
the mapping report.`,
	Args: cobra.ExactArgs(1),
	RunE: stageRunner("run_bismark_app"),
}

var extractCmd = &cobra.Command{
	Use:   "extract <params>",
	Short: "Extract methylation calls from a bismark alignment",
	Long: `Extract reads extractor params (alignment_ref and, optionally,
assembly_or_genome_ref and output_workspace) and runs
bismark_methylation_extractor with bedGraph output. A report.yaml summary
is written next to the output.`,
	Args: cobra.ExactArgs(1),
	RunE: stageRunner("run_bismark_methylation_extractor_app"),
}

var cliCmd = &cobra.Command{
	Use:   "cli [params]",
	Short: "Run one Bismark tool with raw options",
	Long: `Cli runs command_name with options from a params file, or from
--command and the arguments after "--":

  bismark-engine cli --command bismark2report -- --alignment_report a.txt`,
	Args: cobra.ArbitraryArgs,
	RunE: runCLI,
}

func init() {
	for _, c := range []*cobra.Command{prepareCmd, alignCmd, extractCmd} {
		c.Flags().String("format", "json", "result format: json or yaml")
		rootCmd.AddCommand(c)
	}
	cliCmd.Flags().String("command", "", "bismark tool to run ("+strings.Join(bismark.Commands, ", ")+")")
	rootCmd.AddCommand(cliCmd)
}

// stageRunner returns a RunE that sends the params file through the job
// dispatcher under method, so direct runs are journaled like job files.
func stageRunner(method string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		params, err := readParamsFile(args[0])
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return dispatch(method, params, format)
	}
}

func runCLI(cmd *cobra.Command, args []string) error {
	command, _ := cmd.Flags().GetString("command")
	dash := cmd.ArgsLenAtDash()

	var params json.RawMessage
	switch {
	case command != "":
		var opts []string
		if dash >= 0 {
			opts = args[dash:]
		}
		data, err := json.Marshal(map[string]any{"command_name": command, "options": opts})
		if err != nil {
			return err
		}
		params = data
	case len(args) == 1 && dash < 0:
		p, err := readParamsFile(args[0])
		if err != nil {
			return err
		}
		params = p
	default:
		return fmt.Errorf("provide a params file or --command")
	}
	return dispatch("run_bismark_cli", params, "json")
}

// dispatch runs one request through a freshly opened engine and prints
// the result.
func dispatch(method string, params json.RawMessage, format string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer closeWarn(os.Stderr, e)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resp := e.dispatcher.Handle(ctx, job.Request{
		Method:  job.Service + "." + method,
		Params:  []json.RawMessage{params},
		Version: job.Version,
	})
	if resp.Error != nil {
		return resp.Error
	}
	return printResult(os.Stdout, resp.Result, format)
}
