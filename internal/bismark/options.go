// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bismark

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/pdiddy/bismark-engine/pkg/types"
)

// ErrUnknownCommand is returned for a command_name outside the Bismark
// tool set.
var ErrUnknownCommand = errors.New("unknown bismark command")

// Commands lists the tools RunCLI may invoke.
var Commands = []string{
	"bismark",
	"bismark_genome_preparation",
	"bismark_methylation_extractor",
	"bismark2report",
	"bismark2summary",
	"bismark2bedGraph",
	"deduplicate_bismark",
	"coverage2cytosine",
	"bam2nuc",
}

func knownCommand(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return false
}

// qualFlags maps the qual field to bismark's quality encoding switches.
var qualFlags = map[string]string{
	"phred33": "--phred33-quals",
	"phred64": "--phred64-quals",
	"solexa":  "--solexa-quals",
}

// libTypeFlags maps lib_type to library strandedness switches. Directional
// libraries are bismark's default and need no flag.
var libTypeFlags = map[string]string{
	"non_directional": "--non_directional",
	"pbat":            "--pbat",
}

// alignOptions maps AlignmentParams onto bismark aligner options, in the
// order the fields are declared. Values bismark does not know are left to
// bismark's own defaults.
func alignOptions(p *types.AlignmentParams, threads int) []string {
	var opts []string
	if v, ok := types.LibType.Get(p); ok {
		if flag, known := libTypeFlags[v]; known {
			opts = append(opts, flag)
		}
	}
	if v, ok := types.Mismatch.Get(p); ok {
		opts = append(opts, "-N", strconv.FormatInt(v, 10))
	}
	if v, ok := types.Length.Get(p); ok {
		opts = append(opts, "-L", strconv.FormatInt(v, 10))
	}
	if v, ok := types.Qual.Get(p); ok {
		if flag, known := qualFlags[v]; known {
			opts = append(opts, flag)
		}
	}
	if v, ok := types.MinIns.Get(p); ok {
		opts = append(opts, "-I", strconv.FormatInt(v, 10))
	}
	if v, ok := types.MaxIns.Get(p); ok {
		opts = append(opts, "-X", strconv.FormatInt(v, 10))
	}
	opts = append(opts, parallel(threads)...)
	return opts
}

func parallel(threads int) []string {
	if threads <= 1 {
		return nil
	}
	return []string{"--parallel", strconv.Itoa(threads)}
}

// cliArgs validates a CliParams record and returns the command line.
func cliArgs(p *types.CliParams) ([]string, error) {
	name, ok := types.CommandName.Get(p)
	if !ok || name == "" {
		return nil, fmt.Errorf("run_bismark_cli: command_name is missing")
	}
	if !knownCommand(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	opts, _ := types.Options.Get(p)
	return append([]string{name}, opts...), nil
}
