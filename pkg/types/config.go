// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ContainerConfig selects the Bismark image and how it is run.
type ContainerConfig struct {
	// Image is the container image holding the Bismark tools and bowtie2.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// Runtime forces "docker" or "podman". Empty means detect, docker first.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty" mapstructure:"runtime"`

	// Timeout bounds a single tool invocation. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// EngineConfig holds everything the pipeline runner needs.
type EngineConfig struct {
	Container ContainerConfig `json:"container" yaml:"container" mapstructure:"container"`

	// DataDir is where relative references (input_ref, alignment_ref, ...)
	// are resolved.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// ScratchDir receives index, alignment, and extraction output.
	ScratchDir string `json:"scratch_dir" yaml:"scratch_dir" mapstructure:"scratch_dir"`

	// DBDir holds bismark.db (index cache and call journal).
	DBDir string `json:"db_dir" yaml:"db_dir" mapstructure:"db_dir"`

	// Threads is passed to Bismark as --parallel / --multicore (default 1).
	Threads int `json:"threads" yaml:"threads" mapstructure:"threads"`

	// MetricsFile, when set, receives Prometheus textfile metrics after
	// every command.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}

// DefaultImage is the Bismark image used when none is configured.
const DefaultImage = "quay.io/biocontainers/bismark:0.24.2--hdfd78af_0"

// DefaultEngineConfig returns the settings used when neither a config file
// nor flags provide a value.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Container: ContainerConfig{
			Image:   DefaultImage,
			Timeout: 12 * time.Hour,
		},
		DataDir:    "data",
		ScratchDir: "scratch",
		DBDir:      "db",
		Threads:    1,
	}
}
