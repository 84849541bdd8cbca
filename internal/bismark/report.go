// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bismark

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bismark-engine/pkg/types"
)

// reportFile is the report written next to extractor output.
const reportFile = "report.yaml"

// Report is the summary written after a methylation extraction.
type Report struct {
	Name    string                  `yaml:"name"`
	Created time.Time               `yaml:"created"`
	Params  *types.ExtractionParams `yaml:"params"`
	Result  *types.ExtractionResult `yaml:"result"`
	Files   []string                `yaml:"files"`

	// Path is where the report was written.
	Path string `yaml:"-"`
}

// writeReport lists the files in dir and writes the report there. Params
// are written with all their fields, extras included.
func writeReport(dir string, p *types.ExtractionParams, res *types.ExtractionResult, now time.Time) (Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Report{}, fmt.Errorf("listing %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && e.Name() != reportFile {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	rep := Report{
		Name:    "bismark_extractor_report_" + now.UTC().Format("20060102T150405"),
		Created: now.UTC(),
		Params:  p,
		Result:  res,
		Files:   files,
		Path:    filepath.Join(dir, reportFile),
	}
	data, err := yaml.Marshal(rep)
	if err != nil {
		return Report{}, fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(rep.Path, data, 0o644); err != nil {
		return Report{}, fmt.Errorf("writing report: %w", err)
	}
	return rep, nil
}

// ReadReport loads a report written by Extract.
func ReadReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("reading report: %w", err)
	}
	rep := Report{Params: types.NewExtractionParams(), Result: types.NewExtractionResult()}
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return Report{}, fmt.Errorf("parsing report %s: %w", path, err)
	}
	rep.Path = path
	return rep, nil
}
