// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bismark-engine/internal/bismark"
	"github.com/pdiddy/bismark-engine/internal/container"
	"github.com/pdiddy/bismark-engine/internal/job"
	"github.com/pdiddy/bismark-engine/internal/metrics"
	"github.com/pdiddy/bismark-engine/internal/store"
	"github.com/pdiddy/bismark-engine/pkg/types"
)

// engine bundles everything a pipeline command needs.
type engine struct {
	cfg        types.EngineConfig
	store      *store.Store
	metrics    *metrics.Recorder
	dispatcher *job.Dispatcher
}

// openEngine connects the container runtime, the database, and metrics.
func openEngine() (*engine, error) {
	cfg, err := engineConfig()
	if err != nil {
		return nil, err
	}

	var rt container.Runtime
	if cfg.Container.Runtime != "" {
		rt, err = container.NamedRuntime(cfg.Container.Runtime)
	} else {
		rt, err = container.DetectRuntime()
	}
	if err != nil {
		return nil, err
	}
	if err := rt.ImageExists(cfg.Container.Image); err != nil {
		fmt.Fprintf(os.Stderr, "  warning: %v; %s will pull it on first use\n", err, rt.Name())
	}

	st, err := store.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	rec := metrics.NewRecorder()
	runner := bismark.NewRunner(cfg, rt, st, os.Stdout, os.Stderr)
	return &engine{
		cfg:        cfg,
		store:      st,
		metrics:    rec,
		dispatcher: job.NewDispatcher(runner, st, rec, os.Stderr, version),
	}, nil
}

// Close flushes metrics and closes the database.
func (e *engine) Close() error {
	var metricsErr error
	if e.cfg.MetricsFile != "" {
		metricsErr = e.metrics.WriteTextfile(e.cfg.MetricsFile)
	}
	if err := e.store.Close(); err != nil {
		return errors.Join(metricsErr, fmt.Errorf("closing database: %w", err))
	}
	return metricsErr
}

// closeWarn closes c and prints a failure to w as a warning. Deferred
// by commands whose own result has already been reported.
func closeWarn(w io.Writer, c io.Closer) {
	if err := c.Close(); err != nil {
		fmt.Fprintf(w, "  warning: %v\n", err)
	}
}

// readParamsFile reads a parameter object from a JSON or YAML file ("-"
// reads JSON from stdin) and returns it as JSON text.
func readParamsFile(path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading params: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlToJSON(data)
	default:
		if !json.Valid(data) {
			return nil, fmt.Errorf("params %s are not valid JSON", path)
		}
		return json.RawMessage(bytes.TrimSpace(data)), nil
	}
}

// yamlToJSON converts a YAML mapping to JSON text. Integers stay integers.
func yamlToJSON(data []byte) (json.RawMessage, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing YAML params: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("converting YAML params: %w", err)
	}
	return out, nil
}

// printResult writes the first element of a reply result as indented JSON
// or YAML, keeping field order.
func printResult(w io.Writer, result json.RawMessage, format string) error {
	var items []json.RawMessage
	if err := json.Unmarshal(result, &items); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	switch format {
	case "json", "":
		var buf bytes.Buffer
		if err := json.Indent(&buf, items[0], "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	case "yaml":
		// JSON text is YAML; a node round trip keeps key order.
		var node yaml.Node
		if err := yaml.Unmarshal(items[0], &node); err != nil {
			return err
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q: use json or yaml", format)
	}
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
