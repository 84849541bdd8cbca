// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

const defaultCallLimit = 50

// Call is one pipeline invocation to journal. Params and Result are
// serialized with their own marshalers, so open records keep declared
// field order and every extra field.
type Call struct {
	Method     string
	Params     json.Marshaler
	Result     json.Marshaler
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// CallRecord is a journaled call as read back from the database.
type CallRecord struct {
	ID         int64           `json:"id"`
	Method     string          `json:"method"`
	Params     json.RawMessage `json:"params"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Duration returns how long the call ran.
func (c CallRecord) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// CallFilter narrows a journal listing.
type CallFilter struct {
	// Method restricts results to one method name. Empty means all.
	Method string

	// Limit caps the number of rows, newest first (default 50).
	Limit int
}

// RecordCall appends c to the journal and returns its row id.
func (s *Store) RecordCall(ctx context.Context, c Call) (int64, error) {
	params, err := marshalOrNull(c.Params)
	if err != nil {
		return 0, fmt.Errorf("encoding %s params: %w", c.Method, err)
	}
	var result sql.NullString
	if c.Result != nil {
		data, err := c.Result.MarshalJSON()
		if err != nil {
			return 0, fmt.Errorf("encoding %s result: %w", c.Method, err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}
	var callErr sql.NullString
	if c.Err != nil {
		callErr = sql.NullString{String: c.Err.Error(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (method, params, result, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Method, params, result, callErr,
		c.StartedAt.UTC().Format(time.RFC3339Nano), c.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("journaling %s: %w", c.Method, err)
	}
	return res.LastInsertId()
}

func marshalOrNull(m json.Marshaler) (string, error) {
	if m == nil {
		return "null", nil
	}
	data, err := m.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Calls lists journaled calls, newest first.
func (s *Store) Calls(ctx context.Context, f CallFilter) ([]CallRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultCallLimit
	}

	query := `SELECT id, method, params, result, error, started_at, finished_at FROM calls`
	var args []any
	if f.Method != "" {
		query += ` WHERE method = ?`
		args = append(args, f.Method)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying calls: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var (
			c                 CallRecord
			params            string
			result, callErr   sql.NullString
			started, finished string
		)
		if err := rows.Scan(&c.ID, &c.Method, &params, &result, &callErr, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		c.Params = json.RawMessage(params)
		if result.Valid {
			c.Result = json.RawMessage(result.String)
		}
		c.Error = callErr.String
		c.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		c.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, c)
	}
	return out, rows.Err()
}

// exportEntry is the YAML form of a CallRecord. Params and results are
// parsed from their JSON text into nodes, which keeps key order.
type exportEntry struct {
	ID         int64      `yaml:"id"`
	Method     string     `yaml:"method"`
	Params     *yaml.Node `yaml:"params"`
	Result     *yaml.Node `yaml:"result,omitempty"`
	Error      string     `yaml:"error,omitempty"`
	StartedAt  time.Time  `yaml:"started_at"`
	FinishedAt time.Time  `yaml:"finished_at"`
}

func jsonNode(raw json.RawMessage) (*yaml.Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	blockStyle(doc.Content[0])
	return doc.Content[0], nil
}

// blockStyle drops the flow and quoting styles JSON text parses into.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// ExportYAML writes the filtered journal to <db_dir>/export.yaml and
// returns the path.
func (s *Store) ExportYAML(ctx context.Context, f CallFilter) (string, error) {
	calls, err := s.Calls(ctx, f)
	if err != nil {
		return "", fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]exportEntry, len(calls))
	for i, c := range calls {
		params, err := jsonNode(c.Params)
		if err != nil {
			return "", fmt.Errorf("converting call %d params: %w", c.ID, err)
		}
		result, err := jsonNode(c.Result)
		if err != nil {
			return "", fmt.Errorf("converting call %d result: %w", c.ID, err)
		}
		entries[i] = exportEntry{
			ID:         c.ID,
			Method:     c.Method,
			Params:     params,
			Result:     result,
			Error:      c.Error,
			StartedAt:  c.StartedAt,
			FinishedAt: c.FinishedAt,
		}
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	path := filepath.Join(s.dir, "export.yaml")
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the filtered journal to <db_dir>/export.json and
// returns the path.
func (s *Store) ExportJSON(ctx context.Context, f CallFilter) (string, error) {
	calls, err := s.Calls(ctx, f)
	if err != nil {
		return "", fmt.Errorf("querying for export: %w", err)
	}
	if calls == nil {
		calls = []CallRecord{}
	}
	data, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	path := filepath.Join(s.dir, "export.json")
	return path, os.WriteFile(path, data, 0o644)
}
