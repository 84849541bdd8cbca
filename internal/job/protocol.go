// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package job reads KBase-style JSON-RPC 1.1 job files, dispatches them to
// the Bismark pipeline, and writes the reply file.
package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Version is the JSON-RPC version written in every reply.
const Version = "1.1"

// Service prefixes qualified method names ("kb_Bismark.run_bismark_app").
const Service = "kb_Bismark"

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
)

// Request is one job file.
type Request struct {
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	Version string            `json:"version,omitempty"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

// Name returns the method without the service prefix.
func (r Request) Name() string {
	return strings.TrimPrefix(r.Method, Service+".")
}

// Response is the reply file. Exactly one of Result and Error is set.
type Response struct {
	Version string          `json:"version"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

// ParseRequest decodes a job document.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, &Error{Name: "JSONRPCError", Code: CodeParseError, Message: err.Error()}
	}
	if req.Method == "" {
		return Request{}, &Error{Name: "JSONRPCError", Code: CodeInvalidRequest, Message: "method is missing"}
	}
	return req, nil
}

// ReadRequest loads and decodes a job file.
func ReadRequest(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, fmt.Errorf("reading job file: %w", err)
	}
	return ParseRequest(data)
}

// WriteResponse writes resp as indented JSON.
func WriteResponse(path string, resp Response) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing reply: %w", err)
	}
	return nil
}

// decodeObject decodes one positional parameter into a generic object.
// Numbers stay json.Number so integer fields keep full precision.
func decodeObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("parameter is null")
	}
	return m, nil
}
