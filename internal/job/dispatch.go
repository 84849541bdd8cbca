// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pdiddy/bismark-engine/internal/bismark"
	"github.com/pdiddy/bismark-engine/internal/store"
	"github.com/pdiddy/bismark-engine/pkg/record"
	"github.com/pdiddy/bismark-engine/pkg/types"
)

// Pipeline is the part of bismark.Runner the dispatcher drives.
type Pipeline interface {
	RunCLI(ctx context.Context, p *types.CliParams) error
	Prepare(ctx context.Context, p *types.PreparationParams) (*types.PreparationResult, error)
	Align(ctx context.Context, p *types.AlignmentParams) (*types.AlignmentResult, error)
	Extract(ctx context.Context, p *types.ExtractionParams) (*types.ExtractionResult, error)
}

// Journal persists finished calls.
type Journal interface {
	RecordCall(ctx context.Context, c store.Call) (int64, error)
}

// Observer receives the outcome of every call.
type Observer interface {
	Observe(method string, d time.Duration, err error)
}

// Status is the reply to the status method.
type Status struct {
	State   string `json:"state"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// handler runs one method. params is the decoded record (journaled even
// when the call fails); result is nil when there is nothing to return.
type handler func(ctx context.Context, raw map[string]any) (params, result json.Marshaler, err error)

// Dispatcher routes requests to the pipeline by method name.
type Dispatcher struct {
	pipeline Pipeline
	journal  Journal
	observer Observer
	log      io.Writer
	version  string
	now      func() time.Time
	methods  map[string]handler
}

// NewDispatcher creates a Dispatcher. journal and observer may be nil.
func NewDispatcher(p Pipeline, journal Journal, observer Observer, log io.Writer, version string) *Dispatcher {
	if log == nil {
		log = io.Discard
	}
	d := &Dispatcher{
		pipeline: p,
		journal:  journal,
		observer: observer,
		log:      log,
		version:  version,
		now:      time.Now,
	}
	d.methods = map[string]handler{
		"run_bismark_cli":                       d.runCLI,
		"prepare_genome":                        d.prepare,
		"run_bismark_app":                       d.align,
		"run_bismark_methylation_extractor_app": d.extract,
		"status":                                d.status,
	}
	return d
}

// Methods returns the method names the dispatcher accepts, sorted.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle runs one request and builds its reply. Failures are reported in
// the reply, never as a Go error.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	resp := Response{Version: Version, ID: req.ID}
	name := req.Name()
	h, ok := d.methods[name]
	if !ok {
		resp.Error = &Error{Name: "JSONRPCError", Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
		return resp
	}

	var raw map[string]any
	switch {
	case len(req.Params) > 1:
		resp.Error = &Error{Name: "JSONRPCError", Code: CodeInvalidParams, Message: fmt.Sprintf("%s takes one parameter object, got %d", name, len(req.Params))}
		return resp
	case len(req.Params) == 1:
		m, err := decodeObject(req.Params[0])
		if err != nil {
			resp.Error = &Error{Name: "JSONRPCError", Code: CodeInvalidParams, Message: fmt.Sprintf("%s: %v", name, err)}
			return resp
		}
		raw = m
	default:
		raw = map[string]any{}
	}

	fmt.Fprintf(d.log, "job %s: started\n", name)
	started := d.now()
	params, result, err := h(ctx, raw)
	finished := d.now()
	d.record(ctx, name, params, result, err, started, finished)

	if err != nil {
		fmt.Fprintf(d.log, "job %s: failed: %v\n", name, err)
		resp.Error = errorFor(err)
		return resp
	}
	fmt.Fprintf(d.log, "job %s: done in %s\n", name, finished.Sub(started).Round(time.Millisecond))

	resp.Result = json.RawMessage("[]")
	if result != nil {
		data, err := json.Marshal([]json.Marshaler{result})
		if err != nil {
			resp.Error = &Error{Name: "Server error", Code: CodeServerError, Message: fmt.Sprintf("encoding result: %v", err)}
			resp.Result = nil
			return resp
		}
		resp.Result = data
	}
	return resp
}

// RunFile reads the job at in, handles it, and writes the reply to out.
// The returned error covers only reading and writing files.
func (d *Dispatcher) RunFile(ctx context.Context, in, out string) error {
	req, err := ReadRequest(in)
	var rpcErr *Error
	switch {
	case errors.As(err, &rpcErr):
		return WriteResponse(out, Response{Version: Version, Error: rpcErr})
	case err != nil:
		return err
	}
	return WriteResponse(out, d.Handle(ctx, req))
}

func (d *Dispatcher) record(ctx context.Context, name string, params, result json.Marshaler, err error, started, finished time.Time) {
	if d.observer != nil {
		d.observer.Observe(name, finished.Sub(started), err)
	}
	if d.journal == nil {
		return
	}
	call := store.Call{Method: name, Params: params, Result: result, Err: err, StartedAt: started, FinishedAt: finished}
	if _, jerr := d.journal.RecordCall(ctx, call); jerr != nil {
		fmt.Fprintf(d.log, "  warning: %v\n", jerr)
	}
}

// rawObject journals parameters that could not be decoded into a record.
type rawObject map[string]any

func (o rawObject) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(o))
}

// errorFor maps a call failure onto a JSON-RPC error.
func errorFor(err error) *Error {
	var shape *record.ShapeError
	switch {
	case errors.As(err, &shape):
		return &Error{Name: "ShapeError", Code: CodeInvalidParams, Message: err.Error()}
	case errors.Is(err, bismark.ErrUnknownCommand):
		return &Error{Name: "JSONRPCError", Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &Error{Name: "Server error", Code: CodeServerError, Message: err.Error()}
	}
}

func (d *Dispatcher) runCLI(ctx context.Context, raw map[string]any) (json.Marshaler, json.Marshaler, error) {
	rec, err := record.FromMap(types.CliParamsSchema, raw)
	if err != nil {
		return rawObject(raw), nil, err
	}
	p := &types.CliParams{Record: rec}
	return p, nil, d.pipeline.RunCLI(ctx, p)
}

func (d *Dispatcher) prepare(ctx context.Context, raw map[string]any) (json.Marshaler, json.Marshaler, error) {
	rec, err := record.FromMap(types.PreparationParamsSchema, raw)
	if err != nil {
		return rawObject(raw), nil, err
	}
	p := &types.PreparationParams{Record: rec}
	res, err := d.pipeline.Prepare(ctx, p)
	if err != nil {
		return p, nil, err
	}
	return p, res, nil
}

func (d *Dispatcher) align(ctx context.Context, raw map[string]any) (json.Marshaler, json.Marshaler, error) {
	rec, err := record.FromMap(types.AlignmentParamsSchema, raw)
	if err != nil {
		return rawObject(raw), nil, err
	}
	p := &types.AlignmentParams{Record: rec}
	res, err := d.pipeline.Align(ctx, p)
	if err != nil {
		return p, nil, err
	}
	return p, res, nil
}

// extract decodes under the current extractorParams revision, which also
// reads first-revision payloads since revisions only add fields.
func (d *Dispatcher) extract(ctx context.Context, raw map[string]any) (json.Marshaler, json.Marshaler, error) {
	rec, err := record.FromMap(types.ExtractionParamsSchema, raw)
	if err != nil {
		return rawObject(raw), nil, err
	}
	p := &types.ExtractionParams{Record: rec}
	res, err := d.pipeline.Extract(ctx, p)
	if err != nil {
		return p, nil, err
	}
	return p, res, nil
}

func (d *Dispatcher) status(context.Context, map[string]any) (json.Marshaler, json.Marshaler, error) {
	data, err := json.Marshal(Status{State: "OK", Version: d.version})
	if err != nil {
		return nil, nil, err
	}
	return nil, json.RawMessage(data), nil
}
