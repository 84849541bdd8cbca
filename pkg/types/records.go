// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the parameter and result records exchanged with the
// Bismark methylation pipeline, and the engine configuration.
//
// Every record is an open record (see package record): a field table bound
// to record.Record. Unknown fields sent by newer producers are kept as
// extras and re-emitted unchanged. Requiredness in the tables is advisory.
//
// A zero value binds its field table on first Set or key access, so
// "var p AlignmentParams" is as usable as NewAlignmentParams().
package types

import (
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bismark-engine/pkg/record"
)

// Field keys. A key is shared by every table that declares the name.
var (
	InputRef            = record.StringKey("input_ref")
	AssemblyOrGenomeRef = record.StringKey("assembly_or_genome_ref")
	LibType             = record.StringKey("lib_type")
	Mismatch            = record.IntKey("mismatch")
	Length              = record.IntKey("length")
	Qual                = record.StringKey("qual")
	MinIns              = record.IntKey("minins")
	MaxIns              = record.IntKey("maxins")

	AlignmentRef    = record.StringKey("alignment_ref")
	OutputWorkspace = record.StringKey("output_workspace")

	ResultDirectory = record.StringKey("result_directory")
	BedgraphRef     = record.StringKey("bedgraph_ref")
	ReportName      = record.StringKey("report_name")
	ReportRef       = record.StringKey("report_ref")

	OutputDir     = record.StringKey("output_dir")
	WsForCache    = record.StringKey("ws_for_cache")
	FromCache     = record.IntKey("from_cache")
	PushedToCache = record.IntKey("pushed_to_cache")

	CommandName = record.StringKey("command_name")
	Options     = record.StringsKey("options")
)

// Field tables.
var (
	AlignmentParamsSchema = record.MustSchema("bismarkParams", 1,
		InputRef.Required(),
		AssemblyOrGenomeRef.Required(),
		LibType.Optional(),
		Mismatch.Optional(),
		Length.Optional(),
		Qual.Optional(),
		MinIns.Optional(),
		MaxIns.Optional(),
	)

	// ExtractionParamsV1Schema is the first revision of extractorParams.
	ExtractionParamsV1Schema = record.MustSchema("extractorParams", 1,
		AlignmentRef.Required(),
	)

	// ExtractionParamsSchema is the current revision: v1 plus the reference
	// and the output location.
	ExtractionParamsSchema = ExtractionParamsV1Schema.MustExtend(2,
		AssemblyOrGenomeRef.Optional(),
		OutputWorkspace.Optional(),
	)

	ExtractionResultSchema = record.MustSchema("extractorResult", 1,
		ResultDirectory.Optional(),
		BedgraphRef.Optional(),
		ReportName.Optional(),
		ReportRef.Optional(),
	)

	PreparationParamsSchema = record.MustSchema("preparationParams", 1,
		AssemblyOrGenomeRef.Required(),
		OutputDir.Optional(),
		WsForCache.Optional(),
	)

	PreparationResultSchema = record.MustSchema("preparationResult", 1,
		OutputDir.Optional(),
		FromCache.Optional(),
		PushedToCache.Optional(),
	)

	CliParamsSchema = record.MustSchema("RunBismarkCLIParams", 1,
		CommandName.Required(),
		Options.Optional(),
	)

	// AlignmentResultSchema describes what the alignment stage hands back.
	AlignmentResultSchema = record.MustSchema("bismarkResult", 1,
		OutputDir.Optional(),
		AlignmentRef.Optional(),
		ReportName.Optional(),
		ReportRef.Optional(),
	)
)

// Schemas lists every field table, revisions included, in a fixed order.
func Schemas() []*record.Schema {
	return []*record.Schema{
		AlignmentParamsSchema,
		AlignmentResultSchema,
		ExtractionParamsV1Schema,
		ExtractionParamsSchema,
		ExtractionResultSchema,
		PreparationParamsSchema,
		PreparationResultSchema,
		CliParamsSchema,
	}
}

// AlignmentParams configures a bismark alignment run.
type AlignmentParams struct{ record.Record }

// NewAlignmentParams returns an empty alignment parameter record.
func NewAlignmentParams() *AlignmentParams {
	return &AlignmentParams{record.New(AlignmentParamsSchema)}
}

// Bound binds AlignmentParamsSchema to a zero value and returns the record.
func (p *AlignmentParams) Bound() *record.Record {
	p.Bind(AlignmentParamsSchema)
	return &p.Record
}

// Set stores value under name, type checking declared fields.
func (p *AlignmentParams) Set(name string, value any) error {
	return p.Bound().Set(name, value)
}

// UnmarshalJSON decodes a JSON object under AlignmentParamsSchema.
func (p *AlignmentParams) UnmarshalJSON(data []byte) error {
	return p.DecodeJSON(AlignmentParamsSchema, data)
}

// UnmarshalYAML decodes a YAML mapping under AlignmentParamsSchema.
func (p *AlignmentParams) UnmarshalYAML(node *yaml.Node) error {
	return p.DecodeYAML(AlignmentParamsSchema, node)
}

// AlignmentResult is returned by the alignment stage.
type AlignmentResult struct{ record.Record }

// NewAlignmentResult returns an empty alignment result.
func NewAlignmentResult() *AlignmentResult {
	return &AlignmentResult{record.New(AlignmentResultSchema)}
}

// Bound binds AlignmentResultSchema to a zero value and returns the record.
func (r *AlignmentResult) Bound() *record.Record {
	r.Bind(AlignmentResultSchema)
	return &r.Record
}

// Set stores value under name, type checking declared fields.
func (r *AlignmentResult) Set(name string, value any) error {
	return r.Bound().Set(name, value)
}

// UnmarshalJSON decodes a JSON object under AlignmentResultSchema.
func (r *AlignmentResult) UnmarshalJSON(data []byte) error {
	return r.DecodeJSON(AlignmentResultSchema, data)
}

// UnmarshalYAML decodes a YAML mapping under AlignmentResultSchema.
func (r *AlignmentResult) UnmarshalYAML(node *yaml.Node) error {
	return r.DecodeYAML(AlignmentResultSchema, node)
}

// ExtractionParams configures a methylation extractor run (current revision).
type ExtractionParams struct{ record.Record }

// NewExtractionParams returns an empty extractor parameter record under the current revision.
func NewExtractionParams() *ExtractionParams {
	return &ExtractionParams{record.New(ExtractionParamsSchema)}
}

// Bound binds ExtractionParamsSchema to a zero value and returns the record.
func (p *ExtractionParams) Bound() *record.Record {
	p.Bind(ExtractionParamsSchema)
	return &p.Record
}

// Set stores value under name, type checking declared fields.
func (p *ExtractionParams) Set(name string, value any) error {
	return p.Bound().Set(name, value)
}

// UnmarshalJSON decodes a JSON object under ExtractionParamsSchema.
func (p *ExtractionParams) UnmarshalJSON(data []byte) error {
	return p.DecodeJSON(ExtractionParamsSchema, data)
}

// UnmarshalYAML decodes a YAML mapping under ExtractionParamsSchema.
func (p *ExtractionParams) UnmarshalYAML(node *yaml.Node) error {
	return p.DecodeYAML(ExtractionParamsSchema, node)
}

// ExtractionParamsV1 is extractorParams as first published, with only
// alignment_ref declared. Fields added by later revisions are extras.
type ExtractionParamsV1 struct{ record.Record }

// NewExtractionParamsV1 returns an empty extractor parameter record under the first revision.
func NewExtractionParamsV1() *ExtractionParamsV1 {
	return &ExtractionParamsV1{record.New(ExtractionParamsV1Schema)}
}

// Bound binds ExtractionParamsV1Schema to a zero value and returns the record.
func (p *ExtractionParamsV1) Bound() *record.Record {
	p.Bind(ExtractionParamsV1Schema)
	return &p.Record
}

// Set stores value under name, type checking declared fields.
func (p *ExtractionParamsV1) Set(name string, value any) error {
	return p.Bound().Set(name, value)
}

// UnmarshalJSON decodes a JSON object under ExtractionParamsV1Schema.
func (p *ExtractionParamsV1) UnmarshalJSON(data []byte) error {
	return p.DecodeJSON(ExtractionParamsV1Schema, data)
}

// UnmarshalYAML decodes a YAML mapping under ExtractionParamsV1Schema.
func (p *ExtractionParamsV1) UnmarshalYAML(node *yaml.Node) error {
	return p.DecodeYAML(ExtractionParamsV1Schema, node)
}

// Upgrade re-binds the record under the current revision. Extras that the
// current revision declares become typed fields and are type checked.
func (p *ExtractionParamsV1) Upgrade() (*ExtractionParams, error) {
	r, err := p.Convert(ExtractionParamsSchema)
	if err != nil {
		return nil, err
	}
	return &ExtractionParams{r}, nil
}

// ExtractionResult is returned by the methylation extractor stage.
type ExtractionResult struct{ record.Record }

// NewExtractionResult returns an empty extractor result.
func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{record.New(ExtractionResultSchema)}
}

// Bound binds ExtractionResultSchema to a zero value and returns the record.
func (r *ExtractionResult) Bound() *record.Record {
	r.Bind(ExtractionResultSchema)
	return &r.Record
}

// Set stores value under name, type checking declared fields.
func (r *ExtractionResult) Set(name string, value any) error {
	return r.Bound().Set(name, value)
}

// UnmarshalJSON decodes a JSON object under ExtractionResultSchema.
func (r *ExtractionResult) UnmarshalJSON(data []byte) error {
	return r.DecodeJSON(ExtractionResultSchema, data)
}

// UnmarshalYAML decodes a YAML mapping under ExtractionResultSchema.
func (r *ExtractionResult) UnmarshalYAML(node *yaml.Node) error {
	return r.DecodeYAML(ExtractionResultSchema, node)
}

// PreparationParams configures genome index preparation.
type PreparationParams struct{ record.Record }

// NewPreparationParams returns an empty genome preparation parameter record.
func NewPreparationParams() *PreparationParams {
	return &PreparationParams{record.New(PreparationParamsSchema)}
}

// Bound binds PreparationParamsSchema to a zero value and returns the record.
func (p *PreparationParams) Bound() *record.Record {
	p.Bind(PreparationParamsSchema)
	return &p.Record
}

// Set stores value under name, type checking declared fields.
func (p *PreparationParams) Set(name string, value any) error {
	return p.Bound().Set(name, value)
}

// UnmarshalJSON decodes a JSON object under PreparationParamsSchema.
func (p *PreparationParams) UnmarshalJSON(data []byte) error {
	return p.DecodeJSON(PreparationParamsSchema, data)
}

// UnmarshalYAML decodes a YAML mapping under PreparationParamsSchema.
func (p *PreparationParams) UnmarshalYAML(node *yaml.Node) error {
	return p.DecodeYAML(PreparationParamsSchema, node)
}

// PreparationResult reports where the index is and whether the cache was
// read or written. from_cache and pushed_to_cache carry 0 or 1.
type PreparationResult struct{ record.Record }

// NewPreparationResult returns an empty genome preparation result.
func NewPreparationResult() *PreparationResult {
	return &PreparationResult{record.New(PreparationResultSchema)}
}

// Bound binds PreparationResultSchema to a zero value and returns the record.
func (r *PreparationResult) Bound() *record.Record {
	r.Bind(PreparationResultSchema)
	return &r.Record
}

// Set stores value under name, type checking declared fields.
func (r *PreparationResult) Set(name string, value any) error {
	return r.Bound().Set(name, value)
}

// UnmarshalJSON decodes a JSON object under PreparationResultSchema.
func (r *PreparationResult) UnmarshalJSON(data []byte) error {
	return r.DecodeJSON(PreparationResultSchema, data)
}

// UnmarshalYAML decodes a YAML mapping under PreparationResultSchema.
func (r *PreparationResult) UnmarshalYAML(node *yaml.Node) error {
	return r.DecodeYAML(PreparationResultSchema, node)
}

// CliParams invokes one Bismark command with options in command-line order.
type CliParams struct{ record.Record }

// NewCliParams returns an empty command record.
func NewCliParams() *CliParams {
	return &CliParams{record.New(CliParamsSchema)}
}

// Bound binds CliParamsSchema to a zero value and returns the record.
func (p *CliParams) Bound() *record.Record {
	p.Bind(CliParamsSchema)
	return &p.Record
}

// Set stores value under name, type checking declared fields.
func (p *CliParams) Set(name string, value any) error {
	return p.Bound().Set(name, value)
}

// UnmarshalJSON decodes a JSON object under CliParamsSchema.
func (p *CliParams) UnmarshalJSON(data []byte) error {
	return p.DecodeJSON(CliParamsSchema, data)
}

// UnmarshalYAML decodes a YAML mapping under CliParamsSchema.
func (p *CliParams) UnmarshalYAML(node *yaml.Node) error {
	return p.DecodeYAML(CliParamsSchema, node)
}

// Flag converts a boolean to the 0/1 integer used by result flags.
func Flag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
