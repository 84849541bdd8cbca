// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bismark

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bismark-engine/internal/container"
	"github.com/pdiddy/bismark-engine/internal/store"
	"github.com/pdiddy/bismark-engine/pkg/types"
)

// fakeRuntime records every Spec and lets a test simulate tool output.
type fakeRuntime struct {
	specs   []container.Spec
	runFunc func(spec container.Spec) error
}

func (f *fakeRuntime) Name() string             { return "docker" }
func (f *fakeRuntime) Available() bool          { return true }
func (f *fakeRuntime) ImageExists(string) error { return nil }

func (f *fakeRuntime) Run(_ context.Context, spec container.Spec, _, _ io.Writer) error {
	f.specs = append(f.specs, spec)
	if f.runFunc != nil {
		return f.runFunc(spec)
	}
	return nil
}

func (f *fakeRuntime) commands() []string {
	var out []string
	for _, s := range f.specs {
		out = append(out, s.Args[0])
	}
	return out
}

type memCache map[string]store.IndexEntry

func (m memCache) LookupIndex(_ context.Context, ref string) (store.IndexEntry, bool, error) {
	e, ok := m[ref]
	return e, ok, nil
}

func (m memCache) SaveIndex(_ context.Context, e store.IndexEntry) error {
	m[e.AssemblyRef] = e
	return nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	runner *Runner
	rt     *fakeRuntime
	cache  memCache
	data   string
	log    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := types.DefaultEngineConfig()
	cfg.Container.Image = "bismark:test"
	cfg.DataDir = filepath.Join(root, "data")
	cfg.ScratchDir = filepath.Join(root, "scratch")
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))

	rt := &fakeRuntime{runFunc: simulateBismark}
	cache := memCache{}
	var log bytes.Buffer
	r := NewRunner(cfg, rt, cache, &log, &log)
	r.now = func() time.Time { return testNow }
	return &fixture{runner: r, rt: rt, cache: cache, data: cfg.DataDir, log: &log}
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.data, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// simulateBismark writes the files each tool would produce.
func simulateBismark(spec container.Spec) error {
	out := spec.Workdir
	switch spec.Args[0] {
	case "bismark_genome_preparation":
		return os.MkdirAll(filepath.Join(out, "Bisulfite_Genome", "CT_conversion"), 0o755)
	case "bismark":
		if err := os.WriteFile(filepath.Join(out, "s_1_bismark_bt2_pe.bam"), nil, 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(out, "s_1_bismark_bt2_PE_report.txt"), []byte("report"), 0o644)
	case "bismark_methylation_extractor":
		return os.WriteFile(filepath.Join(out, "aln.bedGraph.gz"), nil, 0o644)
	}
	return nil
}

func argsOf(spec container.Spec) string { return strings.Join(spec.Args, " ") }

func TestAlignOptions(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]any
		threads int
		want    []string
	}{
		{"empty", nil, 1, nil},
		{"directional", map[string]any{"lib_type": "directional"}, 1, nil},
		{"non directional", map[string]any{"lib_type": "non_directional"}, 1, []string{"--non_directional"}},
		{"pbat", map[string]any{"lib_type": "pbat"}, 1, []string{"--pbat"}},
		{
			"all numeric",
			map[string]any{"mismatch": 1, "length": 20, "minins": 0, "maxins": 500},
			1,
			[]string{"-N", "1", "-L", "20", "-I", "0", "-X", "500"},
		},
		{"phred64", map[string]any{"qual": "phred64"}, 1, []string{"--phred64-quals"}},
		{"solexa", map[string]any{"qual": "solexa"}, 1, []string{"--solexa-quals"}},
		{"unknown qual", map[string]any{"qual": "phred99"}, 1, nil},
		{"threads", nil, 4, []string{"--parallel", "4"}},
		{"extras ignored", map[string]any{"workspace_name": "ws", "mismatch": 0}, 1, []string{"-N", "0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := types.NewAlignmentParams()
			for k, v := range tc.fields {
				require.NoError(t, p.Set(k, v))
			}
			assert.Equal(t, tc.want, alignOptions(p, tc.threads))
		})
	}
}

func TestCliArgs(t *testing.T) {
	p := types.NewCliParams()
	require.NoError(t, types.CommandName.Set(p, "bismark2report"))
	require.NoError(t, types.Options.Set(p, []string{"--alignment_report", "a.txt"}))
	args, err := cliArgs(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"bismark2report", "--alignment_report", "a.txt"}, args)

	require.NoError(t, types.CommandName.Set(p, "rm"))
	_, err = cliArgs(p)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = cliArgs(types.NewCliParams())
	assert.ErrorContains(t, err, "command_name is missing")
}

func TestRunCLI(t *testing.T) {
	f := newFixture(t)
	p := types.NewCliParams()
	require.NoError(t, types.CommandName.Set(p, "bismark"))
	require.NoError(t, types.Options.Set(p, []string{"--version"}))

	require.NoError(t, f.runner.RunCLI(context.Background(), p))
	require.Len(t, f.rt.specs, 1)
	spec := f.rt.specs[0]
	assert.Equal(t, "bismark:test", spec.Image)
	assert.Equal(t, []string{"bismark", "--version"}, spec.Args)
	require.Len(t, spec.Mounts, 2)
	assert.False(t, spec.Mounts[0].ReadOnly)
	assert.Equal(t, spec.Workdir, spec.Mounts[0].Host)
	assert.Equal(t, f.data, spec.Mounts[1].Host)
	assert.True(t, spec.Mounts[1].ReadOnly)
}

func TestRunCLIUnknownCommand(t *testing.T) {
	f := newFixture(t)
	p := types.NewCliParams()
	require.NoError(t, types.CommandName.Set(p, "bash"))
	err := f.runner.RunCLI(context.Background(), p)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Empty(t, f.rt.specs)
}

func prepParams(t *testing.T, ref, ws string) *types.PreparationParams {
	t.Helper()
	p := types.NewPreparationParams()
	require.NoError(t, types.AssemblyOrGenomeRef.Set(p, ref))
	if ws != "" {
		require.NoError(t, types.WsForCache.Set(p, ws))
	}
	return p
}

func TestPrepareCachesIndex(t *testing.T) {
	f := newFixture(t)
	f.write(t, "genomes/ecoli.fa", ">chr\nACGT\n")
	ctx := context.Background()

	res, err := f.runner.Prepare(ctx, prepParams(t, "genomes/ecoli.fa", "my_ws"))
	require.NoError(t, err)
	fromCache, _ := types.FromCache.Get(res)
	pushed, _ := types.PushedToCache.Get(res)
	outDir, _ := types.OutputDir.Get(res)
	assert.Equal(t, int64(0), fromCache)
	assert.Equal(t, int64(1), pushed)
	assert.FileExists(t, filepath.Join(outDir, "ecoli.fa"))
	assert.Equal(t, "my_ws", f.cache["genomes/ecoli.fa"].Workspace)
	assert.Equal(t, "bismark_genome_preparation "+outDir, argsOf(f.rt.specs[0]))

	again, err := f.runner.Prepare(ctx, prepParams(t, "genomes/ecoli.fa", ""))
	require.NoError(t, err)
	fromCache, _ = types.FromCache.Get(again)
	cachedDir, _ := types.OutputDir.Get(again)
	assert.Equal(t, int64(1), fromCache)
	assert.Equal(t, outDir, cachedDir)
	assert.Len(t, f.rt.specs, 1, "a cache hit runs nothing")
}

func TestPrepareWithoutWorkspace(t *testing.T) {
	f := newFixture(t)
	f.write(t, "genome/chr1.fasta", ">chr1\nACGT\n")
	f.write(t, "genome/notes.txt", "skip me")

	res, err := f.runner.Prepare(context.Background(), prepParams(t, "genome", ""))
	require.NoError(t, err)
	pushed, _ := types.PushedToCache.Get(res)
	outDir, _ := types.OutputDir.Get(res)
	assert.Equal(t, int64(0), pushed)
	assert.Empty(t, f.cache)
	assert.FileExists(t, filepath.Join(outDir, "chr1.fasta"))
	assert.NoFileExists(t, filepath.Join(outDir, "notes.txt"))
}

func TestPrepareStaleCacheEntry(t *testing.T) {
	f := newFixture(t)
	f.write(t, "g.fa", ">c\nA\n")
	f.cache["g.fa"] = store.IndexEntry{AssemblyRef: "g.fa", OutputDir: filepath.Join(f.data, "gone")}

	res, err := f.runner.Prepare(context.Background(), prepParams(t, "g.fa", ""))
	require.NoError(t, err)
	fromCache, _ := types.FromCache.Get(res)
	assert.Equal(t, int64(0), fromCache)
	assert.Len(t, f.rt.specs, 1)
	assert.Contains(t, f.log.String(), "is gone, rebuilding")
}

func TestPrepareErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner.Prepare(context.Background(), types.NewPreparationParams())
	assert.ErrorContains(t, err, "assembly_or_genome_ref is missing")

	_, err = f.runner.Prepare(context.Background(), prepParams(t, "nope.fa", ""))
	assert.ErrorContains(t, err, "not found")
}

func alignParams(t *testing.T, fields map[string]any) *types.AlignmentParams {
	t.Helper()
	p := types.NewAlignmentParams()
	for k, v := range fields {
		require.NoError(t, p.Set(k, v))
	}
	return p
}

func TestAlign(t *testing.T) {
	f := newFixture(t)
	f.write(t, "g.fa", ">c\nACGT\n")
	r1 := f.write(t, "reads/s_1.fq", "@r\nA\n+\nI\n")
	r2 := f.write(t, "reads/s_2.fq", "@r\nT\n+\nI\n")

	p := alignParams(t, map[string]any{
		"input_ref":              "reads",
		"assembly_or_genome_ref": "g.fa",
		"lib_type":               "non_directional",
		"mismatch":               1,
		"workspace_name":         "ws",
	})
	res, err := f.runner.Align(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []string{"bismark_genome_preparation", "bismark"}, f.rt.commands())
	align := argsOf(f.rt.specs[1])
	assert.Contains(t, align, "--non_directional -N 1")
	assert.Contains(t, align, "-1 "+r1+" -2 "+r2)
	assert.Contains(t, align, "--genome "+f.cache["g.fa"].OutputDir)
	assert.Equal(t, localCacheWorkspace, f.cache["g.fa"].Workspace)

	outDir, _ := types.OutputDir.Get(res)
	bam, _ := types.AlignmentRef.Get(res)
	report, _ := types.ReportName.Get(res)
	assert.Equal(t, filepath.Join(outDir, "s_1_bismark_bt2_pe.bam"), bam)
	assert.Equal(t, "s_1_bismark_bt2_PE_report.txt", report)
	assert.False(t, res.Has("workspace_name"))
}

func TestAlignNoBAM(t *testing.T) {
	f := newFixture(t)
	f.write(t, "g.fa", ">c\nACGT\n")
	f.write(t, "reads.fq", "@r\nA\n+\nI\n")
	f.rt.runFunc = func(spec container.Spec) error {
		if spec.Args[0] == "bismark" {
			return nil
		}
		return simulateBismark(spec)
	}

	_, err := f.runner.Align(context.Background(), alignParams(t, map[string]any{
		"input_ref": "reads.fq", "assembly_or_genome_ref": "g.fa",
	}))
	assert.ErrorContains(t, err, "no BAM file")
}

func TestAlignToolFailure(t *testing.T) {
	f := newFixture(t)
	f.write(t, "g.fa", ">c\nACGT\n")
	f.write(t, "reads.fq", "@r\nA\n+\nI\n")
	f.rt.runFunc = func(container.Spec) error { return errors.New("exit status 255") }

	_, err := f.runner.Align(context.Background(), alignParams(t, map[string]any{
		"input_ref": "reads.fq", "assembly_or_genome_ref": "g.fa",
	}))
	assert.ErrorContains(t, err, "running bismark_genome_preparation: exit status 255")
}

func TestExtract(t *testing.T) {
	f := newFixture(t)
	bam := f.write(t, "aln.bam", "")

	p := types.NewExtractionParams()
	require.NoError(t, types.AlignmentRef.Set(p, "aln.bam"))
	require.NoError(t, p.Set("workspace_name", "ws"))

	res, err := f.runner.Extract(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, f.rt.specs, 1)
	assert.Equal(t, "bismark_methylation_extractor --bedGraph --gzip -o "+f.rt.specs[0].Workdir+" "+bam, argsOf(f.rt.specs[0]))

	dir, _ := types.ResultDirectory.Get(res)
	bg, _ := types.BedgraphRef.Get(res)
	name, _ := types.ReportName.Get(res)
	ref, _ := types.ReportRef.Get(res)
	assert.Equal(t, filepath.Join(dir, "aln.bedGraph.gz"), bg)
	assert.Equal(t, "bismark_extractor_report_20260301T120000", name)

	rep, err := ReadReport(ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"aln.bedGraph.gz"}, rep.Files)
	extra, ok := rep.Params.Get("workspace_name")
	assert.True(t, ok)
	assert.Equal(t, "ws", extra)
	got, _ := types.AlignmentRef.Get(&rep.Params.Record)
	assert.Equal(t, "aln.bam", got)
}

func TestExtractWithGenome(t *testing.T) {
	f := newFixture(t)
	f.write(t, "aln.bam", "")
	f.write(t, "g.fa", ">c\nACGT\n")

	p := types.NewExtractionParams()
	require.NoError(t, types.AlignmentRef.Set(p, "aln.bam"))
	require.NoError(t, types.AssemblyOrGenomeRef.Set(p, "g.fa"))

	_, err := f.runner.Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"bismark_genome_preparation", "bismark_methylation_extractor"}, f.rt.commands())
	assert.Contains(t, argsOf(f.rt.specs[1]), "--cytosine_report --genome_folder "+f.cache["g.fa"].OutputDir)
}

func TestExtractUpgradedV1(t *testing.T) {
	f := newFixture(t)
	f.write(t, "aln.bam", "")

	v1 := types.NewExtractionParamsV1()
	require.NoError(t, v1.UnmarshalJSON([]byte(`{"alignment_ref":"aln.bam"}`)))
	p, err := v1.Upgrade()
	require.NoError(t, err)

	_, err = f.runner.Extract(context.Background(), p)
	require.NoError(t, err)
}

func TestRunDirsAreUnique(t *testing.T) {
	f := newFixture(t)
	a, err := f.runner.runDir("extract")
	require.NoError(t, err)
	b, err := f.runner.runDir("extract")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.DirExists(t, a)
	assert.DirExists(t, b)
}

func TestIdentityMounts(t *testing.T) {
	got := identityMounts("/work/out", "/data", "/work/out/index", "/data/reads", "", "/ref")
	assert.Equal(t, []container.Mount{
		{Host: "/work/out", Container: "/work/out"},
		{Host: "/data", Container: "/data", ReadOnly: true},
		{Host: "/ref", Container: "/ref", ReadOnly: true},
	}, got)
}

func TestResolver(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x.fa")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	r := Resolver{DataDir: dir}

	got, err := r.Resolve("x.fa")
	require.NoError(t, err)
	assert.Equal(t, file, got)

	got, err = r.Resolve(file)
	require.NoError(t, err)
	assert.Equal(t, file, got)

	_, err = r.Resolve("missing")
	assert.ErrorContains(t, err, "not found")

	_, err = r.Resolve("")
	assert.Error(t, err)
}

func TestReadsArgs(t *testing.T) {
	dir := t.TempDir()
	touch := func(name string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		return p
	}
	a := touch("lib_R1.fastq.gz")
	b := touch("lib_R2.fastq.gz")

	got, err := readsArgs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"-1", a, "-2", b}, got)

	c := touch("other.fq")
	got, err = readsArgs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, got)

	got, err = readsArgs(c)
	require.NoError(t, err)
	assert.Equal(t, []string{c}, got)

	_, err = readsArgs(t.TempDir())
	assert.ErrorContains(t, err, "no .fq")
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "12_3_4", safeName("12/3/4"))
	assert.Equal(t, "genomes_ecoli.fa", safeName("genomes/ecoli.fa"))
}
