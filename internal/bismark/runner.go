// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bismark runs the Bismark bisulfite pipeline (genome preparation,
// alignment, methylation extraction) inside a container, driven by the open
// parameter records in pkg/types.
package bismark

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/bismark-engine/internal/container"
	"github.com/pdiddy/bismark-engine/internal/store"
	"github.com/pdiddy/bismark-engine/pkg/types"
)

// localCacheWorkspace marks index cache entries created by Align and
// Extract rather than by an explicit prepare_genome call.
const localCacheWorkspace = "local"

// IndexCache remembers prepared genome indexes across runs.
type IndexCache interface {
	LookupIndex(ctx context.Context, assemblyRef string) (store.IndexEntry, bool, error)
	SaveIndex(ctx context.Context, e store.IndexEntry) error
}

// Runner executes Bismark tools inside the configured container image.
type Runner struct {
	cfg      types.EngineConfig
	runtime  container.Runtime
	cache    IndexCache
	resolver Resolver
	stdout   io.Writer
	stderr   io.Writer
	now      func() time.Time
}

// NewRunner creates a Runner. Tool output and progress lines go to stdout
// and stderr; nil writers discard. cache may be nil, which disables index
// reuse.
func NewRunner(cfg types.EngineConfig, rt container.Runtime, cache IndexCache, stdout, stderr io.Writer) *Runner {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Runner{
		cfg:      cfg,
		runtime:  rt,
		cache:    cache,
		resolver: Resolver{DataDir: cfg.DataDir},
		stdout:   stdout,
		stderr:   stderr,
		now:      time.Now,
	}
}

// RunCLI runs command_name with options, in the order given.
func (r *Runner) RunCLI(ctx context.Context, p *types.CliParams) error {
	args, err := cliArgs(p)
	if err != nil {
		return err
	}
	scratch, err := r.scratchDir()
	if err != nil {
		return err
	}
	return r.run(ctx, scratch, args, r.dataDir())
}

// Prepare builds (or reuses) the bisulfite index for assembly_or_genome_ref.
func (r *Runner) Prepare(ctx context.Context, p *types.PreparationParams) (*types.PreparationResult, error) {
	ref, ok := types.AssemblyOrGenomeRef.Get(p)
	if !ok || ref == "" {
		return nil, fmt.Errorf("prepare_genome: assembly_or_genome_ref is missing")
	}
	res := types.NewPreparationResult()

	if entry, hit, err := r.lookupIndex(ctx, ref); err != nil {
		return nil, err
	} else if hit {
		fmt.Fprintf(r.stdout, "  index for %s found in cache: %s\n", ref, entry.OutputDir)
		_ = types.OutputDir.Set(res, entry.OutputDir)
		_ = types.FromCache.Set(res, types.Flag(true))
		_ = types.PushedToCache.Set(res, types.Flag(false))
		return res, nil
	}

	genome, err := r.resolver.Resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("prepare_genome: %w", err)
	}
	outDir, ok := types.OutputDir.Get(p)
	if !ok || outDir == "" {
		scratch, err := r.scratchDir()
		if err != nil {
			return nil, err
		}
		outDir = filepath.Join(scratch, "index", safeName(ref))
	}
	if outDir, err = filepath.Abs(outDir); err != nil {
		return nil, fmt.Errorf("prepare_genome: %w", err)
	}
	if err := linkGenome(genome, outDir); err != nil {
		return nil, fmt.Errorf("prepare_genome: %w", err)
	}

	fmt.Fprintf(r.stdout, "  preparing bisulfite index for %s in %s\n", ref, outDir)
	args := append([]string{"bismark_genome_preparation"}, parallel(r.cfg.Threads)...)
	args = append(args, outDir)
	if err := r.run(ctx, outDir, args, r.dataDir(), filepath.Dir(genome)); err != nil {
		return nil, fmt.Errorf("prepare_genome: %w", err)
	}

	_ = types.OutputDir.Set(res, outDir)
	_ = types.FromCache.Set(res, types.Flag(false))

	pushed := false
	if ws, ok := types.WsForCache.Get(p); ok && ws != "" && r.cache != nil {
		entry := store.IndexEntry{AssemblyRef: ref, OutputDir: outDir, Workspace: ws, CreatedAt: r.now().UTC()}
		if err := r.cache.SaveIndex(ctx, entry); err != nil {
			return nil, fmt.Errorf("prepare_genome: %w", err)
		}
		pushed = true
	}
	_ = types.PushedToCache.Set(res, types.Flag(pushed))
	return res, nil
}

// lookupIndex returns a cache hit only when the index directory still
// holds a Bisulfite_Genome tree.
func (r *Runner) lookupIndex(ctx context.Context, ref string) (store.IndexEntry, bool, error) {
	if r.cache == nil {
		return store.IndexEntry{}, false, nil
	}
	entry, ok, err := r.cache.LookupIndex(ctx, ref)
	if err != nil || !ok {
		return entry, false, err
	}
	if _, err := os.Stat(filepath.Join(entry.OutputDir, "Bisulfite_Genome")); err != nil {
		fmt.Fprintf(r.stderr, "  warning: cached index %s is gone, rebuilding\n", entry.OutputDir)
		return store.IndexEntry{}, false, nil
	}
	return entry, true, nil
}

// indexFor prepares the index for ref, pushing it to the local cache.
func (r *Runner) indexFor(ctx context.Context, ref string) (string, error) {
	prep := types.NewPreparationParams()
	_ = types.AssemblyOrGenomeRef.Set(prep, ref)
	_ = types.WsForCache.Set(prep, localCacheWorkspace)
	res, err := r.Prepare(ctx, prep)
	if err != nil {
		return "", err
	}
	dir, _ := types.OutputDir.Get(res)
	return dir, nil
}

// Align maps the alignment parameters onto a bismark run and returns where
// the BAM and mapping report landed.
func (r *Runner) Align(ctx context.Context, p *types.AlignmentParams) (*types.AlignmentResult, error) {
	input, ok := types.InputRef.Get(p)
	if !ok || input == "" {
		return nil, fmt.Errorf("run_bismark_app: input_ref is missing")
	}
	assembly, ok := types.AssemblyOrGenomeRef.Get(p)
	if !ok || assembly == "" {
		return nil, fmt.Errorf("run_bismark_app: assembly_or_genome_ref is missing")
	}

	readsPath, err := r.resolver.Resolve(input)
	if err != nil {
		return nil, fmt.Errorf("run_bismark_app: %w", err)
	}
	reads, err := readsArgs(readsPath)
	if err != nil {
		return nil, fmt.Errorf("run_bismark_app: %w", err)
	}
	index, err := r.indexFor(ctx, assembly)
	if err != nil {
		return nil, fmt.Errorf("run_bismark_app: %w", err)
	}
	outDir, err := r.runDir("align")
	if err != nil {
		return nil, err
	}

	args := []string{"bismark", "--genome", index}
	args = append(args, alignOptions(p, r.cfg.Threads)...)
	args = append(args, "-o", outDir, "--temp_dir", filepath.Join(outDir, "tmp"))
	args = append(args, reads...)

	fmt.Fprintf(r.stdout, "  aligning %s against %s\n", input, assembly)
	if err := r.run(ctx, outDir, args, r.dataDir(), index, filepath.Dir(readsPath)); err != nil {
		return nil, fmt.Errorf("run_bismark_app: %w", err)
	}

	res := types.NewAlignmentResult()
	_ = types.OutputDir.Set(res, outDir)
	bam, ok := findFile(outDir, ".bam")
	if !ok {
		return nil, fmt.Errorf("run_bismark_app: bismark wrote no BAM file to %s", outDir)
	}
	_ = types.AlignmentRef.Set(res, bam)
	if report, ok := findFile(outDir, "_report.txt"); ok {
		_ = types.ReportName.Set(res, filepath.Base(report))
		_ = types.ReportRef.Set(res, report)
	}
	return res, nil
}

// Extract runs the methylation extractor on alignment_ref. With an
// assembly_or_genome_ref it also writes a genome-wide cytosine report.
func (r *Runner) Extract(ctx context.Context, p *types.ExtractionParams) (*types.ExtractionResult, error) {
	ref, ok := types.AlignmentRef.Get(p)
	if !ok || ref == "" {
		return nil, fmt.Errorf("run_bismark_methylation_extractor_app: alignment_ref is missing")
	}
	bam, err := r.resolver.Resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("run_bismark_methylation_extractor_app: %w", err)
	}
	outDir, err := r.runDir("extract")
	if err != nil {
		return nil, err
	}

	args := []string{"bismark_methylation_extractor", "--bedGraph", "--gzip"}
	args = append(args, parallel(r.cfg.Threads)...)
	inputs := []string{r.dataDir(), filepath.Dir(bam)}
	if assembly, ok := types.AssemblyOrGenomeRef.Get(p); ok && assembly != "" {
		index, err := r.indexFor(ctx, assembly)
		if err != nil {
			return nil, fmt.Errorf("run_bismark_methylation_extractor_app: %w", err)
		}
		args = append(args, "--cytosine_report", "--genome_folder", index)
		inputs = append(inputs, index)
	}
	args = append(args, "-o", outDir, bam)

	fmt.Fprintf(r.stdout, "  extracting methylation calls from %s\n", ref)
	if err := r.run(ctx, outDir, args, inputs...); err != nil {
		return nil, fmt.Errorf("run_bismark_methylation_extractor_app: %w", err)
	}

	res := types.NewExtractionResult()
	_ = types.ResultDirectory.Set(res, outDir)
	if bg, ok := findFile(outDir, ".bedGraph.gz"); ok {
		_ = types.BedgraphRef.Set(res, bg)
	}
	report, err := writeReport(outDir, p, res, r.now())
	if err != nil {
		return nil, fmt.Errorf("run_bismark_methylation_extractor_app: %w", err)
	}
	_ = types.ReportName.Set(res, report.Name)
	_ = types.ReportRef.Set(res, report.Path)
	return res, nil
}

// run executes args in the Bismark image. output is bound read-write and
// each input read-only, all at their host paths, so arguments need no
// rewriting.
func (r *Runner) run(ctx context.Context, output string, args []string, inputs ...string) error {
	if r.cfg.Container.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Container.Timeout)
		defer cancel()
	}
	spec := container.Spec{
		Image:   r.cfg.Container.Image,
		Mounts:  identityMounts(output, inputs...),
		Workdir: output,
		Args:    args,
	}
	fmt.Fprintf(r.stderr, "  %s %s\n", r.runtime.Name(), strings.Join(args, " "))
	if err := r.runtime.Run(ctx, spec, r.stdout, r.stderr); err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return nil
}

// identityMounts binds output and every input not already under a mount.
func identityMounts(output string, inputs ...string) []container.Mount {
	mounts := []container.Mount{{Host: output, Container: output}}
	for _, d := range inputs {
		if d == "" || covered(mounts, d) {
			continue
		}
		mounts = append(mounts, container.Mount{Host: d, Container: d, ReadOnly: true})
	}
	return mounts
}

func covered(mounts []container.Mount, dir string) bool {
	for _, m := range mounts {
		if within(dir, m.Host) {
			return true
		}
	}
	return false
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (r *Runner) dataDir() string {
	abs, err := filepath.Abs(r.cfg.DataDir)
	if err != nil {
		return r.cfg.DataDir
	}
	return abs
}

func (r *Runner) scratchDir() (string, error) {
	abs, err := filepath.Abs(r.cfg.ScratchDir)
	if err != nil {
		return "", fmt.Errorf("resolving scratch dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	return abs, nil
}

// runDir creates a fresh, timestamped directory under scratch/<kind>.
func (r *Runner) runDir(kind string) (string, error) {
	scratch, err := r.scratchDir()
	if err != nil {
		return "", err
	}
	base := filepath.Join(scratch, kind, r.now().UTC().Format("20060102T150405.000000000"))
	dir := base
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
				return "", fmt.Errorf("creating %s dir: %w", kind, err)
			}
			continue
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("creating %s dir: %w", kind, err)
		}
		dir = fmt.Sprintf("%s-%d", base, i)
	}
}

// linkGenome symlinks the FASTA file(s) of genome into dir, where
// bismark_genome_preparation expects them.
func linkGenome(genome, dir string) error {
	files, err := listFiles(genome, fastaExts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}
	for _, f := range files {
		link := filepath.Join(dir, filepath.Base(f))
		if filepath.Dir(f) == dir {
			continue
		}
		if _, err := os.Lstat(link); err == nil {
			if err := os.Remove(link); err != nil {
				return fmt.Errorf("replacing %s: %w", link, err)
			}
		}
		if err := os.Symlink(f, link); err != nil {
			return fmt.Errorf("linking %s: %w", f, err)
		}
	}
	return nil
}
