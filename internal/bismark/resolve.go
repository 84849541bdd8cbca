// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bismark

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver maps object references to local paths. Absolute references are
// used as is; anything else is looked up under DataDir.
type Resolver struct {
	DataDir string
}

// Resolve returns the absolute path for ref. The path must exist.
func (r Resolver) Resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty reference")
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.DataDir, ref)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", ref, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("reference %s not found at %s: %w", ref, abs, err)
	}
	return abs, nil
}

var fastaExts = []string{".fa", ".fasta", ".fna", ".fa.gz", ".fasta.gz", ".fna.gz"}

var fastqExts = []string{".fq", ".fastq", ".fq.gz", ".fastq.gz"}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

// listFiles returns the sorted files in dir matching exts. When path is a
// file it is returned alone, whatever its extension.
func listFiles(path string, exts []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !hasExt(e.Name(), exts) {
			continue
		}
		out = append(out, filepath.Join(path, e.Name()))
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), path)
	}
	return out, nil
}

// readsArgs turns the resolved input into bismark read arguments: "-1 a -2 b"
// for a mate pair (names differing only in _1/_2 or _R1/_R2), otherwise the
// files as single-end reads.
func readsArgs(path string) ([]string, error) {
	files, err := listFiles(path, fastqExts)
	if err != nil {
		return nil, err
	}
	if len(files) == 2 {
		if m1, m2, ok := matePair(files[0], files[1]); ok {
			return []string{"-1", m1, "-2", m2}, nil
		}
	}
	return files, nil
}

func matePair(a, b string) (string, string, bool) {
	if filepath.Dir(a) != filepath.Dir(b) {
		return "", "", false
	}
	na, nb := filepath.Base(a), filepath.Base(b)
	for _, tags := range [][2]string{{"_1", "_2"}, {"_R1", "_R2"}} {
		i := strings.LastIndex(na, tags[0])
		if i >= 0 && na[:i]+tags[1]+na[i+len(tags[0]):] == nb {
			return a, b, true
		}
	}
	return "", "", false
}

// safeName turns a reference such as "12/3/4" into a directory name.
func safeName(ref string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return strings.Trim(r.Replace(ref), "._")
}

// findFile returns the first file under dir whose name ends with suffix.
func findFile(dir, suffix string) (string, bool) {
	var found string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}
