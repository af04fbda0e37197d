// Command stfsextract unpacks an STFS (LIVE/PIRS/CON) package to a
// directory tree, mirroring the package's own path hierarchy.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sp00nznet/xenonprep/internal/globfilter"
	"github.com/sp00nznet/xenonprep/internal/stfs"
)

func main() {
	var includes, excludes stringList
	flag.Var(&includes, "include", "glob pattern for paths to extract (repeatable, default: everything)")
	flag.Var(&excludes, "exclude", "glob pattern for paths to skip (repeatable, wins over --include)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: stfsextract [--include pattern]... [--exclude pattern]... <package> <output-dir>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	inputPath, outputDir := flag.Arg(0), flag.Arg(1)

	if err := run(inputPath, outputDir, includes, excludes); err != nil {
		fmt.Fprintln(os.Stderr, "stfsextract:", err)
		os.Exit(1)
	}
}

// stringList accumulates repeated --include/--exclude flag occurrences.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func run(inputPath, outputDir string, includes, excludes []string) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	pkg, err := stfs.Open(f, fi.Size())
	if err != nil {
		return err
	}

	filter, err := globfilter.New(includes, excludes)
	if err != nil {
		return err
	}

	extracted := 0
	for _, e := range pkg.Entries() {
		if e.IsDir {
			continue
		}
		fullPath := e.Path + e.Name
		if !filter.Match(fullPath) {
			continue
		}

		data, err := pkg.ReadFile(e)
		if err != nil {
			return fmt.Errorf("extracting %q: %w", fullPath, err)
		}

		outPath := filepath.Join(outputDir, filepath.FromSlash(fullPath))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return err
		}

		fmt.Printf("extracted %s (%d bytes)\n", fullPath, len(data))
		extracted++
	}

	fmt.Printf("done: %d file(s) extracted to %s\n", extracted, outputDir)
	return nil
}
