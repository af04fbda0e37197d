// Command switchrecover scans a flat PowerPC image for compiler-emitted
// jump-table dispatch sites and writes the recovered tables as
// [[switch]] blocks for a static recompiler's config.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sp00nznet/xenonprep/internal/switchconfig"
	"github.com/sp00nznet/xenonprep/internal/switchrecover"
)

func main() {
	baseStr := flag.String("base", "0x82000000", "base address the image is loaded at")
	codeLowStr := flag.String("code-low", "", "low bound of valid code addresses (default: base)")
	codeHighStr := flag.String("code-high", "", "high bound of valid code addresses (default: base + len(image))")
	overridesPath := flag.String("overrides", "", "manual override TOML file (optional)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: switchrecover [--base addr] [--code-low addr] [--code-high addr] [--overrides file] <image.bin> <output.toml>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	base, err := parseHexAddr(*baseStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "switchrecover: --base:", err)
		os.Exit(2)
	}
	codeLow := base
	if *codeLowStr != "" {
		if codeLow, err = parseHexAddr(*codeLowStr); err != nil {
			fmt.Fprintln(os.Stderr, "switchrecover: --code-low:", err)
			os.Exit(2)
		}
	}
	var codeHigh uint64
	if *codeHighStr != "" {
		if codeHigh, err = parseHexAddr(*codeHighStr); err != nil {
			fmt.Fprintln(os.Stderr, "switchrecover: --code-high:", err)
			os.Exit(2)
		}
	}

	unresolved, err := run(flag.Arg(0), flag.Arg(1), uint32(base), uint32(codeLow), uint32(codeHigh), *overridesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "switchrecover:", err)
		os.Exit(1)
	}
	if unresolved > 0 {
		os.Exit(1)
	}
}

func parseHexAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 32)
}

// run returns the number of unresolved dispatch sites alongside any error
// that aborted the scan outright.
func run(inputPath, outputPath string, base, codeLow, codeHigh uint32, overridesPath string) (int, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return 0, err
	}

	if codeHigh == 0 {
		codeHigh = base + uint32(len(data))
	}

	overrides, err := switchrecover.LoadOverrides(overridesPath)
	if err != nil {
		return 0, err
	}

	sites := switchrecover.Scan(data, base, codeLow, codeHigh, overrides.ExcludeBctrs, overrides.SizeOverrides)

	errs := 0
	for _, s := range sites {
		if s.Err != nil {
			errs++
		}
	}
	fmt.Printf("scanned %d bytes, found %d dispatch site(s), %d unresolved\n", len(data), len(sites), errs)

	out, err := os.Create(outputPath)
	if err != nil {
		return errs, err
	}
	defer out.Close()

	if err := switchconfig.Write(out, inputPath, sites); err != nil {
		return errs, fmt.Errorf("writing %s: %w", outputPath, err)
	}

	fmt.Printf("wrote %s\n", outputPath)
	return errs, nil
}
