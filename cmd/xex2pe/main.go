// Command xex2pe decrypts and decompresses an XEX2 container's embedded
// PE image to a flat file suitable for a disassembler or the
// switchrecover tool.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sp00nznet/xenonprep/internal/decodecache"
	"github.com/sp00nznet/xenonprep/internal/xex2"
)

func main() {
	cacheDir := flag.String("cache-dir", "", "directory for the on-disk decode cache (unset disables it)")
	windowBits := flag.Uint("window-bits", 0, "override the LZX window-size exponent from the compression header")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: xex2pe [--cache-dir dir] [--window-bits n] <input.xex> <output.bin>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Arg(1), *cacheDir, *windowBits); err != nil {
		fmt.Fprintln(os.Stderr, "xex2pe:", err)
		os.Exit(1)
	}
}

func run(inputPath, outputPath, cacheDir string, windowBits uint) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	var cache *decodecache.Cache
	if cacheDir != "" {
		cache, err = decodecache.Open(cacheDir)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer cache.Close()
	}

	hdr, err := xex2.ParseHeader(raw)
	if err != nil {
		return fmt.Errorf("parsing header: %w", err)
	}
	if windowBits != 0 {
		hdr.WindowBits = windowBits
	}

	var image []byte
	var cacheable bool
	if cache != nil && hdr.CompressionType == xex2.CompressionLZX {
		cacheable = true
		if cached, ok := cache.Get(raw, hdr.WindowBits, int(hdr.ImageSize)); ok {
			image = cached
			fmt.Println("decode cache hit")
		}
	}

	if image == nil {
		image, err = xex2.LoadImage(raw, hdr)
		if err != nil {
			return fmt.Errorf("loading image: %w", err)
		}
		if cacheable {
			if err := cache.Put(raw, hdr.WindowBits, len(image), image); err != nil {
				fmt.Fprintln(os.Stderr, "xex2pe: warning: caching decoded image:", err)
			}
		}
	}

	fmt.Printf("entry point 0x%08X, image base 0x%08X, %d bytes\n", hdr.EntryPoint, hdr.ImageBase, len(image))

	if err := os.WriteFile(outputPath, image, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outputPath)
	return nil
}
