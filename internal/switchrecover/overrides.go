package switchrecover

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Overrides holds manual corrections for dispatch sites that automatic
// recovery cannot handle reliably: a struct field read through a switch
// with no explicit bounds check, a bound guarded by a branch the walk
// does not follow across function boundaries, or a table whose targets
// genuinely live in a different function than its dispatch site.
type Overrides struct {
	SizeOverrides map[uint32]int
	ExcludeBctrs  map[uint32]bool
}

// overridesFile is the on-disk TOML shape; addresses are written as hex
// strings for readability rather than raw decimal integers.
type overridesFile struct {
	SizeOverride []struct {
		Addr string `toml:"addr"`
		Size int    `toml:"size"`
	} `toml:"size_override"`
	ExcludeBctr []string `toml:"exclude_bctr"`
}

// LoadOverrides reads a manual-override TOML file. A missing path yields
// empty (zero-value) overrides rather than an error, since overrides are
// optional.
func LoadOverrides(path string) (Overrides, error) {
	out := Overrides{
		SizeOverrides: map[uint32]int{},
		ExcludeBctrs:  map[uint32]bool{},
	}
	if path == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("switchrecover: reading overrides: %w", err)
	}

	var f overridesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return out, fmt.Errorf("switchrecover: parsing overrides: %w", err)
	}

	for _, so := range f.SizeOverride {
		addr, err := parseHexAddr(so.Addr)
		if err != nil {
			return out, fmt.Errorf("switchrecover: size_override %q: %w", so.Addr, err)
		}
		out.SizeOverrides[addr] = so.Size
	}
	for _, ex := range f.ExcludeBctr {
		addr, err := parseHexAddr(ex)
		if err != nil {
			return out, fmt.Errorf("switchrecover: exclude_bctr %q: %w", ex, err)
		}
		out.ExcludeBctrs[addr] = true
	}
	return out, nil
}

func parseHexAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.TrimPrefix(s, "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}
