// Package switchconfig renders recovered jump tables as [[switch]] blocks
// for XenonRecomp's static-recompilation config: a commented summary line
// per table, labels wrapped at eight entries per line once a table grows
// past a single readable line, a leading comment block recording the
// dispatch count, and a trailing summary comment recording how many sites
// were parsed and how many failed to resolve.
package switchconfig

import (
	"fmt"
	"io"

	"github.com/sp00nznet/xenonprep/internal/switchrecover"
)

// Write renders sites as TOML [[switch]] blocks to w. moduleName appears
// in the leading comment only, for a reader's benefit.
func Write(w io.Writer, moduleName string, sites []switchrecover.Site) error {
	errs := 0
	for _, s := range sites {
		if s.Err != nil {
			errs++
		}
	}

	if _, err := fmt.Fprintf(w, "# Auto-generated switch tables for %s\n# Found %d switch table sites\n\n", moduleName, len(sites)); err != nil {
		return err
	}

	for _, s := range sites {
		if s.Err != nil {
			if _, err := fmt.Fprintf(w, "# ERROR at bctr=0x%08X: %v\n", s.BctrAddr, s.Err); err != nil {
				return err
			}
			continue
		}
		if err := writeSwitch(w, s); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "# Summary: %d total, %d parsed, %d errors\n", len(sites), len(sites)-errs, errs)
	return err
}

func writeSwitch(w io.Writer, s switchrecover.Site) error {
	if _, err := fmt.Fprintf(w, "[[switch]]\nbase = 0x%08X\nr = %d\n", s.BctrAddr, s.Info.IndexReg); err != nil {
		return err
	}

	if len(s.Labels) <= 8 {
		if _, err := fmt.Fprintf(w, "labels = [%s]\n", joinHex(s.Labels)); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintln(w, "labels = ["); err != nil {
			return err
		}
		for i := 0; i < len(s.Labels); i += 8 {
			end := i + 8
			if end > len(s.Labels) {
				end = len(s.Labels)
			}
			comma := ","
			if end >= len(s.Labels) {
				comma = ""
			}
			if _, err := fmt.Fprintf(w, "    %s%s\n", joinHex(s.Labels[i:end]), comma); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, "]"); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "# table=0x%08X base_ref=0x%08X type=%s scale=%d size=%d\n\n",
		s.Info.TableAddr, s.Info.BaseAddr, s.Info.EntryType, s.Info.EntryScale, s.Info.TableSize)
	return err
}

func joinHex(labels []uint32) string {
	s := ""
	for i, l := range labels {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("0x%08X", l)
	}
	return s
}
