// Package switchrecover recovers compiler-emitted jump tables from a
// flat, decompressed PowerPC image. Xenon's C compiler lowers dense switch
// statements to an indirect branch through a register (bctr) loaded from
// a small jump table; once the executable has been unpacked and
// decompressed to a flat image, the original switch statement's case
// labels are gone, leaving only this load-and-branch idiom and the table
// bytes it reads from. This package walks backward from each such site to
// recover the table's address, entry width, scale, bounds and the
// resulting set of branch targets, so a static recompiler can regenerate
// a goto-based switch instead of emitting an indirect call it cannot
// devirtualize.
package switchrecover

import (
	"bytes"
	"errors"
)

// pattern is the instruction sequence every recognized dispatch site ends
// with: add r12,r12,r0; mtctr r12; bctr.
var pattern = []byte{
	0x7D, 0x8C, 0x02, 0x14, // add r12,r12,r0
	0x7D, 0x89, 0x03, 0xA6, // mtctr r12
	0x4E, 0x80, 0x04, 0x20, // bctr
}

// SwitchInfo describes one recovered jump table.
type SwitchInfo struct {
	TableAddr  uint32
	BaseAddr   uint32
	EntryType  string // "u16" or "u8"
	EntryScale uint32
	IndexReg   uint32
	TableSize  int
}

// Site pairs a recognized dispatch point with its recovered table and the
// resolved branch targets, one per table entry in order.
type Site struct {
	BctrAddr uint32
	Info     SwitchInfo
	Labels   []uint32
	Err      error // set instead of Info/Labels when recovery failed
}

// Scan walks data (a flat memory image based at base) for dispatch sites
// and recovers each one's jump table. excludeBctrs names sites whose
// branch targets lie in a different function than the dispatch site
// itself -- cross-function tables a static recompiler cannot lower to a
// local goto, so they are skipped entirely rather than reported as
// errors. sizeOverrides forces the table length for sites where bounds
// recovery fails or is unreliable (no explicit bounds check, or a bound
// guarded by a branch-to-link-register this package does not try to
// chase across function boundaries).
func Scan(data []byte, base uint32, codeLow, codeHigh uint32, excludeBctrs map[uint32]bool, sizeOverrides map[uint32]int) []Site {
	var sites []Site

	pos := 0
	for {
		idx := bytes.Index(data[pos:], pattern)
		if idx == -1 {
			break
		}
		addOffset := pos + idx
		bctrOffset := addOffset + 8
		bctrAddr := base + uint32(bctrOffset)

		if bctrAddr < codeLow || bctrAddr >= codeHigh {
			pos = addOffset + 4
			continue
		}
		if excludeBctrs[bctrAddr] {
			pos = addOffset + 12
			continue
		}

		info, err := findSwitchInfo(data, base, addOffset)
		if err == nil {
			if n, ok := sizeOverrides[bctrAddr]; ok {
				info.TableSize = n
			}
			labels, lerr := resolveLabels(data, base, info)
			if lerr != nil {
				sites = append(sites, Site{BctrAddr: bctrAddr, Err: lerr})
			} else {
				sites = append(sites, Site{BctrAddr: bctrAddr, Info: *info, Labels: labels})
			}
		} else {
			sites = append(sites, Site{BctrAddr: bctrAddr, Err: err})
		}

		pos = addOffset + 12
	}

	return sites
}

// errTableOutOfImage marks a site whose recovered table address does not
// fall inside the image at all; the address arithmetic matched the idiom
// but produced garbage, so the site is reported as a recovery miss rather
// than crashing the whole scan.
var errTableOutOfImage = errors.New("switchrecover: recovered table address lies outside the image")

func resolveLabels(data []byte, base uint32, info *SwitchInfo) ([]uint32, error) {
	if info.TableAddr < base {
		return nil, errTableOutOfImage
	}
	tableOff := int(info.TableAddr - base)
	width := 1
	if info.EntryType == "u16" {
		width = 2
	}
	if tableOff+info.TableSize*width > len(data) {
		return nil, errTableOutOfImage
	}
	labels := make([]uint32, info.TableSize)
	for i := 0; i < info.TableSize; i++ {
		var entry uint32
		if info.EntryType == "u16" {
			off := tableOff + i*2
			entry = uint32(data[off])<<8 | uint32(data[off+1])
		} else {
			entry = uint32(data[tableOff+i])
		}
		labels[i] = info.BaseAddr + entry*info.EntryScale
	}
	return labels, nil
}
