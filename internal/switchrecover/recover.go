package switchrecover

import (
	"errors"

	"github.com/sp00nznet/xenonprep/internal/ppc"
)

// ErrPatternNotRecognized is returned when the backward walk from a
// dispatch site fails to find the expected lis/addi table-address pair,
// table-load instruction, or base-address pair within the fixed search
// window. Scan records such a site as a recovery miss; size overrides are
// not applied to it.
var ErrPatternNotRecognized = errors.New("switchrecover: dispatch site does not match the recognized table idiom")

// findSwitchInfo walks backward from addOffset (the file offset of
// "add r12,r12,r0") to recover the jump table address, the base address
// added to each table entry, the entry width and post-load scale, the
// index register, and the table's element count.
//
// The walk visits the idiom in reverse program order, nearest the add
// first: the lis+addi pair materializing the base address that entries
// are relative to, then the table load (lhzx/lbzx) indexed by the switch
// value, then the lis+addi pair materializing the table's own address.
// For byte tables an rlwinm between the load and the add scales each
// loaded entry by 4; for halfword tables an rlwinm before the load doubles
// the switch index, and its source register is taken as the true index
// register. Bounds recovery runs a third, independent
// backward search from the table-address computation, since the
// compare-and-branch that guards the switch may sit many instructions
// before any of the address arithmetic.
func findSwitchInfo(data []byte, base uint32, addOffset int) (*SwitchInfo, error) {
	baseAddr, baseSearchEnd, ok := findLisAddiPair(data, addOffset-4, addOffset-48, 12, 12, -24, false)
	if !ok {
		return nil, ErrPatternNotRecognized
	}

	entryType, loadIndexReg, loadOffset, ok := findTableLoad(data, baseSearchEnd-4, baseSearchEnd-48)
	if !ok {
		return nil, ErrPatternNotRecognized
	}

	entryScale := uint32(1)
	if entryType == "u8" {
		for k := loadOffset + 4; k < addOffset; k += 4 {
			insn := ppc.Decode(data, k)
			if insn.IsRlwinmMask(2, 0, 29) {
				rs := (insn.Raw >> 21) & 0x1F
				ra := (insn.Raw >> 16) & 0x1F
				if rs == 0 && ra == 0 {
					entryScale = 4
					break
				}
			}
		}
	}

	tableAddr, tableSearchStart, ok := findLisAddiPair(data, loadOffset-4, loadOffset-48, 12, 12, -40, true)
	if !ok {
		return nil, ErrPatternNotRecognized
	}

	actualIndexReg := loadIndexReg
	if entryType == "u16" {
		for k := loadOffset - 4; k >= tableSearchStart; k -= 4 {
			insn := ppc.Decode(data, k)
			if insn.Opcode == ppc.OpRlwinm {
				rs := (insn.Raw >> 21) & 0x1F
				ra := (insn.Raw >> 16) & 0x1F
				if ra == loadIndexReg && insn.SH == 1 && insn.MB == 0 && insn.ME == 30 {
					actualIndexReg = rs
					break
				}
			}
		}
	}

	tableSize, clrlwiSize := findTableSize(data, tableSearchStart-4, actualIndexReg)
	if tableSize == 0 {
		if clrlwiSize > 0 {
			tableSize = clrlwiSize
		} else {
			tableSize = inferTableSizeFromData(data, base, tableAddr, baseAddr, entryType, entryScale)
		}
	}

	return &SwitchInfo{
		TableAddr:  tableAddr,
		BaseAddr:   baseAddr,
		EntryType:  entryType,
		EntryScale: entryScale,
		IndexReg:   actualIndexReg,
		TableSize:  tableSize,
	}, nil
}

// findLisAddiPair looks backward from start (inclusive, stepping by -4)
// down to floor for "addi rD,rD,SIMM" with rD/rA both equal to reg, then
// continues backward (within a tighter window) for the "lis rD,SIMM" that
// materializes its high half. It returns the combined 32-bit address and
// the file offset of the lis instruction (the "search end" callers resume
// from).
//
// In strict mode any instruction other than a nop ends the search: the
// base-address pair sits hard against the final add, so anything else
// there means the site is not the recognized idiom. The table-address
// pair is looser -- the scheduler interleaves the index rlwinm and other
// work around it -- so in permissive mode unrecognized instructions are
// walked past until the window floor instead of aborting.
func findLisAddiPair(data []byte, start, floor int, rd, ra uint32, innerFloorDelta int, permissive bool) (addr uint32, lisOffset int, ok bool) {
	if floor < 0 {
		floor = 0
	}
	for i := start; i >= floor; i -= 4 {
		insn := ppc.Decode(data, i)
		if insn.Opcode == ppc.OpAddi && insn.RD == rd && insn.RA == ra {
			addiVal := insn.SImm
			j := i - 4
			innerFloor := i + innerFloorDelta
			if innerFloor < 0 {
				innerFloor = 0
			}
			for j >= innerFloor {
				d2 := ppc.Decode(data, j)
				if d2.Opcode == ppc.OpAddis && d2.RD == rd && d2.RA == 0 {
					lisVal := int32(d2.UImm) << 16
					return uint32(lisVal + addiVal), j, true
				}
				if d2.Raw == ppc.NopWord || permissive {
					j -= 4
					continue
				}
				break
			}
			return 0, 0, false
		}
		if insn.Raw == ppc.NopWord || permissive {
			continue
		}
		break
	}
	return 0, 0, false
}

// findTableLoad looks backward for the lhzx/lbzx instruction that reads
// the jump table itself, the load whose address is rA=r12 (the table
// address materialized by the lis/addi pair that precedes it in program
// order).
func findTableLoad(data []byte, start, floor int) (entryType string, indexReg uint32, offset int, ok bool) {
	if floor < 0 {
		floor = 0
	}
	for i := start; i >= floor; i -= 4 {
		insn := ppc.Decode(data, i)
		if insn.Opcode == ppc.OpForm31 {
			switch {
			case insn.XO10 == ppc.XOLhzx && insn.RD == 0 && insn.RA == 12:
				return "u16", insn.RB, i, true
			case insn.XO10 == ppc.XOLbzx && insn.RD == 0 && insn.RA == 12:
				return "u8", insn.RB, i, true
			}
		}
	}
	return "", 0, 0, false
}

// findTableSize looks backward from the table-address computation for a
// bounds check against the index register: either a cmplwi/cmpwi
// immediately followed by a gt/ge conditional branch, or (as a weaker
// fallback) a clrlwi-style rlwinm mask applied to the index register. The
// tightest (first-encountered, closest-to-the-switch) cmplwi bound wins
// outright; a clrlwi mask is kept only as a fallback if no compare is
// ever found.
func findTableSize(data []byte, start int, indexReg uint32) (size int, clrlwiSize int) {
	floor := start - 392 // 99 words back from the table-address lis
	if floor < 0 {
		floor = 0
	}
	for k := start; k >= floor; k -= 4 {
		insn := ppc.Decode(data, k)

		if insn.Opcode == ppc.OpRlwinm {
			rs := (insn.Raw >> 21) & 0x1F
			ra := (insn.Raw >> 16) & 0x1F
			if insn.SH == 0 && insn.ME == 31 && (ra == indexReg || rs == indexReg) {
				if clrlwiSize == 0 {
					clrlwiSize = 1 << (32 - insn.MB)
				}
				continue
			}
		}

		if insn.Opcode == ppc.OpCmplwi && insn.RA == indexReg {
			if cond, ok := ppc.Decode(data, k+4).BranchCondition(); ok {
				switch cond {
				case "gt":
					return int(insn.UImm) + 1, clrlwiSize
				case "ge":
					return int(insn.UImm), clrlwiSize
				}
			}
		}

		if insn.Opcode == ppc.OpCmpwi && insn.RA == indexReg && insn.SImm >= 0 {
			if cond, ok := ppc.Decode(data, k+4).BranchCondition(); ok {
				switch cond {
				case "gt":
					return int(insn.SImm) + 1, clrlwiSize
				case "ge":
					return int(insn.SImm), clrlwiSize
				}
			}
		}
	}
	return 0, clrlwiSize
}

// inferTableSizeFromData is the last-resort fallback when no bounds check
// can be found at all: read table entries until a resolved target falls
// outside the plausible code range or loses 4-byte alignment, on the
// assumption that runoff past the true table quickly produces garbage
// addresses.
func inferTableSizeFromData(data []byte, base, tableAddr, baseAddr uint32, entryType string, scale uint32) int {
	const maxReasonable = 512
	codeLow, codeHigh := base, base+0x300000
	tableOff := int(tableAddr - base)
	size := 0
	for i := 0; i < maxReasonable; i++ {
		var entry uint32
		if entryType == "u16" {
			off := tableOff + i*2
			if off+2 > len(data) {
				break
			}
			entry = uint32(data[off])<<8 | uint32(data[off+1])
		} else {
			off := tableOff + i
			if off+1 > len(data) {
				break
			}
			entry = uint32(data[off])
		}
		target := baseAddr + entry*scale
		if target < codeLow || target >= codeHigh || target&3 != 0 {
			break
		}
		size = i + 1
	}
	if size == 0 {
		size = 1
	}
	return size
}
