// Package ppc decodes the fixed-width, big-endian PowerPC instruction
// encoding used by Xbox 360 executables, exposing exactly the field
// extractions that switchrecover's pattern matcher and backward data-flow
// walk need (opcode, register operands, rotate-field triples, the extended
// 10-bit opcode for form-31 instructions, and sign/zero-extended
// immediates). It does not attempt full disassembly: PowerPC's
// instruction set is large, and only a handful of forms appear in the
// compiler-emitted dispatch sequences this toolchain recovers.
package ppc

import "encoding/binary"

// Instruction is every field a caller might need, extracted eagerly since
// the fields overlap across instruction forms and decoding is cheap
// relative to a single field lookup.
type Instruction struct {
	Raw uint32

	Opcode uint32 // bits 31-26
	RD     uint32 // bits 25-21 (also RS for stores and mtspr forms)
	RA     uint32 // bits 20-16
	RB     uint32 // bits 15-11
	SH     uint32 // bits 15-11 (rlwinm shift amount, same field as RB)
	MB     uint32 // bits 10-6  (rlwinm mask begin)
	ME     uint32 // bits 5-1   (rlwinm mask end)
	XO10   uint32 // bits 10-1  (extended opcode for form-31 instructions)

	SImm int32  // bits 15-0, sign-extended
	UImm uint32 // bits 15-0, zero-extended
}

// Decode extracts the instruction word at offset in data (big-endian, as
// every PowerPC word is on this platform).
func Decode(data []byte, offset int) Instruction {
	raw := binary.BigEndian.Uint32(data[offset : offset+4])
	uimm := raw & 0xFFFF
	return Instruction{
		Raw:    raw,
		Opcode: (raw >> 26) & 0x3F,
		RD:     (raw >> 21) & 0x1F,
		RA:     (raw >> 16) & 0x1F,
		RB:     (raw >> 11) & 0x1F,
		SH:     (raw >> 11) & 0x1F,
		MB:     (raw >> 6) & 0x1F,
		ME:     (raw >> 1) & 0x1F,
		XO10:   (raw >> 1) & 0x3FF,
		SImm:   SignExtend16(uint16(uimm)),
		UImm:   uimm,
	}
}

// SignExtend16 sign-extends a 16-bit immediate to 32 bits, as PowerPC's
// addi/addic/cmpwi forms require.
func SignExtend16(v uint16) int32 {
	return int32(int16(v))
}

// Opcode values for the handful of primary forms switchrecover cares
// about. Names follow the PowerPC ISA mnemonics, not any particular
// compiler's internal naming.
const (
	OpAddi   = 14 // also addi r12,r12,SIMM / table-address low half
	OpAddis  = 15 // lis is addis rD,0,SIMM -- table-address high half
	OpCmplwi = 10 // unsigned compare immediate
	OpCmpwi  = 11 // signed compare immediate
	OpRlwinm = 21 // rotate-left-word-immediate-then-AND-mask
	OpBC     = 16 // conditional branch to immediate target
	OpForm31 = 31 // extended-opcode form: indexed loads, add, mtspr, etc.
	OpForm19 = 19 // branch-to-LR/CTR form (bclr is XO 16 within this form)
)

// Extended opcodes: the form-31 table-load instructions and the form-19
// bclr branch.
const (
	XOLhzx = 279 // lhzx rD,rA,rB -- zero-extended halfword indexed load
	XOLbzx = 87  // lbzx rD,rA,rB -- zero-extended byte indexed load
	XOBclr = 16  // bclr -- conditional branch to link register (form 19)
)

// NopWord is the canonical PowerPC no-op encoding, ori r0,r0,0.
const NopWord = 0x60000000

// IsRlwinmMask reports whether insn is rlwinm rA,rS,sh,mb,me with the exact
// shift and mask bounds given, regardless of source/destination registers
// -- used to recognize a fixed scaling or masking idiom independent of
// which registers the compiler happened to allocate.
func (i Instruction) IsRlwinmMask(sh, mb, me uint32) bool {
	return i.Opcode == OpRlwinm && i.SH == sh && i.MB == mb && i.ME == me
}

// BranchCondition classifies a conditional branch (bc, or bclr within form
// 19) as a greater-than or greater-or-equal test, the only two this
// toolchain's bounds-check recognizer needs. It reports ok=false for any
// other condition or instruction form.
func (i Instruction) BranchCondition() (cond string, ok bool) {
	bo := (i.Raw >> 21) & 0x1F
	bi := (i.Raw >> 16) & 0x1F
	biCond := bi & 3 // 0=lt, 1=gt, 2=eq

	isBranchForm := i.Opcode == OpBC || (i.Opcode == OpForm19 && i.XO10 == XOBclr)
	if !isBranchForm {
		return "", false
	}
	switch {
	case biCond == 1 && bo&0x0C == 0x0C:
		return "gt", true
	case biCond == 0 && bo&0x0C == 0x04:
		return "ge", true
	default:
		return "", false
	}
}
