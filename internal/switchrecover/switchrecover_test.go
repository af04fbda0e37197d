package switchrecover

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func put(buf []byte, off int, raw uint32) {
	binary.BigEndian.PutUint32(buf[off:off+4], raw)
}

func formAddi(rd, ra uint32, simm int16) uint32 {
	return (14 << 26) | (rd << 21) | (ra << 16) | uint32(uint16(simm))
}

func formLis(rd uint32, uimm uint16) uint32 {
	return (15 << 26) | (rd << 21) | (0 << 16) | uint32(uimm)
}

func formLbzx(rd, ra, rb uint32) uint32 {
	return (31 << 26) | (rd << 21) | (ra << 16) | (rb << 11) | (87 << 1)
}

func formCmplwi(ra uint32, uimm uint16) uint32 {
	return (10 << 26) | (0 << 23) | (ra << 16) | uint32(uimm)
}

func formCmpwi(ra uint32, simm int16) uint32 {
	return (11 << 26) | (0 << 23) | (ra << 16) | uint32(uint16(simm))
}

func formLhzx(rd, ra, rb uint32) uint32 {
	return (31 << 26) | (rd << 21) | (ra << 16) | (rb << 11) | (279 << 1)
}

func formRlwinm(ra, rs, sh, mb, me uint32) uint32 {
	return (21 << 26) | (rs << 21) | (ra << 16) | (sh << 11) | (mb << 6) | (me << 1)
}

// formBgt encodes a conditional branch recognized by ppc.BranchCondition
// as the "greater than" case: BI&3==1 and BO&0x0C==0x0C.
func formBgt() uint32 {
	const bo = 0x0C
	const bi = 1
	return (16 << 26) | (bo << 21) | (bi << 16)
}

// buildSite lays out one complete dispatch idiom in program order: a
// bounds check, the table-address pair, the table load, the base-address
// pair, and the add/mtctr/bctr dispatch itself -- exactly the shape
// findSwitchInfo's backward walk expects, for a u8 table with no post-load
// scaling.
func buildSite(t *testing.T) (data []byte, base uint32, tableAddr, baseAddr uint32) {
	t.Helper()
	base = 0x1000
	tableAddr = 0x1200
	baseAddr = 0x2000

	data = make([]byte, 0x300)
	put(data, 0x00, formCmplwi(3, 2)) // cmplwi r3,2 -- index register r3, bound 2
	put(data, 0x04, formBgt())
	put(data, 0x08, formLis(12, uint16(tableAddr>>16)))
	put(data, 0x0C, formAddi(12, 12, int16(tableAddr&0xFFFF)))
	put(data, 0x10, formLbzx(0, 12, 3))
	put(data, 0x14, formLis(12, uint16(baseAddr>>16)))
	put(data, 0x18, formAddi(12, 12, int16(baseAddr&0xFFFF)))
	put(data, 0x1C, 0x7D8C0214) // add r12,r12,r0
	put(data, 0x20, 0x7D8903A6) // mtctr r12
	put(data, 0x24, 0x4E800420) // bctr

	// table entries at tableAddr (file offset tableAddr-base = 0x200)
	tableOff := int(tableAddr - base)
	data[tableOff+0] = 1
	data[tableOff+1] = 2
	data[tableOff+2] = 3

	return data, base, tableAddr, baseAddr
}

func TestScanRecoversU8Table(t *testing.T) {
	data, base, tableAddr, baseAddr := buildSite(t)

	sites := Scan(data, base, base, base+uint32(len(data)), nil, nil)
	if len(sites) != 1 {
		t.Fatalf("got %d sites, want 1", len(sites))
	}
	s := sites[0]
	if s.Err != nil {
		t.Fatalf("site error: %v", s.Err)
	}
	if s.BctrAddr != base+0x24 {
		t.Errorf("bctr addr = %#x, want %#x", s.BctrAddr, base+0x24)
	}
	if s.Info.TableAddr != tableAddr {
		t.Errorf("table addr = %#x, want %#x", s.Info.TableAddr, tableAddr)
	}
	if s.Info.BaseAddr != baseAddr {
		t.Errorf("base addr = %#x, want %#x", s.Info.BaseAddr, baseAddr)
	}
	if s.Info.EntryType != "u8" {
		t.Errorf("entry type = %q, want u8", s.Info.EntryType)
	}
	if s.Info.EntryScale != 1 {
		t.Errorf("entry scale = %d, want 1", s.Info.EntryScale)
	}
	if s.Info.TableSize != 3 {
		t.Errorf("table size = %d, want 3", s.Info.TableSize)
	}

	wantLabels := []uint32{baseAddr + 1, baseAddr + 2, baseAddr + 3}
	if len(s.Labels) != len(wantLabels) {
		t.Fatalf("got %d labels, want %d", len(s.Labels), len(wantLabels))
	}
	for i, l := range wantLabels {
		if s.Labels[i] != l {
			t.Errorf("label %d = %#x, want %#x", i, s.Labels[i], l)
		}
	}
}

// formMr encodes mr rA,rS (or rA,rS,rS, opcode 31 / XO 444) -- filler the
// table-address search must walk past rather than treat as a mismatch.
func formMr(ra, rs uint32) uint32 {
	return (31 << 26) | (rs << 21) | (ra << 16) | (rs << 11) | (444 << 1)
}

// TestScanWalksPastFillerInTableAddressPair interleaves unrelated
// instructions (register moves the scheduler hoisted) both between the
// table lis/addi pair and between the addi and the load. The base-address
// search stays strict, but the table-address search must walk past
// anything it does not recognize instead of dropping the site.
func TestScanWalksPastFillerInTableAddressPair(t *testing.T) {
	base := uint32(0x1000)
	tableAddr := uint32(0x1200)
	baseAddr := uint32(0x2000)

	data := make([]byte, 0x300)
	put(data, 0x00, formCmplwi(3, 2))
	put(data, 0x04, formBgt())
	put(data, 0x08, formLis(12, uint16(tableAddr>>16)))
	put(data, 0x0C, formMr(11, 3)) // filler inside the lis/addi pair
	put(data, 0x10, formAddi(12, 12, int16(tableAddr&0xFFFF)))
	put(data, 0x14, formMr(10, 4)) // filler between the addi and the load
	put(data, 0x18, formLbzx(0, 12, 3))
	put(data, 0x1C, formLis(12, uint16(baseAddr>>16)))
	put(data, 0x20, formAddi(12, 12, int16(baseAddr&0xFFFF)))
	put(data, 0x24, 0x7D8C0214)
	put(data, 0x28, 0x7D8903A6)
	put(data, 0x2C, 0x4E800420)

	tableOff := int(tableAddr - base)
	data[tableOff+0] = 1
	data[tableOff+1] = 2
	data[tableOff+2] = 3

	sites := Scan(data, base, base, base+uint32(len(data)), nil, nil)
	if len(sites) != 1 {
		t.Fatalf("got %d sites, want 1", len(sites))
	}
	if sites[0].Err != nil {
		t.Fatalf("site error: %v", sites[0].Err)
	}
	info := sites[0].Info
	if info.TableAddr != tableAddr || info.BaseAddr != baseAddr {
		t.Fatalf("addresses wrong: %+v", info)
	}
	if info.IndexReg != 3 || info.TableSize != 3 {
		t.Fatalf("info = %+v, want r3/size3", info)
	}
}

// TestScanRecoversScaledU8Table exercises a byte-entry table whose loaded
// values are scaled by 4 via rlwinm after the load, guarded by an
// unsigned compare-and-bgt bound.
func TestScanRecoversScaledU8Table(t *testing.T) {
	base := uint32(0x1000)
	tableAddr := uint32(0x1200)
	baseAddr := uint32(0x2000)

	data := make([]byte, 0x300)
	put(data, 0x00, formCmplwi(4, 7))
	put(data, 0x04, formBgt())
	put(data, 0x08, formLis(12, uint16(tableAddr>>16)))
	put(data, 0x0C, formAddi(12, 12, int16(tableAddr&0xFFFF)))
	put(data, 0x10, formLbzx(0, 12, 4))
	put(data, 0x14, formRlwinm(0, 0, 2, 0, 29))
	put(data, 0x18, formLis(12, uint16(baseAddr>>16)))
	put(data, 0x1C, formAddi(12, 12, int16(baseAddr&0xFFFF)))
	put(data, 0x20, 0x7D8C0214)
	put(data, 0x24, 0x7D8903A6)
	put(data, 0x28, 0x4E800420)

	tableOff := int(tableAddr - base)
	for i := 0; i < 8; i++ {
		data[tableOff+i] = byte(i)
	}

	sites := Scan(data, base, base, base+uint32(len(data)), nil, nil)
	if len(sites) != 1 || sites[0].Err != nil {
		t.Fatalf("scan failed: %+v", sites)
	}
	info := sites[0].Info
	if info.EntryType != "u8" || info.EntryScale != 4 || info.IndexReg != 4 || info.TableSize != 8 {
		t.Fatalf("info = %+v, want u8/scale4/r4/size8", info)
	}
	for i, l := range sites[0].Labels {
		if want := baseAddr + uint32(i)*4; l != want {
			t.Errorf("label %d = %#x, want %#x", i, l, want)
		}
	}
}

// TestScanRecoversU16Table exercises a halfword-entry table whose index is
// pre-scaled by 2 through r0, so the true switch register is recovered
// from the rlwinm's source operand, with a signed compare bound.
func TestScanRecoversU16Table(t *testing.T) {
	base := uint32(0x1000)
	tableAddr := uint32(0x1200)
	baseAddr := uint32(0x2000)

	data := make([]byte, 0x300)
	put(data, 0x00, formCmpwi(5, 15))
	put(data, 0x04, formBgt())
	put(data, 0x08, formLis(12, uint16(tableAddr>>16)))
	put(data, 0x0C, formAddi(12, 12, int16(tableAddr&0xFFFF)))
	put(data, 0x10, formRlwinm(0, 5, 1, 0, 30))
	put(data, 0x14, formLhzx(0, 12, 0))
	put(data, 0x18, formLis(12, uint16(baseAddr>>16)))
	put(data, 0x1C, formAddi(12, 12, int16(baseAddr&0xFFFF)))
	put(data, 0x20, 0x7D8C0214)
	put(data, 0x24, 0x7D8903A6)
	put(data, 0x28, 0x4E800420)

	tableOff := int(tableAddr - base)
	for i := 0; i < 16; i++ {
		binary.BigEndian.PutUint16(data[tableOff+i*2:tableOff+i*2+2], uint16(i*4))
	}

	sites := Scan(data, base, base, base+uint32(len(data)), nil, nil)
	if len(sites) != 1 || sites[0].Err != nil {
		t.Fatalf("scan failed: %+v", sites)
	}
	info := sites[0].Info
	if info.EntryType != "u16" || info.EntryScale != 1 || info.IndexReg != 5 || info.TableSize != 16 {
		t.Fatalf("info = %+v, want u16/scale1/r5/size16", info)
	}
	for i, l := range sites[0].Labels {
		if want := baseAddr + uint32(i)*4; l != want {
			t.Errorf("label %d = %#x, want %#x", i, l, want)
		}
	}
}

func TestLoadOverridesParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.toml")
	content := `
exclude_bctr = ["0x820D6660", "0x82257B60"]

[[size_override]]
addr = "0x82147BC0"
size = 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ov, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if ov.SizeOverrides[0x82147BC0] != 30 {
		t.Errorf("size override = %d, want 30", ov.SizeOverrides[0x82147BC0])
	}
	if !ov.ExcludeBctrs[0x820D6660] || !ov.ExcludeBctrs[0x82257B60] {
		t.Errorf("exclude set incomplete: %+v", ov.ExcludeBctrs)
	}
}

func TestLoadOverridesMissingFileIsEmpty(t *testing.T) {
	ov, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if len(ov.SizeOverrides) != 0 || len(ov.ExcludeBctrs) != 0 {
		t.Fatalf("expected empty overrides, got %+v", ov)
	}
}

func TestScanHonorsExcludeAndOverride(t *testing.T) {
	data, base, _, _ := buildSite(t)
	bctrAddr := base + 0x24

	excluded := Scan(data, base, base, base+uint32(len(data)), map[uint32]bool{bctrAddr: true}, nil)
	if len(excluded) != 0 {
		t.Fatalf("excluded scan returned %d sites, want 0", len(excluded))
	}

	overridden := Scan(data, base, base, base+uint32(len(data)), nil, map[uint32]int{bctrAddr: 1})
	if len(overridden) != 1 || overridden[0].Info.TableSize != 1 {
		t.Fatalf("size override not honored: %+v", overridden)
	}
}
