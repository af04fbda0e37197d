package huffman

import (
	"testing"

	"github.com/sp00nznet/xenonprep/internal/bitstream"
)

// buildSmallTable constructs a 4-symbol canonical table with lengths
// {1,2,3,3} -- codes "0", "10", "110", "111" -- entirely within the
// direct-lookup table (tableBits == maxLen), so no tree tail is exercised.
func buildSmallTable(t *testing.T) *Table {
	t.Helper()
	tbl := New(4, 3, 3)
	lens := tbl.Lengths()
	lens[0], lens[1], lens[2], lens[3] = 1, 2, 3, 3
	if err := tbl.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tbl
}

func TestDecodeDirectTable(t *testing.T) {
	tbl := buildSmallTable(t)

	// Bit string "0 10 110 111" padded with zero bits to a 16-bit word,
	// packed little-endian as the bitstream package expects.
	r := bitstream.New([]byte{0x80, 0x5B})

	want := []int{0, 1, 2, 3}
	for i, w := range want {
		if got := tbl.Decode(r); got != w {
			t.Fatalf("symbol %d: got %d, want %d", i, got, w)
		}
	}
}

func TestBuildRejectsOversubscribedLengths(t *testing.T) {
	tbl := New(4, 3, 3)
	lens := tbl.Lengths()
	// Four length-1 codes ask for twice the available code space: the
	// table is full after the second symbol and the third one overflows it.
	lens[0], lens[1], lens[2], lens[3] = 1, 1, 1, 1
	if err := tbl.Build(); err != ErrCodeSpaceOverflow {
		t.Fatalf("Build() = %v, want ErrCodeSpaceOverflow", err)
	}
}

func TestBuildAllowsAllZeroLengths(t *testing.T) {
	tbl := New(4, 3, 3)
	if err := tbl.Build(); err != nil {
		t.Fatalf("Build() on empty tree = %v, want nil", err)
	}
}
