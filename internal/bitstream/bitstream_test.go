package bitstream

import "testing"

func TestReadMSBFirst(t *testing.T) {
	// Word 0x1234 little-endian on the wire is bytes {0x34, 0x12}, giving
	// bit pattern 0001 0010 0011 0100 when read MSB-first.
	r := New([]byte{0x34, 0x12})
	if got := r.Read(4); got != 0x1 {
		t.Fatalf("first nibble = %#x, want 0x1", got)
	}
	if got := r.Read(4); got != 0x2 {
		t.Fatalf("second nibble = %#x, want 0x2", got)
	}
	if got := r.Read(8); got != 0x34 {
		t.Fatalf("trailing byte = %#x, want 0x34", got)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	r := New([]byte{0x34, 0x12})
	r.Ensure(8)
	a := r.Peek(8)
	b := r.Peek(8)
	if a != b {
		t.Fatalf("peek not idempotent: %#x != %#x", a, b)
	}
	if a != 0x12 {
		t.Fatalf("peeked byte = %#x, want 0x12", a)
	}
	r.Remove(8)
	if got := r.Read(8); got != 0x34 {
		t.Fatalf("read after remove = %#x, want 0x34", got)
	}
}

func TestReadPastEndYieldsZero(t *testing.T) {
	r := New([]byte{0xFF})
	r.Read(8)
	if got := r.Read(16); got != 0 {
		t.Fatalf("read past EOF = %#x, want 0", got)
	}
}

func TestAlignToWord(t *testing.T) {
	r := New([]byte{0x00, 0x00, 0xAB, 0xCD})
	r.Read(3)
	r.AlignToWord()
	if got := r.Read(16); got != 0xCDAB {
		t.Fatalf("post-align word = %#x, want 0xcdab", got)
	}
}

func TestSkipByteAndReset(t *testing.T) {
	r := New([]byte{0x11, 0x22, 0x33})
	r.SkipByte()
	b, err := r.ReadByte()
	if err != nil || b != 0x22 {
		t.Fatalf("ReadByte after SkipByte = %#x, %v; want 0x22, nil", b, err)
	}
	r.Read(4)
	r.Reset()
	if n := r.BitsBuffered(); n != 0 {
		t.Fatalf("BitsBuffered after Reset = %d, want 0", n)
	}
}
