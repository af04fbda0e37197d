package lzx

import "testing"

func TestE8DecodeConvertsAbsoluteToRelative(t *testing.T) {
	// CALL opcode at output offset 5, global position curpos=0, so
	// pos==5. Absolute target 100 (within filesize 1000) becomes
	// relative = 100 - pos = 95.
	data := make([]byte, 20)
	data[5] = 0xE8
	data[6], data[7], data[8], data[9] = 100, 0, 0, 0

	e8Decode(data, 0, 1000)

	got := int32(data[6]) | int32(data[7])<<8 | int32(data[8])<<16 | int32(data[9])<<24
	if got != 95 {
		t.Fatalf("relative offset = %d, want 95", got)
	}
}

func TestE8DecodeIgnoresOutOfRangeTargets(t *testing.T) {
	data := make([]byte, 20)
	data[5] = 0xE8
	// Absolute target far beyond filesize must be left untouched: it is
	// almost certainly a coincidental 0xE8 literal byte, not a real CALL.
	data[6], data[7], data[8], data[9] = 0, 0, 0, 0x7F

	orig := append([]byte(nil), data...)
	e8Decode(data, 0, 1000)

	for i := 6; i <= 9; i++ {
		if data[i] != orig[i] {
			t.Fatalf("byte %d modified: got %#x, want %#x", i, data[i], orig[i])
		}
	}
}

func TestE8DecodeRespectsCurposCeiling(t *testing.T) {
	// Once the running output position reaches 0x40000000, translation
	// stops entirely even for an otherwise-plausible CALL.
	data := make([]byte, 20)
	data[5] = 0xE8
	data[6], data[7], data[8], data[9] = 100, 0, 0, 0

	orig := append([]byte(nil), data...)
	e8Decode(data, 0x40000000, 1000)

	for i := range data {
		if data[i] != orig[i] {
			t.Fatalf("byte %d modified despite curpos ceiling", i)
		}
	}
}

func TestE8DecodeSkipsShortBuffers(t *testing.T) {
	data := []byte{0xE8, 1, 2, 3}
	orig := append([]byte(nil), data...)
	e8Decode(data, 0, 1000)
	for i := range data {
		if data[i] != orig[i] {
			t.Fatalf("short buffer modified at %d", i)
		}
	}
}
