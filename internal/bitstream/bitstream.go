// Package bitstream implements the MSB-first bit reader used by the LZX
// format: bits are withdrawn most-significant-first from a stream of
// little-endian 16-bit words. This packing predates byte-oriented entropy
// coders and is fixed by the wire format.
package bitstream

import "io"

// Reader withdraws bits most-significant-first from an underlying byte
// stream, refilling 16 bits at a time. Reads past the end of the input
// yield zero bits rather than failing; truncation is detected by the
// caller via the output byte count, not by this type.
type Reader struct {
	src []byte
	pos int
	buf uint64 // accumulator; valid bits are the low `n` bits
	n   uint   // number of valid bits currently buffered
}

// New wraps a byte slice for MSB-first bit extraction.
func New(data []byte) *Reader {
	return &Reader{src: data}
}

// Len reports how many input bytes have not yet been consumed into the
// accumulator (not the same as how many bits remain buffered).
func (r *Reader) Len() int { return len(r.src) - r.pos }

// ByteOffset reports the byte cursor into the underlying stream, i.e. how
// many input bytes have been folded into the accumulator so far.
func (r *Reader) ByteOffset() int { return r.pos }

// refill appends the next little-endian 16-bit word to the low end of the
// accumulator, or a zero word past end of input.
func (r *Reader) refill() {
	var lo, hi byte
	if r.pos < len(r.src) {
		lo = r.src[r.pos]
		r.pos++
	}
	if r.pos < len(r.src) {
		hi = r.src[r.pos]
		r.pos++
	}
	word := uint64(hi)<<8 | uint64(lo)
	r.buf = r.buf<<16 | word
	r.n += 16
}

// Ensure guarantees at least n buffered bits (0 <= n <= 17).
func (r *Reader) Ensure(n uint) {
	for r.n < n {
		r.refill()
	}
}

// Peek returns the next n bits without consuming them.
func (r *Reader) Peek(n uint) uint32 {
	if n == 0 {
		return 0
	}
	return uint32((r.buf >> (r.n - n)) & ((1 << n) - 1))
}

// Remove consumes n previously-ensured bits.
func (r *Reader) Remove(n uint) {
	r.n -= n
	r.buf &= (1 << r.n) - 1
}

// Read returns the next n bits (0 <= n <= 17), consuming them.
func (r *Reader) Read(n uint) uint32 {
	if n == 0 {
		return 0
	}
	r.Ensure(n)
	v := r.Peek(n)
	r.Remove(n)
	return v
}

// BitsBuffered reports how many bits are currently sitting in the
// accumulator, unconsumed.
func (r *Reader) BitsBuffered() uint { return r.n }

// Raw exposes the accumulator's raw bit pattern and valid-bit count, for
// the Huffman tree-tail walk which needs to inspect individual bits below
// the direct-lookup table width.
func (r *Reader) Raw() (buf uint64, n uint) { return r.buf, r.n }

// AlignToWord discards buffered bits until the next 16-bit word boundary,
// i.e. drops (bits buffered mod 16) bits after first ensuring a full word
// is available. Used at every LZX frame boundary.
func (r *Reader) AlignToWord() {
	if r.n > 0 {
		r.Ensure(16)
	}
	if rem := r.n % 16; rem != 0 {
		r.Remove(rem)
	}
}

// Reset drops all buffered bits without touching the byte cursor.
func (r *Reader) Reset() {
	r.buf = 0
	r.n = 0
}

// RewindWord un-reads the most recently fetched 16-bit word from the byte
// cursor (clamped at zero), without touching the bit accumulator. Used by
// LZX's uncompressed-block realignment, which ensures a word is buffered
// and then decides whether that fetch needs to be undone before resuming
// raw byte reads.
func (r *Reader) RewindWord() {
	r.pos -= 2
	if r.pos < 0 {
		r.pos = 0
	}
}

// SkipByte advances the raw byte cursor by one, used to discard an LZX
// uncompressed block's odd-length padding byte.
func (r *Reader) SkipByte() {
	r.pos++
}

// ReadByte implements io.ByteReader by pulling a single raw byte from the
// underlying stream at the current byte cursor, used for uncompressed
// block payloads. It does not interact with the bit accumulator.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.src) {
		return 0, io.EOF
	}
	b := r.src[r.pos]
	r.pos++
	return b, nil
}
