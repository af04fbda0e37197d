package lzx

import "github.com/sp00nznet/xenonprep/internal/huffman"

// readLengths refreshes target.Lengths()[first:last) in place, using a
// fresh pretree (20 symbols, 4 bits each) followed by a stream of
// pretree-coded opcodes: a literal delta against the previous length at
// that position, a run of zero-length codes, or a run of one repeated
// delta. This is LZX's standard trick for coding the main and length trees
// compactly block-to-block: only deltas from the previous block's lengths
// are transmitted, so a tree that barely changes costs almost nothing to
// redescribe.
func (d *Decoder) readLengths(target *huffman.Table, first, last int) {
	preLens := d.pretree.Lengths()
	for i := range preLens {
		preLens[i] = uint8(d.br.Read(4))
	}
	if err := d.pretree.Build(); err != nil {
		d.fail("pretree: " + err.Error())
	}

	lens := target.Lengths()
	pos := first
	for pos < last {
		sym := d.pretree.Decode(d.br)
		switch {
		case sym == 17:
			count := int(d.br.Read(4)) + 4
			for ; count > 0 && pos < last; count-- {
				lens[pos] = 0
				pos++
			}
		case sym == 18:
			count := int(d.br.Read(5)) + 20
			for ; count > 0 && pos < last; count-- {
				lens[pos] = 0
				pos++
			}
		case sym == 19:
			count := int(d.br.Read(1)) + 4
			sym2 := d.pretree.Decode(d.br)
			if sym2 > 16 {
				d.fail("pretree run references an illegal delta symbol")
			}
			newLen := uint8((int(lens[pos]) - sym2 + 17) % 17)
			for ; count > 0 && pos < last; count-- {
				lens[pos] = newLen
				pos++
			}
		default:
			newLen := uint8((int(lens[pos]) - sym + 17) % 17)
			lens[pos] = newLen
			pos++
		}
	}
}
