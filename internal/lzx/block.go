package lzx

// readBlockHeader parses the next block header from the input bitstream:
// the 3-bit block type, the 24-bit block length, and (depending on type)
// either a fresh Huffman tree description or the three raw repeated-offset
// words that begin an uncompressed block. blockRemaining is left set to
// the freshly-read block length.
func (d *Decoder) readBlockHeader() {
	if d.blockType == blockTypeUncompressed {
		// Uncompressed blocks are padded to an even length and read
		// raw bytes directly from the byte cursor, bypassing the bit
		// accumulator entirely; undo that here before resuming
		// bit-oriented reads for the next header.
		if d.blockLength&1 == 1 {
			d.br.SkipByte()
		}
		d.br.Reset()
	}

	d.blockType = int(d.br.Read(3))

	length := int(d.br.Read(8))<<16 | int(d.br.Read(8))<<8 | int(d.br.Read(8))
	d.blockLength = length
	d.blockRemaining = length

	switch d.blockType {
	case blockTypeAligned:
		alignLens := d.aligntree.Lengths()
		for i := range alignLens {
			alignLens[i] = uint8(d.br.Read(3))
		}
		if err := d.aligntree.Build(); err != nil {
			d.fail("aligned tree: " + err.Error())
		}
		fallthrough
	case blockTypeVerbatim:
		d.readLengths(d.maintree, 0, numChars)
		d.readLengths(d.maintree, numChars, d.mainElements)
		if err := d.maintree.Build(); err != nil {
			d.fail("main tree: " + err.Error())
		}
		if d.maintree.Lengths()[0xE8] != 0 {
			d.intelStarted = true
		}
		d.readLengths(d.lentree, 0, secondaryNumElements)
		if err := d.lentree.Build(); err != nil {
			d.fail("length tree: " + err.Error())
		}

	case blockTypeUncompressed:
		d.intelStarted = true
		d.br.Ensure(16)
		if _, n := d.br.Raw(); n > 16 {
			d.br.RewindWord()
		}
		d.br.Reset()
		d.r0 = d.readRawUint32LE()
		d.r1 = d.readRawUint32LE()
		d.r2 = d.readRawUint32LE()

	default:
		d.fail("illegal block type")
	}
}

func (d *Decoder) readRawUint32LE() int {
	var v uint32
	for i := uint(0); i < 4; i++ {
		b, _ := d.br.ReadByte()
		v |= uint32(b) << (8 * i)
	}
	return int(v)
}

// decodeCompressedRun decodes main-tree symbols (literals and matches)
// until at least thisRun bytes have been produced. A match's length is
// never truncated to fit the requested run, so the returned thisRun may be
// negative; the caller charges the overshoot against blockRemaining.
func (d *Decoder) decodeCompressedRun(windowPosn, thisRun int) (int, int) {
	for thisRun > 0 {
		sym := d.maintree.Decode(d.br)

		if sym < numChars {
			d.window[windowPosn&d.windowMask] = byte(sym)
			windowPosn++
			thisRun--
			continue
		}

		sym -= numChars
		lengthHeader := sym & 7
		positionSlot := sym >> 3

		var matchLength int
		if lengthHeader == numPrimaryLengths {
			extra := d.lentree.Decode(d.br)
			matchLength = minMatch + numPrimaryLengths + extra
		} else {
			matchLength = minMatch + lengthHeader
		}

		var matchOffset int
		switch positionSlot {
		case 0:
			matchOffset = d.r0
		case 1:
			matchOffset = d.r1
			d.r1 = d.r0
			d.r0 = matchOffset
		case 2:
			matchOffset = d.r2
			d.r2 = d.r0
			d.r0 = matchOffset
		default:
			extra := extraBits[positionSlot]
			base := positionBase[positionSlot]
			var formatted int
			switch {
			case d.blockType == blockTypeAligned && extra >= 3:
				verbatimBits := int(d.br.Read(extra - 3))
				alignedBits := d.aligntree.Decode(d.br)
				formatted = base + (verbatimBits << 3) + alignedBits
			case extra > 0:
				formatted = base + int(d.br.Read(extra))
			default:
				formatted = base
			}
			matchOffset = formatted - 2
			d.r2 = d.r1
			d.r1 = d.r0
			d.r0 = matchOffset
		}

		src := windowPosn - matchOffset
		for i := 0; i < matchLength; i++ {
			d.window[windowPosn&d.windowMask] = d.window[src&d.windowMask]
			windowPosn++
			src++
		}
		thisRun -= matchLength
	}
	return windowPosn, thisRun
}
