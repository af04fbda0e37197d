// Package lzx implements the LZX decompressor used by XEX2's "normal"
// compression scheme: a sliding-window Huffman-coded decoder with
// canonical code construction, pretree-delta length encoding,
// repeated-offset back-references, aligned-offset subblocks, E8 CALL
// translation and frame-synchronised input bitstream realignment.
//
// The decoding algorithm follows the WinCE LZX reference decoder
// (mspack's lzxd), with the stateful-decompressor shape of
// compress/flate: one type holding its window, offset LRU and Huffman
// tables as fields.
package lzx

import (
	"fmt"

	"github.com/sp00nznet/xenonprep/internal/bitstream"
	"github.com/sp00nznet/xenonprep/internal/huffman"
)

// Decoder is a stateful LZX decompressor. It owns its sliding window,
// repeated-offset LRU and Huffman tree state exclusively for the duration
// of one Decompress call; state may be carried across calls by reusing the
// same instance (tree lengths persist for pretree-delta encoding), but a
// Decoder must never be shared across goroutines and must not be reused
// after Decompress returns an error.
type Decoder struct {
	windowBits       uint
	windowSize       int
	windowMask       int
	numPositionSlots int
	mainElements     int

	window    []byte
	windowPos int // linear, non-wrapping; physical index is windowPos & windowMask

	r0, r1, r2 int

	pretree   *huffman.Table
	maintree  *huffman.Table
	lentree   *huffman.Table
	aligntree *huffman.Table

	blockType      int
	blockLength    int
	blockRemaining int

	headerRead    bool
	intelFilesize uint32
	intelCurpos   int64
	intelStarted  bool

	br *bitstream.Reader
}

// New constructs a Decoder for the given window-size exponent
// (15 <= windowBits <= 21).
func New(windowBits uint) (*Decoder, error) {
	if windowBits < MinWindowBits || windowBits > MaxWindowBits {
		return nil, fmt.Errorf("lzx: window_bits must be 15-21, got %d", windowBits)
	}
	slots := numPositionSlots[int(windowBits)]
	d := &Decoder{
		windowBits:       windowBits,
		windowSize:       1 << windowBits,
		windowMask:       (1 << windowBits) - 1,
		numPositionSlots: slots,
		mainElements:     numChars + (slots << 3),
		r0:               1,
		r1:               1,
		r2:               1,
	}
	d.window = make([]byte, d.windowSize)
	for i := range d.window {
		d.window[i] = 0xDC
	}
	d.pretree = huffman.New(pretreeNum, pretreeTableBits, pretreeMaxLen)
	d.maintree = huffman.New(d.mainElements, maintreeTableBits, maintreeMaxLen)
	d.lentree = huffman.New(secondaryNumElements, lentreeTableBits, lentreeMaxLen)
	d.aligntree = huffman.New(aligntreeNumElements, aligntreeTableBits, aligntreeMaxLen)
	return d, nil
}

// Decompress decompresses data (the entire concatenated LZX input stream)
// to exactly outputSize bytes. On a format violation it returns a
// *CorruptStreamError and the Decoder must not be reused.
func (d *Decoder) Decompress(data []byte, outputSize int) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if cerr, ok := r.(*CorruptStreamError); ok {
				err = cerr
				return
			}
			panic(r)
		}
	}()

	d.br = bitstream.New(data)
	output := make([]byte, outputSize)
	outPos := 0
	windowPosn := d.windowPos
	framePosn := 0

	if !d.headerRead {
		if d.br.Read(1) != 0 {
			hi := int(d.br.Read(16))
			lo := int(d.br.Read(16))
			d.intelFilesize = uint32(hi<<16 | lo)
		}
		d.intelStarted = false
		d.headerRead = true
	}

	for outPos < outputSize {
		curFrameSize := frameSize
		if remaining := outputSize - outPos; remaining < curFrameSize {
			curFrameSize = remaining
		}

		bytesTodo := framePosn + curFrameSize - windowPosn
		if bytesTodo < 0 {
			bytesTodo = 0
		}

		for bytesTodo > 0 {
			if d.blockRemaining == 0 {
				d.readBlockHeader()
			}

			thisRun := d.blockRemaining
			if thisRun > bytesTodo {
				thisRun = bytesTodo
			}
			bytesTodo -= thisRun
			d.blockRemaining -= thisRun

			if thisRun <= 0 {
				continue
			}

			if d.blockType == blockTypeUncompressed {
				windowPosn = d.copyUncompressed(windowPosn, thisRun)
			} else {
				windowPosn, thisRun = d.decodeCompressedRun(windowPosn, thisRun)
				if thisRun < 0 {
					d.blockRemaining -= -thisRun
				}
			}
		}

		d.br.AlignToWord()

		wp := framePosn & d.windowMask
		for i := 0; i < curFrameSize; i++ {
			output[outPos] = d.window[wp]
			wp = (wp + 1) & d.windowMask
			outPos++
		}
		framePosn += curFrameSize
	}

	d.windowPos = windowPosn & d.windowMask

	if d.intelStarted && outputSize > 10 {
		e8Decode(output, d.intelCurpos, d.intelFilesize)
	}
	d.intelCurpos += int64(outputSize)

	return output, nil
}

func (d *Decoder) copyUncompressed(windowPosn, thisRun int) int {
	for i := 0; i < thisRun; i++ {
		b, _ := d.br.ReadByte()
		d.window[windowPosn&d.windowMask] = b
		windowPosn++
	}
	return windowPosn
}
