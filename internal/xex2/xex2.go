// Package xex2 parses Xbox 360 XEX2 executable containers: the optional
// header directory, the encrypted AES file key, and the compressed or
// plain PE image those headers describe. Header layout and key handling
// follow XenonRecomp's XEX loader.
package xex2

import (
	"encoding/binary"
	"fmt"
)

// Compression type values from the file-format-info header.
const (
	CompressionNone  = 0
	CompressionBasic = 1
	CompressionLZX   = 2
	CompressionDelta = 3
)

// Encryption type values from the file-format-info header.
const (
	EncryptionNone   = 0
	EncryptionNormal = 1
)

const secAESKeyOffset = 0x150

// Header holds the container-level fields a loader needs: where the
// (possibly encrypted, possibly compressed) PE image begins, how large it
// is once loaded, and how it is packed.
type Header struct {
	PEDataOffset    uint32
	SecInfoOffset   uint32
	EntryPoint      uint32
	ImageBase       uint32
	ImageSize       uint32
	LoadAddress     uint32
	EncryptionType  uint16
	CompressionType uint16
	WindowBits      uint // only meaningful when CompressionType == CompressionLZX
	EncryptedKey    [16]byte

	ffiOffset uint32
	ffiSize   uint32
}

// ParseHeader reads a XEX2 container's header and optional-header
// directory. It does not touch the PE data itself.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < 24 || string(data[0:4]) != "XEX2" {
		return nil, fmt.Errorf("xex2: not a XEX2 container (magic %q)", safeMagic(data))
	}

	h := &Header{
		PEDataOffset:  binary.BigEndian.Uint32(data[8:12]),
		SecInfoOffset: binary.BigEndian.Uint32(data[16:20]),
	}
	optHeaderCount := binary.BigEndian.Uint32(data[20:24])

	var ffiOffset uint32
	pos := 24
	for i := uint32(0); i < optHeaderCount; i++ {
		if pos+8 > len(data) {
			return nil, fmt.Errorf("xex2: optional header directory runs past end of file")
		}
		hdrID := binary.BigEndian.Uint32(data[pos : pos+4])
		hdrVal := binary.BigEndian.Uint32(data[pos+4 : pos+8])
		keyID := (hdrID >> 8) & 0xFFFFFF

		switch keyID {
		case 0x000003:
			ffiOffset = hdrVal
		case 0x000101:
			h.EntryPoint = hdrVal
		case 0x000102:
			h.ImageBase = hdrVal
		}
		pos += 8
	}

	if ffiOffset == 0 {
		return nil, fmt.Errorf("xex2: file format info header not found")
	}
	if int(ffiOffset)+8 > len(data) {
		return nil, fmt.Errorf("xex2: file format info header runs past end of file")
	}
	h.ffiOffset = ffiOffset
	h.ffiSize = binary.BigEndian.Uint32(data[ffiOffset : ffiOffset+4])
	h.EncryptionType = binary.BigEndian.Uint16(data[ffiOffset+4 : ffiOffset+6])
	h.CompressionType = binary.BigEndian.Uint16(data[ffiOffset+6 : ffiOffset+8])

	if h.CompressionType == CompressionLZX {
		if int(ffiOffset)+12 > len(data) {
			return nil, fmt.Errorf("xex2: normal-compression header runs past end of file")
		}
		windowSize := binary.BigEndian.Uint32(data[ffiOffset+8 : ffiOffset+12])
		h.WindowBits = windowSizeToBits(windowSize)
	}

	secEnd := int(h.SecInfoOffset) + secAESKeyOffset + 16
	if secEnd > len(data) {
		return nil, fmt.Errorf("xex2: security info header runs past end of file")
	}
	h.ImageSize = binary.BigEndian.Uint32(data[h.SecInfoOffset+4 : h.SecInfoOffset+8])
	h.LoadAddress = binary.BigEndian.Uint32(data[h.SecInfoOffset+0x110 : h.SecInfoOffset+0x114])
	copy(h.EncryptedKey[:], data[int(h.SecInfoOffset)+secAESKeyOffset:int(h.SecInfoOffset)+secAESKeyOffset+16])

	return h, nil
}

func safeMagic(data []byte) []byte {
	if len(data) >= 4 {
		return data[0:4]
	}
	return data
}

// windowSizeToBits converts the power-of-two window size stored in the
// file format info header to the window_bits exponent internal/lzx
// expects.
func windowSizeToBits(size uint32) uint {
	bits := uint(0)
	for size > 1 {
		size >>= 1
		bits++
	}
	return bits
}
