package xex2

import "fmt"

// Load parses a complete XEX2 container and returns its fully decrypted,
// decompressed PE image, ready for a static recompiler to consume.
func Load(data []byte) ([]byte, *Header, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, nil, err
	}
	image, err := LoadImage(data, h)
	if err != nil {
		return nil, nil, err
	}
	return image, h, nil
}

// LoadImage decrypts and decompresses the PE image described by an
// already-parsed header, letting callers adjust header fields (the LZX
// window size, for a container whose compression header lies) before the
// expensive work starts.
func LoadImage(data []byte, h *Header) ([]byte, error) {
	if int(h.PEDataOffset) > len(data) {
		return nil, fmt.Errorf("xex2: PE data offset runs past end of file")
	}
	raw := data[h.PEDataOffset:]

	var decrypted []byte
	switch h.EncryptionType {
	case EncryptionNone:
		decrypted = raw
	case EncryptionNormal:
		fileKey, err := UnwrapFileKey(h.EncryptedKey)
		if err != nil {
			return nil, err
		}
		decrypted, err = DecryptImage(raw, fileKey)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("xex2: unsupported encryption type %d", h.EncryptionType)
	}

	switch h.CompressionType {
	case CompressionNone:
		if len(decrypted) < int(h.ImageSize) {
			return nil, fmt.Errorf("xex2: uncompressed image shorter than declared image size")
		}
		return decrypted[:h.ImageSize], nil
	case CompressionBasic:
		return decodeBasic(data, h.ffiOffset, h.ffiSize, decrypted, h.ImageSize)
	case CompressionLZX:
		return decodeLZX(data, h.ffiOffset, h.ffiSize, decrypted, h.ImageSize, h.WindowBits)
	default:
		return nil, fmt.Errorf("xex2: unsupported compression type %d (delta patches are not implemented)", h.CompressionType)
	}
}
