package xex2

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// retailKey is Microsoft's published Xbox 360 retail XEX2 AES key, used to
// unwrap a title's per-file encryption key. It is not a secret: it has
// been public since the console's early homebrew era and every XEX2
// parser, official or otherwise, embeds the same sixteen bytes.
var retailKey = [16]byte{
	0x20, 0xB1, 0x85, 0xA5, 0x9D, 0x28, 0xFD, 0xC3,
	0x40, 0x58, 0x3F, 0xBB, 0x08, 0x96, 0xBF, 0x91,
}

var blankIV = make([]byte, 16)

// UnwrapFileKey decrypts the security header's encrypted file key under
// the retail key, AES-CBC with a zero IV -- the only mode XEX2 uses for
// key wrapping, so there is no key-unwrap algorithm negotiation to do.
//
// crypto/aes and crypto/cipher are the standard library's AES-CBC
// primitives; no third-party AES implementation appears anywhere in the
// retrieved example corpus, so this is the one deliberate standard
// library dependency in this package.
func UnwrapFileKey(encryptedKey [16]byte) ([16]byte, error) {
	block, err := aes.NewCipher(retailKey[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("xex2: building key-unwrap cipher: %w", err)
	}
	var out [16]byte
	cipher.NewCBCDecrypter(block, blankIV).CryptBlocks(out[:], encryptedKey[:])
	return out, nil
}

// DecryptImage decrypts raw (the bytes at Header.PEDataOffset onward)
// under fileKey, AES-CBC with a zero IV, after padding raw up to a whole
// number of blocks. It returns exactly len(raw) rounded up to 16 bytes;
// the caller trims to whatever length the compression layer determines.
func DecryptImage(raw []byte, fileKey [16]byte) ([]byte, error) {
	block, err := aes.NewCipher(fileKey[:])
	if err != nil {
		return nil, fmt.Errorf("xex2: building image cipher: %w", err)
	}

	padded := raw
	if rem := len(raw) % 16; rem != 0 {
		padded = make([]byte, len(raw)+(16-rem))
		copy(padded, raw)
	}

	out := make([]byte, len(padded))
	cipher.NewCBCDecrypter(block, blankIV).CryptBlocks(out, padded)
	return out, nil
}
