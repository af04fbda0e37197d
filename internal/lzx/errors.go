package lzx

import "fmt"

// CorruptStreamError reports a format violation detected partway through
// decompression, together with the compressed-input byte offset at which
// it was detected. Per the decoder's error handling design, the Decoder
// instance must not be reused after one of these is returned: the window
// and tree state are left unspecified.
type CorruptStreamError struct {
	Offset int
	Reason string
}

func (e *CorruptStreamError) Error() string {
	return fmt.Sprintf("lzx: corrupt stream at offset %d: %s", e.Offset, e.Reason)
}

func (d *Decoder) fail(reason string) {
	panic(&CorruptStreamError{Offset: d.br.ByteOffset(), Reason: reason})
}
