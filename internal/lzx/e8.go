package lzx

// e8Decode reverses the E8 CALL-translation preprocessing pass applied by
// the LZX encoder: every x86 CALL instruction's absolute target (written
// during compression to make repeated call patterns byte-identical and so
// compress better) is converted back into the relative displacement the
// CPU actually expects. curpos is the global output offset of output[0];
// filesize is the module size advertised by the stream's optional E8
// header and bounds which absolute targets are considered plausible call
// targets rather than coincidental 0xE8 literal bytes.
func e8Decode(output []byte, curpos int64, filesize uint32) {
	if curpos >= e8FilesizeLimit {
		return
	}
	limit := len(output) - 10
	for i := 0; i < limit; i++ {
		if output[i] != 0xE8 {
			continue
		}
		absOff := int32(output[i+1]) | int32(output[i+2])<<8 |
			int32(output[i+3])<<16 | int32(output[i+4])<<24

		pos := int32(curpos + int64(i))
		if absOff >= -pos && absOff < int32(filesize) {
			var relOff int32
			if absOff >= 0 {
				relOff = absOff - pos
			} else {
				relOff = absOff + int32(filesize)
			}
			output[i+1] = byte(relOff)
			output[i+2] = byte(relOff >> 8)
			output[i+3] = byte(relOff >> 16)
			output[i+4] = byte(relOff >> 24)
		}
		i += 4
	}
}
