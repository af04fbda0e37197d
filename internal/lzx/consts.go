package lzx

// Constants mirror the LZX format definition used by Microsoft Cabinet
// files and Xbox 360 XEX2 executables, as fixed by the WinCE reference
// decoder.
const (
	numChars             = 256
	minMatch             = 2
	numPrimaryLengths    = 7
	secondaryNumElements = 249

	pretreeNum       = 20
	pretreeTableBits = 6
	pretreeMaxLen    = 16

	maintreeTableBits = 11
	maintreeMaxLen    = 16

	lentreeTableBits = 10
	lentreeMaxLen    = 16

	aligntreeNumElements = 8
	aligntreeTableBits   = 7
	aligntreeMaxLen      = 8

	blockTypeVerbatim     = 1
	blockTypeAligned      = 2
	blockTypeUncompressed = 3

	// frameSize is the fixed 32 KiB output unit at which the input
	// bitstream is forcibly realigned to a 16-bit boundary.
	frameSize = 32 * 1024

	e8FilesizeLimit = 0x40000000
)

// MinWindowBits and MaxWindowBits bound the valid window-size exponent.
const (
	MinWindowBits = 15
	MaxWindowBits = 21
)

var numPositionSlots = map[int]int{
	15: 30, 16: 32, 17: 34, 18: 36, 19: 38, 20: 42, 21: 50,
}

var positionBase = [...]int{
	0, 1, 2, 3, 4, 6, 8, 12, 16, 24, 32, 48, 64, 96, 128, 192,
	256, 384, 512, 768, 1024, 1536, 2048, 3072, 4096, 6144, 8192,
	12288, 16384, 24576, 32768, 49152, 65536, 98304, 131072, 196608,
	262144, 393216, 524288, 655360, 786432, 917504, 1048576, 1179648,
	1310720, 1441792, 1572864, 1703936, 1835008, 1966080, 2097152,
}

var extraBits = [...]uint{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13, 14, 14,
	15, 15, 16, 16, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17, 17,
	17, 17, 17, 17,
}
