// Package stfs reads the Secure Transacted File System container used to
// distribute Xbox 360 game and downloadable-content packages. A package
// is a single large file: a signed header, a file table describing every
// entry as a 64-byte record, and the entries' data interleaved with
// periodic hash pages that this reader must skip over to find the next
// real data cluster. The cluster-skip arithmetic follows the wxPirs
// block-reading algorithm.
package stfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	fileTableEntrySize = 64
	clusterSize        = 0x1000
	maxFileTableBlocks = 16
	hashClusterStride  = 170
)

// Entry is one record from the package's file table.
type Entry struct {
	Name         string
	IsDir        bool
	IsContiguous bool
	StartBlock   uint32
	BlockCount   uint32
	PathIndex    uint16
	Size         uint32
	Created      uint32 // raw FAT-style timestamp
	Modified     uint32

	// Path is the entry's full slash-separated directory path, resolved
	// from PathIndex against every directory entry preceding it in the
	// table -- mirroring the package's own parent-index convention,
	// where an entry's parent is any earlier row, not necessarily its
	// immediate predecessor.
	Path string
}

// Package is an opened STFS container: its data-region layout and parsed
// file table.
type Package struct {
	r          io.ReaderAt
	dataStart  int64
	hashStride int64
	entries    []Entry
}

// Open parses the header and file table of an STFS package. r must
// support random access across the whole file; size is the file's total
// length, used only to sanity-check the header.
func Open(r io.ReaderAt, size int64) (*Package, error) {
	var magic [4]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		return nil, fmt.Errorf("stfs: reading magic: %w", err)
	}
	switch string(magic[:]) {
	case "LIVE", "PIRS", "CON ":
	default:
		return nil, fmt.Errorf("stfs: not an STFS package (magic %q)", magic)
	}

	if size < 0xD000 {
		return nil, fmt.Errorf("stfs: file too small (%d bytes, need at least 0xD000)", size)
	}

	var pathIndBuf [2]byte
	if _, err := r.ReadAt(pathIndBuf[:], 0xC032); err != nil {
		return nil, fmt.Errorf("stfs: reading path-index probe: %w", err)
	}
	pathInd := binary.BigEndian.Uint16(pathIndBuf[:])

	var dataStart int64
	var hashStride int64
	if pathInd == 0xFFFF {
		dataStart, hashStride = 0xC000, 0x1000
	} else {
		dataStart, hashStride = 0xD000, 0x2000
	}

	ftData := make([]byte, clusterSize*maxFileTableBlocks)
	n, err := r.ReadAt(ftData, dataStart)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("stfs: reading file table: %w", err)
	}
	ftData = ftData[:n]

	entries, err := parseFileTable(ftData)
	if err != nil {
		return nil, err
	}

	return &Package{r: r, dataStart: dataStart, hashStride: hashStride, entries: entries}, nil
}

func parseFileTable(data []byte) ([]Entry, error) {
	// A directory's parent index may reference any earlier row in the
	// table, so paths must be resolved in table order rather than via a
	// separate tree walk.
	paths := map[int]string{0xFFFF: ""}

	var entries []Entry
	for i := 0; (i+1)*fileTableEntrySize <= len(data); i++ {
		rec := data[i*fileTableEntrySize : (i+1)*fileTableEntrySize]
		nameLenFlags := rec[40]
		nameLen := int(nameLenFlags & 0x3F)
		if nameLen == 0 {
			break
		}
		if nameLen > 40 {
			return nil, fmt.Errorf("stfs: file table entry %d has invalid name length %d", i, nameLen)
		}

		e := Entry{
			Name:         string(rec[:nameLen]),
			IsDir:        nameLenFlags&0x80 != 0,
			IsContiguous: nameLenFlags&0x40 != 0,
			BlockCount:   uint32(binary.LittleEndian.Uint16(rec[41:43])) | uint32(rec[43])<<16,
			StartBlock:   uint32(binary.LittleEndian.Uint16(rec[47:49])) | uint32(rec[49])<<16,
			PathIndex:    binary.BigEndian.Uint16(rec[50:52]),
			Size:         binary.BigEndian.Uint32(rec[52:56]),
			Created:      binary.BigEndian.Uint32(rec[56:60]),
			Modified:     binary.BigEndian.Uint32(rec[60:64]),
		}

		if e.IsDir {
			parent := paths[int(e.PathIndex)]
			paths[i] = parent + e.Name + "/"
			e.Path = paths[i]
		} else {
			e.Path = paths[int(e.PathIndex)]
		}

		entries = append(entries, e)
	}
	return entries, nil
}

// Entries returns every file-table record, directories included, in
// on-disk order.
func (p *Package) Entries() []Entry { return p.entries }

// clusterSkip computes the number of hash-page bytes to skip over between
// the package's data-start offset and a given cluster number, ported
// directly from the wxPirs block-reading algorithm: every run of 170
// clusters is preceded by a hash page, and those hash pages are
// themselves organized the same way one level up, recursively.
func clusterSkip(startClust int, stride int64) int64 {
	var skip int64
	c := startClust
	for c >= hashClusterStride {
		c /= hashClusterStride
		skip += int64(c+1) * stride
	}
	return skip
}

// ReadFile returns the full contents of a non-directory entry, walking
// its cluster chain and skipping interleaved hash pages as it goes.
func (p *Package) ReadFile(e Entry) ([]byte, error) {
	if e.IsDir {
		return nil, fmt.Errorf("stfs: %q is a directory", e.Name)
	}
	if e.StartBlock < 1 {
		return nil, fmt.Errorf("stfs: %q has invalid start block %d", e.Name, e.StartBlock)
	}

	out := make([]byte, 0, e.Size)
	remaining := int64(e.Size)
	curClust := int(e.StartBlock)
	adStart := int64(e.StartBlock)*clusterSize + p.dataStart

	for remaining > 0 {
		realStart := adStart + clusterSkip(curClust, p.hashStride)
		want := clusterSize
		if int64(want) > remaining {
			want = int(remaining)
		}
		buf := make([]byte, want)
		if _, err := p.r.ReadAt(buf, realStart); err != nil && err != io.EOF {
			return nil, fmt.Errorf("stfs: reading %q at cluster %d: %w", e.Name, curClust, err)
		}
		out = append(out, buf...)

		curClust++
		adStart += clusterSize
		remaining -= clusterSize
	}

	if int64(len(out)) > int64(e.Size) {
		out = out[:e.Size]
	}
	return out, nil
}
