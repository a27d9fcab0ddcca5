package pager

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of the file header at the start of page 1.
const HeaderSize = 100

// DefaultPageSize is used when a database file is created without an
// explicit page size.
const DefaultPageSize = 1024

const magic = "SQLite format 3\000"

// schemaFormat, pageCacheSize, textEncoding are bit-exact constants
// validated on every open; a mismatch in any of them means the file was
// not produced by this package (or is corrupt).
const (
	schemaFormat  = 4
	pageCacheSize = 0x4E20 // 20000, per the file-header contract
	textEncoding  = 1      // UTF-8
)

var validPageSizes = map[uint16]bool{
	512: true, 1024: true, 2048: true, 4096: true,
	8192: true, 16384: true, 32768: true,
}

// ValidPageSize reports whether size is one of the page sizes this
// package will create or open a database with.
func ValidPageSize(size uint16) bool {
	return validPageSizes[size]
}

// Header is the parsed form of the 100-byte file header on page 1.
type Header struct {
	PageSize          uint16
	FileChangeCounter uint32
	SchemaVersion     uint32
	SizeInPages       uint32
}

func newHeader(pageSize uint16) Header {
	return Header{
		PageSize:    pageSize,
		SizeInPages: 1,
	}
}

// encode renders h as the 100-byte on-disk header. All multi-byte
// integers are big-endian, matching the rest of the on-disk format.
func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf, magic)

	binary.BigEndian.PutUint16(buf[16:18], h.PageSize)

	// Six bytes of fixed constants: write version, read version,
	// reserved space, max/min/leaf payload fractions.
	buf[18] = 1
	buf[19] = 1
	buf[20] = 0
	buf[21] = 64
	buf[22] = 32
	buf[23] = 32

	binary.BigEndian.PutUint32(buf[24:28], h.FileChangeCounter)
	binary.BigEndian.PutUint32(buf[28:32], h.SizeInPages)
	binary.BigEndian.PutUint32(buf[32:36], 0) // freelist trunk page
	binary.BigEndian.PutUint32(buf[36:40], 0) // freelist page count
	binary.BigEndian.PutUint32(buf[40:44], h.SchemaVersion)
	binary.BigEndian.PutUint32(buf[44:48], schemaFormat)
	binary.BigEndian.PutUint32(buf[48:52], pageCacheSize)
	binary.BigEndian.PutUint32(buf[52:56], 0) // largest root b-tree page (no auto-vacuum)
	binary.BigEndian.PutUint32(buf[56:60], textEncoding)
	binary.BigEndian.PutUint32(buf[60:64], 0) // user cookie
	binary.BigEndian.PutUint32(buf[64:68], 0) // incremental vacuum mode
	// bytes 68-91 are reserved and stay zero.
	binary.BigEndian.PutUint32(buf[92:96], 1)
	binary.BigEndian.PutUint32(buf[96:100], 3027002)

	return buf
}

// decodeHeader parses and validates a 100-byte header buffer, returning
// ErrCorruptHeader on any constant-slot mismatch in bytes 0-91. The two
// words at 92-99 are written by encode but not checked.
func decodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("pager: short header (%d bytes): %w", len(buf), ErrCorruptHeader)
	}

	if string(buf[0:16]) != magic {
		return Header{}, fmt.Errorf("pager: bad magic: %w", ErrCorruptHeader)
	}

	constants := [6]byte{1, 1, 0, 64, 32, 32}
	for i, want := range constants {
		if buf[18+i] != want {
			return Header{}, fmt.Errorf("pager: constant byte %d: %w", 18+i, ErrCorruptHeader)
		}
	}

	if zero := binary.BigEndian.Uint32(buf[32:36]); zero != 0 {
		return Header{}, fmt.Errorf("pager: freelist trunk page: %w", ErrCorruptHeader)
	}
	if zero := binary.BigEndian.Uint32(buf[36:40]); zero != 0 {
		return Header{}, fmt.Errorf("pager: freelist page count: %w", ErrCorruptHeader)
	}
	if format := binary.BigEndian.Uint32(buf[44:48]); format != schemaFormat {
		return Header{}, fmt.Errorf("pager: schema format %d: %w", format, ErrCorruptHeader)
	}
	if cache := binary.BigEndian.Uint32(buf[48:52]); cache != pageCacheSize {
		return Header{}, fmt.Errorf("pager: page cache size %d: %w", cache, ErrCorruptHeader)
	}
	if zero := binary.BigEndian.Uint32(buf[52:56]); zero != 0 {
		return Header{}, fmt.Errorf("pager: vacuum root page: %w", ErrCorruptHeader)
	}
	if enc := binary.BigEndian.Uint32(buf[56:60]); enc != textEncoding {
		return Header{}, fmt.Errorf("pager: text encoding %d: %w", enc, ErrCorruptHeader)
	}
	if zero := binary.BigEndian.Uint32(buf[64:68]); zero != 0 {
		return Header{}, fmt.Errorf("pager: incremental vacuum mode: %w", ErrCorruptHeader)
	}
	for _, b := range buf[68:92] {
		if b != 0 {
			return Header{}, fmt.Errorf("pager: reserved header bytes: %w", ErrCorruptHeader)
		}
	}

	pageSize := binary.BigEndian.Uint16(buf[16:18])
	if !ValidPageSize(pageSize) {
		return Header{}, fmt.Errorf("pager: page size %d: %w", pageSize, ErrCorruptHeader)
	}

	return Header{
		PageSize:          pageSize,
		FileChangeCounter: binary.BigEndian.Uint32(buf[24:28]),
		SizeInPages:       binary.BigEndian.Uint32(buf[28:32]),
		SchemaVersion:     binary.BigEndian.Uint32(buf[40:44]),
	}, nil
}
