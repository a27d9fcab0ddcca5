package btree

import (
	"bytes"
	"fmt"
	"io"
)

// Only 32-bit varints are used for cell keys and leaf payload sizes,
// even though the encoding below would carry a wider value.

// putVarint32 appends the varint encoding of v to w, using 7 bits per
// byte with the high bit as a continuation flag, most-significant group
// first.
func putVarint32(w io.ByteWriter, v uint32) (int, error) {
	// Collect 7-bit groups least-significant first, then emit them in
	// reverse so the high bit marks "more bytes follow" in on-disk
	// (most-significant-group-first) order.
	var groups []byte
	for {
		groups = append(groups, byte(v&0x7f))
		v >>= 7
		if v == 0 {
			break
		}
	}

	for i := len(groups) - 1; i >= 0; i-- {
		b := groups[i]
		if i != 0 {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return 0, err
		}
	}

	return len(groups), nil
}

// getVarint32 reads a 32-bit varint from r, returning the decoded value
// and the number of bytes consumed.
func getVarint32(r io.ByteReader) (uint32, int, error) {
	buf := bytes.Buffer{}
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, buf.Len(), err
		}
		buf.WriteByte(b)
		if b&0x80 == 0 {
			break
		}
		if buf.Len() >= 5 {
			return 0, buf.Len(), fmt.Errorf("btree: varint exceeds 32 bits")
		}
	}

	var x uint32
	for _, b := range buf.Bytes() {
		x = x<<7 | uint32(b&0x7f)
	}

	return x, buf.Len(), nil
}

// varint32Size returns the number of bytes putVarint32 would write for v.
func varint32Size(v uint32) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}
