package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Cell is a value-type view of a single B-Tree cell. Which fields are
// meaningful depends on Type:
//
//   - TableInternal: Child, Key.
//   - TableLeaf: Key, Payload.
//   - IndexInternal: Child, Key (index key), PK (primary key).
//   - IndexLeaf: Key (index key), PK (primary key).
//
// A Cell decoded from a page aliases Payload into that page's buffer;
// callers that need the bytes to outlive the page's pin must copy them.
type Cell struct {
	Type    NodeType
	Child   uint32
	Key     uint32
	PK      uint32
	Payload []byte
}

// size returns the number of bytes c occupies on disk.
func (c Cell) size() int {
	switch c.Type {
	case TableInternal:
		return 4 + varint32Size(c.Key)
	case TableLeaf:
		return varint32Size(uint32(len(c.Payload))) + varint32Size(c.Key) + len(c.Payload)
	case IndexInternal:
		return 4 + 4 + 4 + 4
	case IndexLeaf:
		return 4 + 4 + 4
	default:
		panic(fmt.Sprintf("btree: unknown cell type %v", c.Type))
	}
}

// encode serializes c in its on-disk form.
func (c Cell) encode() []byte {
	buf := &bytes.Buffer{}

	switch c.Type {
	case TableInternal:
		var child [4]byte
		binary.BigEndian.PutUint32(child[:], c.Child)
		buf.Write(child[:])
		_, _ = putVarint32(buf, c.Key)
	case TableLeaf:
		_, _ = putVarint32(buf, uint32(len(c.Payload)))
		_, _ = putVarint32(buf, c.Key)
		buf.Write(c.Payload)
	case IndexInternal:
		var child [4]byte
		binary.BigEndian.PutUint32(child[:], c.Child)
		buf.Write(child[:])
		buf.Write(indexCellMagic[:])
		var idxKey, pk [4]byte
		binary.BigEndian.PutUint32(idxKey[:], c.Key)
		binary.BigEndian.PutUint32(pk[:], c.PK)
		buf.Write(idxKey[:])
		buf.Write(pk[:])
	case IndexLeaf:
		buf.Write(indexCellMagic[:])
		var idxKey, pk [4]byte
		binary.BigEndian.PutUint32(idxKey[:], c.Key)
		binary.BigEndian.PutUint32(pk[:], c.PK)
		buf.Write(idxKey[:])
		buf.Write(pk[:])
	default:
		panic(fmt.Sprintf("btree: unknown cell type %v", c.Type))
	}

	return buf.Bytes()
}

// decodeCell parses a cell of the given type starting at data[0]. The
// returned Cell's Payload (if any) aliases data.
func decodeCell(t NodeType, data []byte) (Cell, error) {
	r := bytes.NewReader(data)

	switch t {
	case TableInternal:
		var childBuf [4]byte
		if _, err := r.Read(childBuf[:]); err != nil {
			return Cell{}, fmt.Errorf("btree: decode table-internal cell: %w", err)
		}
		key, _, err := getVarint32(r)
		if err != nil {
			return Cell{}, fmt.Errorf("btree: decode table-internal cell: %w", err)
		}
		return Cell{Type: t, Child: binary.BigEndian.Uint32(childBuf[:]), Key: key}, nil

	case TableLeaf:
		size, _, err := getVarint32(r)
		if err != nil {
			return Cell{}, fmt.Errorf("btree: decode table-leaf cell: %w", err)
		}
		key, n1, err := getVarint32(r)
		if err != nil {
			return Cell{}, fmt.Errorf("btree: decode table-leaf cell: %w", err)
		}
		payloadStart := len(data) - r.Len()
		_ = n1
		if payloadStart+int(size) > len(data) {
			return Cell{}, fmt.Errorf("btree: table-leaf payload overruns page")
		}
		payload := data[payloadStart : payloadStart+int(size)]
		return Cell{Type: t, Key: key, Payload: payload}, nil

	case IndexInternal:
		if len(data) < 16 {
			return Cell{}, fmt.Errorf("btree: short index-internal cell")
		}
		child := binary.BigEndian.Uint32(data[0:4])
		idxKey := binary.BigEndian.Uint32(data[8:12])
		pk := binary.BigEndian.Uint32(data[12:16])
		return Cell{Type: t, Child: child, Key: idxKey, PK: pk}, nil

	case IndexLeaf:
		if len(data) < 12 {
			return Cell{}, fmt.Errorf("btree: short index-leaf cell")
		}
		idxKey := binary.BigEndian.Uint32(data[4:8])
		pk := binary.BigEndian.Uint32(data[8:12])
		return Cell{Type: t, Key: idxKey, PK: pk}, nil

	default:
		return Cell{}, fmt.Errorf("btree: unknown cell type %v", t)
	}
}

// less reports whether c sorts before other within the same node,
// using the index key with the primary key as tiebreak for index
// cells (invariant 2).
func (c Cell) less(other Cell) bool {
	if c.Key != other.Key {
		return c.Key < other.Key
	}
	return c.PK < other.PK
}
