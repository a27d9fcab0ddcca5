package btree

import (
	"encoding/binary"
	"fmt"
	"io"

	"chidb/pager"
)

// Node is a B-Tree node materialized from a pinned page. The page
// remains pinned for the lifetime of the Node; callers obtain one
// through BTree.loadNode or BTree.newNode and must release it through
// BTree.releaseNode.
type Node struct {
	page *pager.PinnedPage

	Type        NodeType
	FreeOffset  uint16
	NumCells    uint16
	CellsOffset uint16
	RightPage   uint32
}

// Number is the underlying page number, i.e. this node's identity.
func (n *Node) Number() int {
	return n.page.Number
}

func (n *Node) origin() int {
	return n.page.HeaderOffset()
}

// newNode initializes page as a fresh, empty node of type t. It is the
// realization of "create node" from the node-I/O contract: cell count
// zero, cell-area origin at the end of the page, first-free-byte at the
// start of the (empty) cell-offset array.
func newNode(page *pager.PinnedPage, t NodeType) *Node {
	n := &Node{
		page:        page,
		Type:        t,
		NumCells:    0,
		CellsOffset: uint16(page.PageSize),
		RightPage:   0,
	}
	n.FreeOffset = uint16(n.origin() + headerLen(t))
	n.writeHeaderBytes()
	return n
}

// loadNode parses the node header already present in page's buffer.
func loadNode(page *pager.PinnedPage) (*Node, error) {
	origin := page.HeaderOffset()
	data := page.Data[origin:]

	if len(data) < leafHeaderLen {
		return nil, fmt.Errorf("btree: short node header: %w", ErrCellNo)
	}

	t := NodeType(data[0])
	n := &Node{
		page:        page,
		Type:        t,
		FreeOffset:  binary.BigEndian.Uint16(data[1:3]),
		NumCells:    binary.BigEndian.Uint16(data[3:5]),
		CellsOffset: binary.BigEndian.Uint16(data[5:7]),
	}

	if t.IsInternal() {
		n.RightPage = binary.BigEndian.Uint32(data[8:12])
	}

	return n, nil
}

// writeHeaderBytes serializes the header fields into the page buffer.
// It does not ask the pager to persist the page; callers still need to
// write the node through BTree.writeNode.
func (n *Node) writeHeaderBytes() {
	origin := n.origin()
	h := n.page.Data[origin:]

	h[0] = byte(n.Type)
	binary.BigEndian.PutUint16(h[1:3], n.FreeOffset)
	binary.BigEndian.PutUint16(h[3:5], n.NumCells)
	binary.BigEndian.PutUint16(h[5:7], n.CellsOffset)
	h[7] = 0

	if n.Type.IsInternal() {
		binary.BigEndian.PutUint32(h[8:12], n.RightPage)
	}
}

func (n *Node) cellPointerOffset(i int) int {
	return n.origin() + headerLen(n.Type) + 2*i
}

// GetCell decodes the cell at index i (0-based). The returned cell's
// Payload, if any, aliases the node's pinned page.
func (n *Node) GetCell(i int) (Cell, error) {
	if i < 0 || i >= int(n.NumCells) {
		return Cell{}, fmt.Errorf("btree: cell %d of %d: %w", i, n.NumCells, ErrCellNo)
	}

	ptr := n.cellPointerOffset(i)
	off := binary.BigEndian.Uint16(n.page.Data[ptr : ptr+2])

	return decodeCell(n.Type, n.page.Data[off:])
}

// fits reports whether this node has room for c, reserving the 2 bytes
// the new cell-offset-array entry needs in addition to the cell's own
// on-disk length.
func (n *Node) fits(c Cell) bool {
	pointerAreaEnd := n.cellPointerOffset(int(n.NumCells))
	dataStart := int(n.CellsOffset) - c.size()
	return pointerAreaEnd+2 <= dataStart
}

// insertCell is the single primitive that grows a node: it writes c's
// bytes into the cell-content area, shifts the cell-offset-array suffix
// starting at i up by one slot, and records the new pointer. The caller
// must have already verified fits(c); insertCell does not split.
func (n *Node) insertCell(i int, c Cell) error {
	if i < 0 || i > int(n.NumCells) {
		return fmt.Errorf("btree: insert at %d of %d: %w", i, n.NumCells, ErrCellNo)
	}

	encoded := c.encode()
	n.CellsOffset -= uint16(len(encoded))
	copy(n.page.Data[n.CellsOffset:], encoded)

	// Shift the offset-array suffix [i, NumCells) up by one slot to make
	// room for the new pointer at i.
	for j := int(n.NumCells); j > i; j-- {
		src := n.cellPointerOffset(j - 1)
		dst := n.cellPointerOffset(j)
		copy(n.page.Data[dst:dst+2], n.page.Data[src:src+2])
	}

	ptr := n.cellPointerOffset(i)
	binary.BigEndian.PutUint16(n.page.Data[ptr:ptr+2], n.CellsOffset)

	n.NumCells++
	n.FreeOffset += 2
	n.writeHeaderBytes()

	return nil
}

// Dump writes a human-readable listing of every cell in n to w, for
// debugging. The inspection CLI does not call it.
func (n *Node) Dump(w io.Writer) error {
	fmt.Fprintf(w, "page %d: %s, %d cells", n.Number(), n.Type, n.NumCells)
	if n.Type.IsInternal() {
		fmt.Fprintf(w, ", right=%d", n.RightPage)
	}
	fmt.Fprintln(w)

	for i := 0; i < int(n.NumCells); i++ {
		c, err := n.GetCell(i)
		if err != nil {
			return err
		}
		switch {
		case n.Type.IsInternal() && n.Type.IsTable():
			fmt.Fprintf(w, "  [%d] child=%d key=%d\n", i, c.Child, c.Key)
		case n.Type == TableLeaf:
			fmt.Fprintf(w, "  [%d] key=%d payload=%d bytes\n", i, c.Key, len(c.Payload))
		case n.Type.IsInternal():
			fmt.Fprintf(w, "  [%d] child=%d idx=%d pk=%d\n", i, c.Child, c.Key, c.PK)
		default:
			fmt.Fprintf(w, "  [%d] idx=%d pk=%d\n", i, c.Key, c.PK)
		}
	}

	return nil
}
