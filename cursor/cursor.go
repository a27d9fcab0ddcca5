// Package cursor provides ordered, bidirectional iteration over a
// B-Tree's leaf cells, tracking the full root-to-leaf path so a
// traversal can resume in either direction from any position.
package cursor

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"chidb/btree"
)

// State describes a Cursor's position relative to the B-Tree.
type State int

const (
	// Uninitialized cursors have not yet been positioned by Rewind.
	Uninitialized State = iota
	// PositionedOnLeafCell cursors sit on a valid leaf cell, readable
	// through CurrentCell.
	PositionedOnLeafCell
	// Exhausted cursors have moved past the first or last cell.
	Exhausted
)

type trailEntry struct {
	node      *btree.Node
	cellIndex int
}

// Cursor walks the cells of a single B-Tree, in key order, leaf by
// leaf. Unlike a cursor that remembers only its immediate parent, it
// keeps the full trail of pinned ancestors from the root down to the
// current leaf, so it can climb back up and back down again no matter
// how deep the tree is.
type Cursor struct {
	bt       *btree.BTree
	rootPage int
	trail    []trailEntry
	cell     btree.Cell
	state    State
	log      *logrus.Logger
}

type openOptions struct {
	log *logrus.Logger
}

// Option configures New.
type Option func(*openOptions)

// WithLogger overrides the default (standard) logrus logger.
func WithLogger(l *logrus.Logger) Option {
	return func(o *openOptions) {
		o.log = l
	}
}

// New creates a cursor over the B-Tree rooted at rootPage. The cursor
// starts Uninitialized; call Rewind to position it on the first cell.
func New(bt *btree.BTree, rootPage int, opts ...Option) (*Cursor, error) {
	o := &openOptions{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return &Cursor{bt: bt, rootPage: rootPage, log: o.log}, nil
}

// State reports the cursor's current position kind.
func (c *Cursor) State() State {
	return c.state
}

// CurrentCell returns the leaf cell the cursor is positioned on.
func (c *Cursor) CurrentCell() (btree.Cell, error) {
	if c.state != PositionedOnLeafCell {
		return btree.Cell{}, fmt.Errorf("cursor: not positioned on a cell")
	}
	return c.cell, nil
}

// Close releases every node pinned along the cursor's trail.
func (c *Cursor) Close() {
	c.releaseTrail()
}

func (c *Cursor) releaseTrail() {
	for _, e := range c.trail {
		c.bt.ReleaseNode(e.node)
	}
	c.trail = nil
}

func (c *Cursor) top() *trailEntry {
	return &c.trail[len(c.trail)-1]
}

// Rewind positions the cursor on the first cell of the B-Tree (in key
// order). On an empty tree it returns ErrCantMove and leaves the cursor
// Exhausted.
func (c *Cursor) Rewind() error {
	c.releaseTrail()
	c.state = Uninitialized

	root, err := c.bt.LoadNode(c.rootPage)
	if err != nil {
		return err
	}
	c.trail = append(c.trail, trailEntry{node: root, cellIndex: 0})

	err = c.down(true)
	if err == ErrCantMove {
		c.state = Exhausted
	}
	return err
}

// Next advances the cursor to the next cell in key order. It returns
// false (with a nil error) once the cursor moves past the last cell.
func (c *Cursor) Next() (bool, error) {
	return c.move(true)
}

// Prev moves the cursor to the previous cell in key order. It returns
// false (with a nil error) once the cursor moves past the first cell.
func (c *Cursor) Prev() (bool, error) {
	return c.move(false)
}

func (c *Cursor) move(forward bool) (bool, error) {
	if c.state != PositionedOnLeafCell {
		return false, fmt.Errorf("cursor: not positioned on a cell")
	}

	if err := c.step(forward); err != nil {
		if err == ErrCantMove {
			c.state = Exhausted
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// step advances or retreats the trail's tail cell index within the
// current leaf, climbing up through exhausted ancestors as needed.
func (c *Cursor) step(forward bool) error {
	tail := c.top()

	if forward && tail.cellIndex+1 < int(tail.node.NumCells) {
		tail.cellIndex++
		return c.settleLeaf()
	}
	if !forward && tail.cellIndex > 0 {
		tail.cellIndex--
		return c.settleLeaf()
	}

	// The current leaf is exhausted in this direction; pop and climb.
	c.bt.ReleaseNode(tail.node)
	c.trail = c.trail[:len(c.trail)-1]
	return c.up(forward)
}

func (c *Cursor) settleLeaf() error {
	cell, err := c.top().node.GetCell(c.top().cellIndex)
	if err != nil {
		return err
	}
	c.cell = cell.Clone()
	c.state = PositionedOnLeafCell
	return nil
}

// up climbs through exhausted ancestor frames until it finds one with
// a still-unvisited child in the requested direction, then descends
// back down through down.
func (c *Cursor) up(forward bool) error {
	for len(c.trail) > 0 {
		tail := c.top()

		if forward {
			if tail.cellIndex < int(tail.node.NumCells) {
				tail.cellIndex++
				return c.down(forward)
			}
		} else {
			if tail.cellIndex > 0 {
				tail.cellIndex--
				return c.down(forward)
			}
		}

		c.bt.ReleaseNode(tail.node)
		c.trail = c.trail[:len(c.trail)-1]
	}

	return ErrCantMove
}

// down descends from the current trail tail to a leaf, always
// following the directionally-first child at each internal node, and
// settles the cursor on a leaf cell.
func (c *Cursor) down(forward bool) error {
	for {
		tail := c.top()

		if !tail.node.Type.IsInternal() {
			if tail.node.NumCells == 0 {
				c.bt.ReleaseNode(tail.node)
				c.trail = c.trail[:len(c.trail)-1]
				return c.up(forward)
			}
			if forward {
				tail.cellIndex = 0
			} else {
				tail.cellIndex = int(tail.node.NumCells) - 1
			}
			return c.settleLeaf()
		}

		var childPage int
		if tail.cellIndex < int(tail.node.NumCells) {
			cell, err := tail.node.GetCell(tail.cellIndex)
			if err != nil {
				return err
			}
			childPage = int(cell.Child)
		} else {
			childPage = int(tail.node.RightPage)
		}

		child, err := c.bt.LoadNode(childPage)
		if err != nil {
			return err
		}

		startIdx := 0
		if !forward {
			if child.Type.IsInternal() {
				startIdx = int(child.NumCells)
			} else {
				startIdx = int(child.NumCells) - 1
			}
		}
		c.trail = append(c.trail, trailEntry{node: child, cellIndex: startIdx})
	}
}
