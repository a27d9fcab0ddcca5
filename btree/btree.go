// Package btree implements the paged B-Tree layer: node layout on
// fixed-size pages, the four cell variants, keyed lookup, and
// insertion with top-down preemptive splitting.
package btree

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"chidb/pager"
)

// BTree opens a database file through a pager and provides keyed
// lookup and insertion over any number of B-Trees stored in it, each
// identified by its root page number. Page 1 is always the root of the
// schema table, by convention of the underlying file format; this
// package does not otherwise interpret schema-table contents.
type BTree struct {
	pager *pager.Pager
	log   *logrus.Logger
}

type openOptions struct {
	pagerOpts []pager.Option
	log       *logrus.Logger
}

// Option configures Open.
type Option func(*openOptions)

// WithPageSize sets the page size used when creating a new database
// file. Ignored when opening an existing one.
func WithPageSize(size uint16) Option {
	return func(o *openOptions) {
		o.pagerOpts = append(o.pagerOpts, pager.WithPageSize(size))
	}
}

// WithLogger overrides the default (standard) logrus logger used for
// page/split/insert tracing.
func WithLogger(l *logrus.Logger) Option {
	return func(o *openOptions) {
		o.log = l
		o.pagerOpts = append(o.pagerOpts, pager.WithLogger(l))
	}
}

// Open opens (or creates) the database file at path. A new file is
// initialized with page 1 as an empty table-leaf node, the schema
// table's root.
func Open(path string, opts ...Option) (*BTree, error) {
	o := &openOptions{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}

	p, err := pager.Open(path, o.pagerOpts...)
	if err != nil {
		return nil, err
	}

	bt := &BTree{pager: p, log: o.log}

	if p.PageCount() == 0 {
		root, err := bt.newNode(TableLeaf)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		if err := bt.writeNode(root); err != nil {
			_ = p.Close()
			return nil, err
		}
		bt.releaseNode(root)
	}

	return bt, nil
}

// Close closes the underlying pager.
func (bt *BTree) Close() error {
	return bt.pager.Close()
}

// PageSize returns the page size of the underlying file.
func (bt *BTree) PageSize() int {
	return bt.pager.PageSize()
}

// PageCount returns the number of pages in the underlying file.
func (bt *BTree) PageCount() int {
	return bt.pager.PageCount()
}

// NewEmptyTree allocates a fresh page, initializes it as an empty node
// of type t, and returns its page number as the new B-Tree's root.
func (bt *BTree) NewEmptyTree(t NodeType) (int, error) {
	n, err := bt.newNode(t)
	if err != nil {
		return 0, err
	}
	if err := bt.writeNode(n); err != nil {
		return 0, err
	}
	root := n.Number()
	bt.releaseNode(n)
	return root, nil
}

// LoadNode loads and decodes the node at pageNo, pinning its page. The
// caller must release it through ReleaseNode.
func (bt *BTree) LoadNode(pageNo int) (*Node, error) {
	return bt.loadNode(pageNo)
}

// ReleaseNode releases the pin held by a node obtained from LoadNode.
func (bt *BTree) ReleaseNode(n *Node) {
	bt.releaseNode(n)
}

func (bt *BTree) loadNode(pageNo int) (*Node, error) {
	page, err := bt.pager.ReadPage(pageNo)
	if err != nil {
		return nil, err
	}
	n, err := loadNode(page)
	if err != nil {
		bt.pager.ReleasePage(page)
		return nil, err
	}
	return n, nil
}

func (bt *BTree) newNode(t NodeType) (*Node, error) {
	page, err := bt.pager.AllocatePage()
	if err != nil {
		return nil, err
	}
	return newNode(page, t), nil
}

func (bt *BTree) writeNode(n *Node) error {
	n.writeHeaderBytes()
	return bt.pager.WritePage(n.page)
}

func (bt *BTree) releaseNode(n *Node) {
	bt.pager.ReleasePage(n.page)
}

// Find looks up key in the table B-Tree rooted at rootPage, returning a
// copy of the matching leaf cell's payload. It is read-only: it never
// mutates a page and always releases the nodes it visits.
func (bt *BTree) Find(rootPage int, key uint32) ([]byte, error) {
	pageNo := rootPage

	for {
		node, err := bt.loadNode(pageNo)
		if err != nil {
			return nil, err
		}

		if node.Type == TableLeaf {
			for i := 0; i < int(node.NumCells); i++ {
				c, err := node.GetCell(i)
				if err != nil {
					bt.releaseNode(node)
					return nil, err
				}
				if c.Key == key {
					payload := c.Clone().Payload
					bt.releaseNode(node)
					return payload, nil
				}
				if key < c.Key {
					bt.releaseNode(node)
					return nil, ErrNotFound
				}
			}
			bt.releaseNode(node)
			return nil, ErrNotFound
		}

		if node.Type != TableInternal {
			bt.releaseNode(node)
			return nil, fmt.Errorf("btree: find on %s node: %w", node.Type, ErrNotFound)
		}

		nextPage := int(node.RightPage)
		for i := 0; i < int(node.NumCells); i++ {
			c, err := node.GetCell(i)
			if err != nil {
				bt.releaseNode(node)
				return nil, err
			}
			if key <= c.Key {
				nextPage = int(c.Child)
				break
			}
		}
		bt.releaseNode(node)
		pageNo = nextPage
	}
}

// Insert adds a row with the given key and payload to the table
// B-Tree rooted at rootPage. Returns ErrDuplicate if key already
// exists.
func (bt *BTree) Insert(rootPage int, key uint32, payload []byte) error {
	return bt.insert(rootPage, Cell{Type: TableLeaf, Key: key, Payload: payload})
}

// InsertIndex adds an (index key, primary key) pair to the index
// B-Tree rooted at rootPage. Returns ErrDuplicate if the exact pair
// already exists; distinct primary keys under the same index key are
// permitted (a non-unique index).
func (bt *BTree) InsertIndex(rootPage int, indexKey, primaryKey uint32) error {
	return bt.insert(rootPage, Cell{Type: IndexLeaf, Key: indexKey, PK: primaryKey})
}

// insert is the public entry point described as insert(root_page,
// cell): a top-down, preemptive split policy so no ascending writes
// are required.
func (bt *BTree) insert(rootPage int, cell Cell) error {
	root, err := bt.loadNode(rootPage)
	if err != nil {
		return err
	}

	if !root.fits(cell) {
		if err := bt.handleRootOverflow(root, cell); err != nil {
			bt.releaseNode(root)
			return err
		}
	}

	return bt.insertNonFull(root, cell)
}

// handleRootOverflow implements the root-overflow handling from the
// insertion protocol: the root's contents move to a new sibling, and
// the root is re-initialized in place as an internal node pointing at
// that sibling. The root's page number never changes.
func (bt *BTree) handleRootOverflow(root *Node, cell Cell) error {
	isTable := root.Type.IsTable()

	sibling, err := bt.newNode(root.Type)
	if err != nil {
		return err
	}

	for i := 0; i < int(root.NumCells); i++ {
		c, err := root.GetCell(i)
		if err != nil {
			bt.releaseNode(sibling)
			return err
		}
		if err := sibling.insertCell(i, c.Clone()); err != nil {
			bt.releaseNode(sibling)
			return err
		}
	}
	sibling.RightPage = root.RightPage
	sibling.writeHeaderBytes()
	if err := bt.writeNode(sibling); err != nil {
		bt.releaseNode(sibling)
		return err
	}

	internalType := TableInternal
	if !isTable {
		internalType = IndexInternal
	}

	*root = *newNode(root.page, internalType)
	root.RightPage = uint32(sibling.Number())
	root.writeHeaderBytes()
	if err := bt.writeNode(root); err != nil {
		bt.releaseNode(sibling)
		return err
	}

	bt.log.WithFields(logrus.Fields{"root": root.Number(), "sibling": sibling.Number()}).
		Debug("btree: root overflow, re-initialized as internal node")

	if err := bt.split(root, sibling, 0); err != nil {
		bt.releaseNode(sibling)
		return err
	}

	bt.releaseNode(sibling)
	return nil
}

// insertNonFull descends from node looking for where cell belongs,
// splitting any child that would overflow before descending into it so
// that no ancestor is ever revisited. It is iterative rather than
// recursive so no pinned page is held across a recursive call.
func (bt *BTree) insertNonFull(node *Node, cell Cell) error {
	current := node

	for {
		idx, dup, err := scanInsertionPoint(current, cell)
		if err != nil {
			bt.releaseNode(current)
			return err
		}
		if dup {
			bt.releaseNode(current)
			return ErrDuplicate
		}

		if !current.Type.IsInternal() {
			if err := current.insertCell(idx, cell); err != nil {
				bt.releaseNode(current)
				return err
			}
			if err := bt.writeNode(current); err != nil {
				bt.releaseNode(current)
				return err
			}
			bt.releaseNode(current)
			return nil
		}

		var childPage int
		if idx < int(current.NumCells) {
			c, err := current.GetCell(idx)
			if err != nil {
				bt.releaseNode(current)
				return err
			}
			childPage = int(c.Child)
		} else {
			childPage = int(current.RightPage)
		}

		child, err := bt.loadNode(childPage)
		if err != nil {
			bt.releaseNode(current)
			return err
		}

		if !child.fits(cell) {
			if err := bt.split(current, child, idx); err != nil {
				bt.releaseNode(child)
				bt.releaseNode(current)
				return err
			}
			bt.releaseNode(child)
			continue
		}

		bt.releaseNode(current)
		current = child
	}
}

// scanInsertionPoint returns the smallest index whose cell sorts after
// target (Key, with PK as tiebreak), or current.NumCells if target
// sorts after every existing cell. It reports dup=true and stops early
// if a cell exactly matching target's ordering key already exists —
// this check is identical for leaf and internal nodes so that duplicate
// detection is symmetric regardless of node kind.
func scanInsertionPoint(n *Node, target Cell) (idx int, dup bool, err error) {
	for idx = 0; idx < int(n.NumCells); idx++ {
		c, err := n.GetCell(idx)
		if err != nil {
			return 0, false, err
		}
		if c.Key == target.Key && c.PK == target.PK {
			return idx, true, nil
		}
		if target.less(c) {
			return idx, false, nil
		}
	}
	return idx, false, nil
}

// split splits child into a new left sibling and a trimmed child (its
// upper half), promoting the median cell into parent at parentIdx.
// Apart from the root re-initialization in handleRootOverflow, it is
// the only place a node's cell count shrinks, and it does so by
// rebuilding child from an in-memory slice rather than allocating and
// discarding a scratch page.
func (bt *BTree) split(parent, child *Node, parentIdx int) error {
	median := int(child.NumCells) / 2

	sibling, err := bt.newNode(child.Type)
	if err != nil {
		return err
	}

	for i := 0; i < median; i++ {
		c, err := child.GetCell(i)
		if err != nil {
			bt.releaseNode(sibling)
			return err
		}
		if err := sibling.insertCell(i, c.Clone()); err != nil {
			bt.releaseNode(sibling)
			return err
		}
	}

	medianCell, err := child.GetCell(median)
	if err != nil {
		bt.releaseNode(sibling)
		return err
	}
	medianCell = medianCell.Clone()

	if child.Type == TableLeaf {
		if err := sibling.insertCell(int(sibling.NumCells), medianCell); err != nil {
			bt.releaseNode(sibling)
			return err
		}
	}
	if child.Type.IsInternal() {
		sibling.RightPage = medianCell.Child
		sibling.writeHeaderBytes()
	}
	if err := bt.writeNode(sibling); err != nil {
		bt.releaseNode(sibling)
		return err
	}

	promoted := Cell{Type: parent.Type, Child: uint32(sibling.Number()), Key: medianCell.Key, PK: medianCell.PK}

	var upper []Cell
	for i := median + 1; i < int(child.NumCells); i++ {
		c, err := child.GetCell(i)
		if err != nil {
			bt.releaseNode(sibling)
			return err
		}
		upper = append(upper, c.Clone())
	}
	childRightPage := child.RightPage
	childType := child.Type

	*child = *newNode(child.page, childType)
	for i, c := range upper {
		if err := child.insertCell(i, c); err != nil {
			bt.releaseNode(sibling)
			return err
		}
	}
	if childType.IsInternal() {
		child.RightPage = childRightPage
		child.writeHeaderBytes()
	}
	if err := bt.writeNode(child); err != nil {
		bt.releaseNode(sibling)
		return err
	}

	if err := parent.insertCell(parentIdx, promoted); err != nil {
		bt.releaseNode(sibling)
		return err
	}
	if err := bt.writeNode(parent); err != nil {
		bt.releaseNode(sibling)
		return err
	}

	bt.log.WithFields(logrus.Fields{
		"parent": parent.Number(), "child": child.Number(), "sibling": sibling.Number(),
	}).Debug("btree: split")

	bt.releaseNode(sibling)
	return nil
}
