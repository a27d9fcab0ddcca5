package btree

import "errors"

// ErrNotFound is returned by Find when no cell with the requested key
// exists in the table B-Tree.
var ErrNotFound = errors.New("btree: key not found")

// ErrDuplicate is returned by Insert when a cell with the same key
// already exists in the target node.
var ErrDuplicate = errors.New("btree: duplicate key")

// ErrCellNo is returned when a cell index is out of range for a node.
var ErrCellNo = errors.New("btree: cell index out of range")
