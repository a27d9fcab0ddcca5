package pager

import "errors"

// ErrCorruptHeader is returned when the 100-byte file header fails
// bit-exact validation on open.
var ErrCorruptHeader = errors.New("pager: corrupt file header")

// ErrPageNo is returned when a page number is outside the valid range
// for the current file.
var ErrPageNo = errors.New("pager: invalid page number")

// ErrIO wraps an I/O failure reported by the underlying file.
var ErrIO = errors.New("pager: io error")

// ErrNoMem is the sentinel for an allocation failure. No function in
// this package returns it; an unsupported page size passed to
// WithPageSize is ignored rather than reported.
var ErrNoMem = errors.New("pager: allocation failure")
