// Package pager serves fixed-size, pinned pages of a single database
// file. It is the pager contract the rest of the engine is built
// against: open, read/write/release/allocate a page, read the file
// header, and close.
package pager

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type pinEntry struct {
	page *PinnedPage
	pins int
}

// Pager owns a single database file and hands out pinned pages from it.
// It is not safe for concurrent use: the engine it backs is
// single-threaded by design.
type Pager struct {
	file      *os.File
	header    Header
	pageCount int

	cache map[int]*pinEntry

	log *logrus.Logger
}

// Option configures a Pager at Open time.
type Option func(*Pager)

// WithLogger overrides the default (standard) logrus logger.
func WithLogger(l *logrus.Logger) Option {
	return func(p *Pager) { p.log = l }
}

// WithPageSize sets the page size to use when creating a new database
// file. It has no effect when opening an existing file, whose page size
// is read from the file header. A size that is not one of the supported
// page sizes is ignored, and the default page size stays in effect.
func WithPageSize(size uint16) Option {
	return func(p *Pager) {
		if ValidPageSize(size) {
			p.header.PageSize = size
		}
	}
}

// Open opens path, creating it and writing its file header if it does
// not exist or is empty. No page is allocated for a new file, so its
// page count starts at zero. An existing file is validated
// bit-exactly against the header contract; any mismatch fails with
// ErrCorruptHeader.
func Open(path string, opts ...Option) (*Pager, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}

	p := &Pager{
		file:   file,
		header: newHeader(DefaultPageSize),
		cache:  make(map[int]*pinEntry),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if info.Size() == 0 {
		p.log.WithField("page_size", p.header.PageSize).Debug("pager: initializing new database file")
		if err := p.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
		return p, nil
	}

	headerBuf := make([]byte, HeaderSize)
	if _, err := file.ReadAt(headerBuf, 0); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("pager: read header: %w", ErrIO)
	}

	header, err := decodeHeader(headerBuf)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	p.header = header
	p.pageCount = int(info.Size()) / int(header.PageSize)
	p.log.WithFields(logrus.Fields{
		"page_size": header.PageSize,
		"pages":     p.pageCount,
	}).Debug("pager: opened existing database file")

	return p, nil
}

// ReadHeader returns the current file header.
func (p *Pager) ReadHeader() Header {
	return p.header
}

// PageSize returns the configured page size.
func (p *Pager) PageSize() int {
	return int(p.header.PageSize)
}

// PageCount returns the number of pages currently allocated.
func (p *Pager) PageCount() int {
	return p.pageCount
}

// ReadPage pins and returns the page numbered n, reading it from disk
// (or the pin cache, if already pinned) and incrementing its pin count.
func (p *Pager) ReadPage(n int) (*PinnedPage, error) {
	if n < 1 || n > p.pageCount {
		return nil, fmt.Errorf("pager: page %d: %w", n, ErrPageNo)
	}

	if entry, ok := p.cache[n]; ok {
		entry.pins++
		return entry.page, nil
	}

	data := make([]byte, p.header.PageSize)
	if _, err := p.file.ReadAt(data, p.pageOffset(n)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("pager: read page %d: %w", n, ErrIO)
	}

	page := &PinnedPage{Number: n, PageSize: int(p.header.PageSize), Data: data}
	p.cache[n] = &pinEntry{page: page, pins: 1}
	p.log.WithField("page", n).Debug("pager: read page")
	return page, nil
}

// WritePage persists a previously read or allocated page to disk. The
// page must still be pinned.
func (p *Pager) WritePage(page *PinnedPage) error {
	if page.Number < 1 || page.Number > p.pageCount {
		return fmt.Errorf("pager: page %d: %w", page.Number, ErrPageNo)
	}
	if _, ok := p.cache[page.Number]; !ok {
		return fmt.Errorf("pager: write unpinned page %d: %w", page.Number, ErrPageNo)
	}

	if _, err := p.file.WriteAt(page.Data, p.pageOffset(page.Number)); err != nil {
		return fmt.Errorf("pager: write page %d: %w", page.Number, ErrIO)
	}

	p.header.FileChangeCounter++
	p.header.SizeInPages = uint32(p.pageCount)
	if err := p.writeHeader(); err != nil {
		return err
	}

	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("pager: fsync: %w", ErrIO)
	}

	p.log.WithField("page", page.Number).Debug("pager: wrote page")
	return nil
}

// ReleasePage unpins a page previously obtained from ReadPage or
// AllocatePage. Releasing a page with no outstanding pin is a
// programmer error and panics, mirroring the loud failure this engine
// uses elsewhere for invariant violations.
func (p *Pager) ReleasePage(page *PinnedPage) {
	entry, ok := p.cache[page.Number]
	if !ok || entry.pins == 0 {
		panic(fmt.Sprintf("pager: release of unpinned page %d", page.Number))
	}

	entry.pins--
	if entry.pins == 0 {
		delete(p.cache, page.Number)
	}
}

// AllocatePage extends the file by one page and returns it pinned. The
// new page is all zeroes; the caller is responsible for initializing
// and writing it. Allocation never reuses a page number: there is no
// deletion in this engine, so the page count only ever grows.
func (p *Pager) AllocatePage() (*PinnedPage, error) {
	p.pageCount++
	page := &PinnedPage{
		Number:   p.pageCount,
		PageSize: int(p.header.PageSize),
		Data:     make([]byte, p.header.PageSize),
	}
	p.cache[p.pageCount] = &pinEntry{page: page, pins: 1}
	p.log.WithField("page", p.pageCount).Debug("pager: allocated page")
	return page, nil
}

// Close closes the underlying file. The header is already on disk, since
// WritePage rewrites it on every write. Any outstanding pins are not an
// error at this point: Close is terminal.
func (p *Pager) Close() error {
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("pager: close: %w", ErrIO)
	}
	return nil
}

func (p *Pager) writeHeader() error {
	if _, err := p.file.WriteAt(p.header.encode(), 0); err != nil {
		return fmt.Errorf("pager: write header: %w", ErrIO)
	}
	return nil
}

func (p *Pager) pageOffset(n int) int64 {
	return int64(n-1) * int64(p.header.PageSize)
}
