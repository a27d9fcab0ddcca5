package pager

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir(os.TempDir(), "chidb-pager")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, uuid.New().String()+".db")
}

func TestOpen_CreatesHeaderOnNewFile(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	p, err := Open(path)
	a.NoError(err)
	defer p.Close()

	a.Equal(DefaultPageSize, int(p.PageSize()))
	a.Equal(0, p.PageCount())

	h := p.ReadHeader()
	a.Equal(uint16(DefaultPageSize), h.PageSize)
}

func TestOpen_RejectsCorruptHeader(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	a.NoError(ioutil.WriteFile(path, make([]byte, HeaderSize), 0644))

	_, err := Open(path)
	a.ErrorIs(err, ErrCorruptHeader)
}

func TestAllocateWriteReadPage_RoundTrips(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	p, err := Open(path)
	a.NoError(err)
	defer p.Close()

	page, err := p.AllocatePage()
	a.NoError(err)
	a.Equal(1, page.Number)

	copy(page.Data[page.HeaderOffset():], []byte("hello"))
	a.NoError(p.WritePage(page))
	p.ReleasePage(page)

	reopened, err := p.ReadPage(1)
	a.NoError(err)
	a.Equal([]byte("hello"), reopened.Data[reopened.HeaderOffset():reopened.HeaderOffset()+5])
	p.ReleasePage(reopened)
}

func TestReadPage_OutOfRangeIsPageNoError(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	p, err := Open(path)
	a.NoError(err)
	defer p.Close()

	_, err = p.ReadPage(5)
	a.ErrorIs(err, ErrPageNo)
}

func TestReleasePage_DoubleReleasePanics(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	p, err := Open(path)
	a.NoError(err)
	defer p.Close()

	page, err := p.AllocatePage()
	a.NoError(err)
	a.NoError(p.WritePage(page))
	p.ReleasePage(page)

	a.Panics(func() {
		p.ReleasePage(page)
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	p, err := Open(path)
	a.NoError(err)

	page, err := p.AllocatePage()
	a.NoError(err)
	copy(page.Data[page.HeaderOffset():], []byte("persisted"))
	a.NoError(p.WritePage(page))
	p.ReleasePage(page)
	a.NoError(p.Close())

	p2, err := Open(path)
	a.NoError(err)
	defer p2.Close()

	a.Equal(1, p2.PageCount())
	reread, err := p2.ReadPage(1)
	a.NoError(err)
	a.Equal([]byte("persisted"), reread.Data[reread.HeaderOffset():reread.HeaderOffset()+9])
	p2.ReleasePage(reread)
}
