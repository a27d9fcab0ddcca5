package cursor

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chidb/btree"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir(os.TempDir(), "chidb-cursor")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, uuid.New().String()+".db")
}

func TestRewind_EmptyTreeIsExhausted(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := btree.Open(path)
	a.NoError(err)
	defer bt.Close()

	c, err := New(bt, 1)
	a.NoError(err)
	defer c.Close()

	a.ErrorIs(c.Rewind(), ErrCantMove)
	a.Equal(Exhausted, c.State())
}

func TestNext_SweepsAllRowsInKeyOrder(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := btree.Open(path, btree.WithPageSize(512))
	a.NoError(err)
	defer bt.Close()

	keys := []uint32{50, 10, 90, 30, 70, 20, 80, 40, 60, 5, 95, 1, 99}
	for _, k := range keys {
		a.NoError(bt.Insert(1, k, []byte(fmt.Sprintf("v%d", k))))
	}

	c, err := New(bt, 1)
	a.NoError(err)
	defer c.Close()

	a.NoError(c.Rewind())

	var seen []uint32
	for c.State() == PositionedOnLeafCell {
		cell, err := c.CurrentCell()
		a.NoError(err)
		seen = append(seen, cell.Key)

		ok, err := c.Next()
		a.NoError(err)
		if !ok {
			break
		}
	}

	a.Len(seen, len(keys))
	for i := 1; i < len(seen); i++ {
		a.Less(seen[i-1], seen[i])
	}
}

func TestPrev_SweepsAllRowsInReverseKeyOrder(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := btree.Open(path, btree.WithPageSize(512))
	a.NoError(err)
	defer bt.Close()

	const n = 200
	for i := 0; i < n; i++ {
		a.NoError(bt.Insert(1, uint32(i), []byte(fmt.Sprintf("v%d", i))))
	}

	c, err := New(bt, 1)
	a.NoError(err)
	defer c.Close()

	a.NoError(c.Rewind())
	for i := 0; i < n-1; i++ {
		ok, err := c.Next()
		a.NoError(err)
		a.True(ok)
	}
	cell, err := c.CurrentCell()
	a.NoError(err)
	a.Equal(uint32(n-1), cell.Key)

	var reversed []uint32
	for c.State() == PositionedOnLeafCell {
		cell, err := c.CurrentCell()
		a.NoError(err)
		reversed = append(reversed, cell.Key)
		ok, err := c.Prev()
		a.NoError(err)
		if !ok {
			break
		}
	}
	a.Len(reversed, n)
	for i := 1; i < len(reversed); i++ {
		a.Greater(reversed[i-1], reversed[i])
	}
}

func TestNext_PastLastCellReturnsFalseWithoutError(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := btree.Open(path)
	a.NoError(err)
	defer bt.Close()

	a.NoError(bt.Insert(1, 1, []byte("only")))

	c, err := New(bt, 1)
	a.NoError(err)
	defer c.Close()

	a.NoError(c.Rewind())
	ok, err := c.Next()
	a.NoError(err)
	a.False(ok)
	a.Equal(Exhausted, c.State())
}
