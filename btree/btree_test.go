package btree

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir(os.TempDir(), "chidb-btree")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, uuid.New().String()+".db")
}

func TestOpen_CreatesEmptySchemaRoot(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := Open(path)
	a.NoError(err)
	defer bt.Close()

	_, err = bt.Find(1, 42)
	a.ErrorIs(err, ErrNotFound)
}

func TestInsertAndFind_SingleRow(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := Open(path)
	a.NoError(err)
	defer bt.Close()

	a.NoError(bt.Insert(1, 7, []byte("hello")))

	payload, err := bt.Find(1, 7)
	a.NoError(err)
	a.Equal([]byte("hello"), payload)
}

func TestInsert_DuplicateKeyRejected(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := Open(path)
	a.NoError(err)
	defer bt.Close()

	a.NoError(bt.Insert(1, 1, []byte("a")))
	err = bt.Insert(1, 1, []byte("b"))
	a.ErrorIs(err, ErrDuplicate)
}

func TestInsert_ManyRowsTriggersSplitsAndAllAreFindable(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := Open(path, WithPageSize(512))
	a.NoError(err)
	defer bt.Close()

	const n = 500
	for i := 0; i < n; i++ {
		payload := []byte(fmt.Sprintf("row-%04d-payload", i))
		a.NoError(bt.Insert(1, uint32(i), payload))
	}

	for i := 0; i < n; i++ {
		payload, err := bt.Find(1, uint32(i))
		a.NoError(err, "key %d", i)
		a.Equal(fmt.Sprintf("row-%04d-payload", i), string(payload))
	}

	a.Greater(bt.PageCount(), 1)
}

func TestInsert_OutOfOrderKeysStillFindable(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := Open(path, WithPageSize(512))
	a.NoError(err)
	defer bt.Close()

	keys := []uint32{50, 10, 90, 30, 70, 20, 80, 40, 60, 5, 95}
	for _, k := range keys {
		a.NoError(bt.Insert(1, k, []byte(fmt.Sprintf("v%d", k))))
	}

	for _, k := range keys {
		payload, err := bt.Find(1, k)
		a.NoError(err, "key %d", k)
		a.Equal(fmt.Sprintf("v%d", k), string(payload))
	}
}

func TestInsertIndex_NonUniqueKeysWithDistinctPrimaryKeysAllowed(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := Open(path)
	a.NoError(err)
	defer bt.Close()

	indexRoot, err := bt.NewEmptyTree(IndexLeaf)
	a.NoError(err)

	a.NoError(bt.InsertIndex(indexRoot, 100, 1))
	a.NoError(bt.InsertIndex(indexRoot, 100, 2))
	a.NoError(bt.InsertIndex(indexRoot, 100, 3))

	err = bt.InsertIndex(indexRoot, 100, 2)
	a.ErrorIs(err, ErrDuplicate)
}

func TestReopen_PersistsInsertedRows(t *testing.T) {
	a := require.New(t)
	path := tempDBPath(t)

	bt, err := Open(path)
	a.NoError(err)
	a.NoError(bt.Insert(1, 1, []byte("persisted")))
	a.NoError(bt.Close())

	bt2, err := Open(path)
	a.NoError(err)
	defer bt2.Close()

	payload, err := bt2.Find(1, 1)
	a.NoError(err)
	a.Equal([]byte("persisted"), payload)
}
