package inmemory

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db"
)

func TestGetSetDelete(t *testing.T) {
	c := qt.New(t)

	database, err := New(db.Options{})
	c.Assert(err, qt.IsNil)

	key, value := []byte("key"), []byte("value")
	_, err = database.Get(key)
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)

	wTx := database.WriteTx()
	c.Assert(wTx.Set(key, value), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	got, err := database.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, value)

	wTx = database.WriteTx()
	c.Assert(wTx.Delete(key), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	_, err = database.Get(key)
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)
}

func TestIterate(t *testing.T) {
	c := qt.New(t)

	database, err := New(db.Options{})
	c.Assert(err, qt.IsNil)

	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("a/1"), []byte("1")), qt.IsNil)
	c.Assert(wTx.Set([]byte("a/2"), []byte("2")), qt.IsNil)
	c.Assert(wTx.Set([]byte("b/1"), []byte("3")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	var keys []string
	c.Assert(database.Iterate([]byte("a/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"a/1", "a/2"})
}

func TestWriteTxConflict(t *testing.T) {
	c := qt.New(t)

	database, err := New(db.Options{})
	c.Assert(err, qt.IsNil)

	key := []byte("key")
	seed := database.WriteTx()
	c.Assert(seed.Set(key, []byte("0")), qt.IsNil)
	c.Assert(seed.Commit(), qt.IsNil)

	txA := database.WriteTx()
	txB := database.WriteTx()

	_, err = txA.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(txA.Set(key, []byte("a")), qt.IsNil)
	c.Assert(txA.Commit(), qt.IsNil)

	_, err = txB.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(txB.Set(key, []byte("b")), qt.IsNil)
	c.Assert(txB.Commit(), qt.Equals, db.ErrConflict)
}

func TestWriteTxApply(t *testing.T) {
	c := qt.New(t)

	database, err := New(db.Options{})
	c.Assert(err, qt.IsNil)

	source := database.WriteTx()
	c.Assert(source.Set([]byte("x"), []byte("1")), qt.IsNil)
	c.Assert(source.Set([]byte("y"), []byte("2")), qt.IsNil)

	dest := database.WriteTx()
	c.Assert(dest.Apply(source), qt.IsNil)
	c.Assert(dest.Commit(), qt.IsNil)

	got, err := database.Get([]byte("x"))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []byte("1"))
}
