package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sincaw/chred/pkg/scan"
)

func newArchive(t *testing.T) (*Archive, func()) {
	db, err := New("", InMemory())
	require.Nil(t, err)
	a, err := Open(db, DefaultNamespace)
	require.Nil(t, err)

	tm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time {
		tm = tm.Add(time.Second)
		return tm
	}
	return a, func() { db.Close() }
}

func TestArchiveSave(t *testing.T) {
	a, clean := newArchive(t)
	defer clean()

	e := &scan.Entity{Type: "CHR", Name: "HELLO", Data: []byte("sprite data")}
	rec, created, err := a.Save(e)
	require.Nil(t, err)
	require.True(t, created)
	require.Equal(t, "CHR:HELLO", rec.ID)
	require.Equal(t, int64(11), rec.Size)

	got, err := a.Get("CHR:HELLO")
	require.Nil(t, err)
	require.Equal(t, e, got)

	stored, err := a.Record("CHR:HELLO")
	require.Nil(t, err)
	require.Equal(t, rec.Digest, stored.Digest)
	require.True(t, rec.CreatedAt.Equal(stored.CreatedAt))

	doc, err := a.Doc("CHR:HELLO")
	require.Nil(t, err)
	require.Equal(t, "HELLO", doc["name"])

	meta, err := a.Meta("CHR:HELLO")
	require.Nil(t, err)
	require.Equal(t, MimeEntity, meta.Mime)
	require.Equal(t, 11, meta.TotalLen)
	require.Equal(t, rec.Digest, meta.Digest)

	// same data again
	again, created, err := a.Save(e)
	require.Nil(t, err)
	require.False(t, created)
	require.True(t, rec.CreatedAt.Equal(again.CreatedAt))

	// new data replaces the old one
	require.Nil(t, a.Accept(&scan.Entity{Type: "CHR", Name: "HELLO", Data: []byte("other")}))
	n, err := a.Count()
	require.Nil(t, err)
	require.Equal(t, 1, n)
	got, err = a.Get("CHR:HELLO")
	require.Nil(t, err)
	require.Equal(t, []byte("other"), got.Data)
}

func TestArchiveList(t *testing.T) {
	a, clean := newArchive(t)
	defer clean()

	for _, e := range []*scan.Entity{
		{Type: "CHR", Name: "A", Data: []byte("a")},
		{Type: "COL", Name: "B", Data: []byte("b")},
		{Type: "CHR", Name: "C", Data: []byte("c")},
	} {
		require.Nil(t, a.Accept(e))
	}

	recs, total, err := a.List(0, 0)
	require.Nil(t, err)
	require.Equal(t, 3, total)
	require.Len(t, recs, 3)
	require.Equal(t, "CHR:C", recs[0].ID)
	require.Equal(t, "CHR:A", recs[2].ID)

	recs, total, err = a.List(1, 1)
	require.Nil(t, err)
	require.Equal(t, 3, total)
	require.Len(t, recs, 1)
	require.Equal(t, "COL:B", recs[0].ID)

	recs, total, err = a.FindType("CHR", 0, 0)
	require.Nil(t, err)
	require.Equal(t, 2, total)
	require.Len(t, recs, 2)

	recs, total, err = a.FindType("CHR", 1, 1)
	require.Nil(t, err)
	require.Equal(t, 2, total)
	require.Len(t, recs, 1)
	require.Equal(t, "CHR:C", recs[0].ID)

	recs, total, err = a.FindType("CHR", 2, 0)
	require.Nil(t, err)
	require.Equal(t, 2, total)
	require.Empty(t, recs)

	require.Nil(t, a.Delete("COL:B"))
	_, err = a.Get("COL:B")
	require.Equal(t, ErrNotFound, err)
	require.Equal(t, ErrNotFound, a.Delete("COL:B"))
	n, err := a.Count()
	require.Nil(t, err)
	require.Equal(t, 2, n)
}

func TestArchiveDigest(t *testing.T) {
	a, clean := newArchive(t)
	defer clean()

	require.Nil(t, a.Accept(&scan.Entity{Type: "CHR", Name: "A", Data: []byte("a")}))
	require.Nil(t, a.objs.Put([]byte("CHR:A"), []byte("tampered")))
	_, err := a.Get("CHR:A")
	require.Equal(t, ErrDigestMismatch, err)
}

func TestArchiveSaveAtomic(t *testing.T) {
	db, err := New("", InMemory())
	require.Nil(t, err)
	defer db.Close()
	a, err := Open(db, DefaultNamespace)
	require.Nil(t, err)

	other, err := db.CreateNamespace([]byte("other"))
	require.Nil(t, err)
	index := a.index
	// the last write of Save fails, nothing before it may stay
	a.index, err = other.CreateBucket([]byte(indexBucketName))
	require.Nil(t, err)

	_, _, err = a.Save(&scan.Entity{Type: "CHR", Name: "A", Data: []byte("a")})
	require.Equal(t, ErrForeignBucket, err)
	_, err = a.Record("CHR:A")
	require.Equal(t, ErrNotFound, err)
	yes, err := a.objs.Exists([]byte("CHR:A"))
	require.Nil(t, err)
	require.False(t, yes)

	a.index = index
	require.Nil(t, a.Accept(&scan.Entity{Type: "CHR", Name: "A", Data: []byte("a")}))
	objs := a.objs
	a.objs = other.ObjectBucket()
	require.Equal(t, ErrForeignBucket, a.Delete("CHR:A"))
	a.objs = objs
	n, err := a.Count()
	require.Nil(t, err)
	require.Equal(t, 1, n)
	got, err := a.Get("CHR:A")
	require.Nil(t, err)
	require.Equal(t, []byte("a"), got.Data)
}
