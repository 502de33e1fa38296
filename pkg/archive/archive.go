package archive

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sincaw/chred/pkg/scan"
)

const (
	// DefaultNamespace holds entities scanned by the CLI and the dashboard
	DefaultNamespace = "chred"

	indexBucketName = "index"
)

var ErrDigestMismatch = fmt.Errorf("stored data does not match its digest")

// Record describes an archived entity
type Record struct {
	ID        string    `bson:"_id" json:"id"`
	Type      string    `bson:"type" json:"type"`
	Name      string    `bson:"name" json:"name"`
	Size      int64     `bson:"size" json:"size"`
	Digest    string    `bson:"digest" json:"digest"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (r *Record) item() Item {
	return Item{
		"_id":       r.ID,
		"type":      r.Type,
		"name":      r.Name,
		"size":      r.Size,
		"digest":    r.Digest,
		"createdAt": r.CreatedAt,
	}
}

// indexKey orders records by creation time
func (r *Record) indexKey() []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(r.CreatedAt.UnixNano()))
	return append(key, r.ID...)
}

// Archive stores completed entities in a namespace:
// records in the doc bucket, data in the object bucket and a creation time index.
type Archive struct {
	ns    Namespace
	docs  DocBucket
	objs  Bucket
	index Bucket

	now func() time.Time
}

// Open returns the archive kept in namespace of db
func Open(db DB, namespace string) (*Archive, error) {
	ns, err := db.CreateNamespace([]byte(namespace))
	if err != nil {
		return nil, err
	}
	index, err := ns.CreateBucket([]byte(indexBucketName))
	if err != nil {
		return nil, err
	}
	return &Archive{
		ns:    ns,
		docs:  ns.DocBucket(),
		objs:  ns.ObjectBucket(),
		index: index,
		now:   time.Now,
	}, nil
}

// Accept saves a completed entity
func (a *Archive) Accept(e *scan.Entity) error {
	_, _, err := a.Save(e)
	return err
}

// Save stores e. Saving identical data again is a no-op and returns created false,
// different data under the same id replaces the old entity.
func (a *Archive) Save(e *scan.Entity) (rec *Record, created bool, err error) {
	digest := scan.Sum(e.Data)
	rec = &Record{
		ID:        e.ID(),
		Type:      e.Type,
		Name:      e.Name,
		Size:      int64(len(e.Data)),
		Digest:    hex.EncodeToString(digest[:]),
		CreatedAt: a.now().UTC().Truncate(time.Millisecond),
	}

	old, err := a.Record(rec.ID)
	switch {
	case err == ErrNotFound:
	case err != nil:
		return nil, false, err
	case old.Digest == rec.Digest:
		return old, false, nil
	}

	key := []byte(rec.ID)
	err = a.ns.Update(func(b Batch) error {
		if old != nil {
			if err := b.Delete(a.index, old.indexKey()); err != nil {
				return err
			}
		}
		if err := b.Put(a.objs, key, e.Data, WithMeta(&Meta{Mime: MimeEntity, Digest: rec.Digest})); err != nil {
			return err
		}
		if err := b.PutDoc(a.docs, key, rec.item()); err != nil {
			return err
		}
		return b.Put(a.index, rec.indexKey(), key)
	})
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Record returns the record of entity id
func (a *Archive) Record(id string) (*Record, error) {
	val, err := a.docs.Get([]byte(id))
	if err != nil {
		return nil, err
	}
	rec := new(Record)
	if err = bson.Unmarshal(val, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Doc returns the raw record document of entity id
func (a *Archive) Doc(id string) (Item, error) {
	return a.docs.GetDoc([]byte(id))
}

// Meta returns the object meta of entity id
func (a *Archive) Meta(id string) (*Meta, error) {
	return a.objs.GetMeta([]byte(id))
}

// Get returns entity id, its data is verified against the stored digest
func (a *Archive) Get(id string) (*scan.Entity, error) {
	rec, err := a.Record(id)
	if err != nil {
		return nil, err
	}
	data, err := a.objs.Get([]byte(id))
	if err != nil {
		return nil, err
	}
	digest := scan.Sum(data)
	if hex.EncodeToString(digest[:]) != rec.Digest {
		return nil, ErrDigestMismatch
	}
	return &scan.Entity{Type: rec.Type, Name: rec.Name, Data: data}, nil
}

// List returns records newest first and the total number of records
func (a *Archive) List(offset, limit int) ([]*Record, int, error) {
	iter, err := a.index.Range(nil, nil, true)
	if err != nil {
		return nil, 0, err
	}
	defer iter.Release()

	var (
		ret   []*Record
		count = 0
	)
	for iter.Next() {
		count++
		if count <= offset {
			continue
		}
		if limit > 0 && count > offset+limit {
			break
		}
		id, err := iter.Value()
		if err != nil {
			return nil, 0, err
		}
		rec, err := a.Record(string(id))
		if err != nil {
			return nil, 0, fmt.Errorf("get record %q fail: %w", string(id), err)
		}
		ret = append(ret, rec)
	}
	if err = iter.Err(); err != nil {
		return nil, 0, err
	}

	total, err := a.Count()
	if err != nil {
		return nil, 0, err
	}
	return ret, total, nil
}

// Count returns the number of archived entities
func (a *Archive) Count() (int, error) {
	return a.index.Count(nil, nil)
}

// FindType returns records of entities with type typ, paged like List, and their total number
func (a *Archive) FindType(typ string, offset, limit int) ([]*Record, int, error) {
	iter, err := a.docs.Find(Query{{Key: "type", Value: typ}})
	if err != nil {
		return nil, 0, err
	}
	defer iter.Release()

	var (
		ret   []*Record
		count = 0
	)
	for iter.Next() {
		count++
		if count <= offset || (limit > 0 && count > offset+limit) {
			continue
		}
		val, err := iter.Value()
		if err != nil {
			return nil, 0, err
		}
		rec := new(Record)
		if err = bson.Unmarshal(val, rec); err != nil {
			return nil, 0, err
		}
		ret = append(ret, rec)
	}
	if err = iter.Err(); err != nil {
		return nil, 0, err
	}
	return ret, count, nil
}

// Delete removes entity id
func (a *Archive) Delete(id string) error {
	rec, err := a.Record(id)
	if err != nil {
		return err
	}
	return a.ns.Update(func(b Batch) error {
		if err := b.Delete(a.index, rec.indexKey()); err != nil {
			return err
		}
		if err := b.Delete(a.objs, []byte(id)); err != nil {
			return err
		}
		return b.Delete(a.docs, []byte(id))
	})
}
