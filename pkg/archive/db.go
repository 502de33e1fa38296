package archive

import (
	"go.mongodb.org/mongo-driver/bson"
)

type Item = bson.M
type Query = bson.D

type DB interface {
	// CreateNamespace creates or gets namespace
	CreateNamespace(name []byte) (Namespace, error)
	// DeleteNamespace deletes namespace by name and all data in the namespace
	DeleteNamespace(name []byte) error
	// Namespaces lists created namespaces
	Namespaces() ([]string, error)
	// Compact do flush and compaction on db
	Compact() error
	// Close release db lock
	Close() error
}

type Namespace interface {
	// DocBucket returns builtin bucket for saving entity docs
	DocBucket() DocBucket
	// ObjectBucket returns builtin bucket for saving assembled entity data
	ObjectBucket() Bucket
	// CreateBucket creates or gets bucket
	CreateBucket(name []byte) (Bucket, error)
	// DeleteBucket deletes bucket by name and all data in the bucket
	DeleteBucket(name []byte) error
	// Update runs fn in one transaction, writes of fn are committed only if it returns nil
	Update(fn func(Batch) error) error
}

// Batch writes to buckets of the namespace it comes from
type Batch interface {
	Put(b Bucket, key, val []byte, opts ...PutOption) error
	PutDoc(b DocBucket, key []byte, val Item) error
	Delete(b Bucket, key []byte) error
}

type Bucket interface {
	Put(key, val []byte, opts ...PutOption) error
	Get(key []byte) ([]byte, error)
	// GetMeta returns meta saved with WithMeta, ErrNoMeta if there is none
	GetMeta(key []byte) (*Meta, error)
	Exists(key []byte) (bool, error)
	Delete(key []byte) error
	// Range returns iterator for [beginKey, endKey), all for nil, nil
	Range(beginKey, endKey []byte, reverse bool) (Iterator, error)
	// Count returns number of keys in [beginKey, endKey)
	Count(beginKey, endKey []byte) (int, error)
}

type DocBucket interface {
	Bucket
	PutDoc(key []byte, val Item) error
	GetDoc(key []byte) (Item, error)
	// Find returns docs whose top level fields equal every element of the query
	Find(Query) (DocIterator, error)
}

type Iterator interface {
	Next() bool
	Key() ([]byte, error)
	Value() ([]byte, error)
	Err() error
	Release() error
}

type DocIterator interface {
	Iterator
	ValueDoc() (Item, error)
}
