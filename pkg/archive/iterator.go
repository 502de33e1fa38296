package archive

import (
	"bytes"
	"reflect"

	"github.com/dgraph-io/badger/v3"
	"go.mongodb.org/mongo-driver/bson"
)

type iterator struct {
	query    Query
	init     bool
	keysOnly bool
	reverse  bool
	prefix   []byte
	// keys are in [lower, upper)
	lower, upper []byte

	iter *badger.Iterator
	txn  *badger.Txn
	doc  Item
	err  error
}

func (b *bucket) newIterator(begin, end []byte, reverse bool) *iterator {
	prefix := b.dataPrefix()
	upper := successor(prefix)
	if end != nil {
		upper = mergeBytes(prefix, end)
	}
	return &iterator{
		reverse: reverse,
		prefix:  prefix,
		lower:   mergeBytes(prefix, begin),
		upper:   upper,
		txn:     b.store.NewTransaction(false),
	}
}

func (i *iterator) open() {
	opt := badger.DefaultIteratorOptions
	opt.Reverse = i.reverse
	opt.PrefetchValues = !i.keysOnly
	i.iter = i.txn.NewIterator(opt)

	if !i.reverse {
		i.iter.Seek(i.lower)
		return
	}
	// reverse seek lands on the largest key <= upper, upper itself is excluded
	i.iter.Seek(i.upper)
	if i.iter.Valid() && bytes.Equal(i.iter.Item().Key(), i.upper) {
		i.iter.Next()
	}
}

func (i *iterator) valid() bool {
	if !i.iter.ValidForPrefix(i.prefix) {
		return false
	}
	k := i.iter.Item().Key()
	return bytes.Compare(k, i.lower) >= 0 && (i.upper == nil || bytes.Compare(k, i.upper) < 0)
}

func (i *iterator) Next() bool {
	for {
		if !i.init {
			i.open()
			i.init = true
		} else {
			i.iter.Next()
		}
		if !i.valid() {
			return false
		}
		if len(i.query) == 0 {
			return true
		}
		if i.match() {
			return true
		}
		if i.err != nil {
			return false
		}
	}
}

func (i *iterator) match() bool {
	i.doc = nil
	doc, err := i.decode()
	if err != nil {
		i.err = err
		return false
	}
	for _, e := range i.query {
		v, ok := doc[e.Key]
		if !ok || !reflect.DeepEqual(v, e.Value) {
			return false
		}
	}
	i.doc = doc
	return true
}

func (i *iterator) decode() (Item, error) {
	var item = new(Item)
	err := i.iter.Item().Value(func(val []byte) error {
		return bson.Unmarshal(val, item)
	})
	if err != nil {
		return nil, err
	}
	return *item, nil
}

func (i *iterator) Key() ([]byte, error) {
	return i.iter.Item().KeyCopy(nil)[len(i.prefix):], nil
}

func (i *iterator) Value() ([]byte, error) {
	return i.iter.Item().ValueCopy(nil)
}

func (i *iterator) ValueDoc() (Item, error) {
	if i.doc != nil {
		return i.doc, nil
	}
	return i.decode()
}

func (i *iterator) Err() error {
	return i.err
}

func (i *iterator) Release() error {
	if i.iter != nil {
		i.iter.Close()
	}
	i.txn.Discard()
	return nil
}
