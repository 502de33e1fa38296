package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound = fmt.Errorf("key not found")
	ErrNoMeta   = fmt.Errorf("no meta for key")

	// ErrForeignBucket is returned by a Batch given a bucket of another namespace
	ErrForeignBucket = fmt.Errorf("bucket is not in namespace")
)

type kv struct {
	sync.Mutex
	store      *badger.DB
	names      map[string]struct{}
	namespaces map[string]*ns
}

type kvMeta struct {
	Namespaces []string `json:"namespaces"`
}

func (k *kv) Compact() error {
	if err := k.store.Sync(); err != nil {
		return err
	}
	return k.store.Flatten(1)
}

func (k *kv) Close() error {
	return k.store.Close()
}

// New opens the archive database at path
func New(path string, opts ...Option) (DB, error) {
	d, err := badger.Open(applyOptions(opts).badgerOptions(path))
	if err != nil {
		return nil, err
	}

	ret := &kv{
		store:      d,
		names:      map[string]struct{}{},
		namespaces: map[string]*ns{},
	}
	meta := kvMeta{}
	if err := getJson(d, []byte{dbMetaPrefix}, &meta); err != nil && err != ErrNotFound {
		d.Close()
		return nil, err
	}
	for _, n := range meta.Namespaces {
		ret.names[n] = struct{}{}
	}
	return ret, nil
}

func putRaw(db *badger.DB, key, val []byte) error {
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func getJson(db *badger.DB, key []byte, v interface{}) error {
	return db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

func putJson(db *badger.DB, key []byte, v interface{}) error {
	content, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return putRaw(db, key, content)
}

func sortedKeys(m map[string]struct{}) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (k *kv) Namespaces() ([]string, error) {
	k.Lock()
	defer k.Unlock()
	return sortedKeys(k.names), nil
}

func (k *kv) CreateNamespace(n []byte) (Namespace, error) {
	k.Lock()
	defer k.Unlock()

	name := string(n)

	if n, ok := k.namespaces[name]; ok {
		return n, nil
	}
	key, err := nameKey(n)
	if err != nil {
		return nil, err
	}

	if _, ok := k.names[name]; !ok {
		k.names[name] = struct{}{}
		// update meta
		err = putJson(k.store, []byte{dbMetaPrefix}, kvMeta{Namespaces: sortedKeys(k.names)})
		if err != nil {
			delete(k.names, name)
			return nil, err
		}
	}

	ret, err := newNS(k.store, mergeBytes([]byte{dbDataPrefix}, key))
	if err != nil {
		return nil, err
	}
	k.namespaces[name] = ret
	return ret, nil
}

func (k *kv) DeleteNamespace(n []byte) error {
	k.Lock()
	defer k.Unlock()

	name := string(n)
	if _, ok := k.names[name]; !ok {
		return ErrNotFound
	}
	key, err := nameKey(n)
	if err != nil {
		return err
	}
	if err = k.store.DropPrefix(mergeBytes([]byte{dbDataPrefix}, key)); err != nil {
		return err
	}
	delete(k.names, name)
	delete(k.namespaces, name)
	return putJson(k.store, []byte{dbMetaPrefix}, kvMeta{Namespaces: sortedKeys(k.names)})
}

type ns struct {
	sync.Mutex
	store        *badger.DB
	prefix       []byte
	doc, obj     *bucket
	bucketNames  map[string]struct{}
	otherBuckets map[string]*bucket
}

type nsMeta struct {
	Buckets []string `json:"buckets"`
}

func newNS(store *badger.DB, prefix []byte) (*ns, error) {
	docKey, _ := nameKey([]byte(builtinDocBucketName))
	objKey, _ := nameKey([]byte(builtinObjectBucketName))
	ret := &ns{
		store:        store,
		prefix:       prefix,
		doc:          newBucket(store, mergeBytes(prefix, []byte{nsBuiltinBucketPrefix}, docKey)),
		obj:          newBucket(store, mergeBytes(prefix, []byte{nsBuiltinBucketPrefix}, objKey)),
		bucketNames:  map[string]struct{}{},
		otherBuckets: map[string]*bucket{},
	}
	meta := nsMeta{}
	if err := getJson(store, ret.metaKey(), &meta); err != nil && err != ErrNotFound {
		return nil, err
	}
	for _, b := range meta.Buckets {
		ret.bucketNames[b] = struct{}{}
	}
	return ret, nil
}

func (n *ns) metaKey() []byte {
	return mergeBytes(n.prefix, []byte{nsMetaPrefix}, []byte(nsBucketListKey))
}

func (n *ns) bucketPrefix(name []byte) ([]byte, error) {
	key, err := nameKey(name)
	if err != nil {
		return nil, err
	}
	return mergeBytes(n.prefix, []byte{nsOtherBucketPrefix}, key), nil
}

func (n *ns) CreateBucket(name []byte) (Bucket, error) {
	n.Lock()
	defer n.Unlock()

	if b, ok := n.otherBuckets[string(name)]; ok {
		return b, nil
	}
	prefix, err := n.bucketPrefix(name)
	if err != nil {
		return nil, err
	}
	if _, ok := n.bucketNames[string(name)]; !ok {
		n.bucketNames[string(name)] = struct{}{}
		err = putJson(n.store, n.metaKey(), nsMeta{Buckets: sortedKeys(n.bucketNames)})
		if err != nil {
			delete(n.bucketNames, string(name))
			return nil, err
		}
	}

	b := newBucket(n.store, prefix)
	n.otherBuckets[string(name)] = b
	return b, nil
}

func (n *ns) DeleteBucket(name []byte) error {
	n.Lock()
	defer n.Unlock()

	if _, ok := n.bucketNames[string(name)]; !ok {
		return ErrNotFound
	}
	prefix, err := n.bucketPrefix(name)
	if err != nil {
		return err
	}
	if err = n.store.DropPrefix(prefix); err != nil {
		return err
	}
	delete(n.bucketNames, string(name))
	delete(n.otherBuckets, string(name))
	return putJson(n.store, n.metaKey(), nsMeta{Buckets: sortedKeys(n.bucketNames)})
}

func (n *ns) Update(fn func(Batch) error) error {
	return n.store.Update(func(txn *badger.Txn) error {
		return fn(&batch{ns: n, txn: txn})
	})
}

type batch struct {
	ns  *ns
	txn *badger.Txn
}

// bucket unwraps b, it must be a bucket of the batch's namespace
func (t *batch) bucket(b Bucket) (*bucket, error) {
	ret, ok := b.(*bucket)
	if !ok || !bytes.HasPrefix(ret.prefix, t.ns.prefix) {
		return nil, ErrForeignBucket
	}
	return ret, nil
}

func (t *batch) Put(b Bucket, key, val []byte, opts ...PutOption) error {
	bk, err := t.bucket(b)
	if err != nil {
		return err
	}
	return bk.put(t.txn, key, val, opts...)
}

func (t *batch) PutDoc(b DocBucket, key []byte, item Item) error {
	content, err := bson.Marshal(item)
	if err != nil {
		return err
	}
	return t.Put(b, key, content)
}

func (t *batch) Delete(b Bucket, key []byte) error {
	bk, err := t.bucket(b)
	if err != nil {
		return err
	}
	return bk.delete(t.txn, key)
}

func (n *ns) DocBucket() DocBucket {
	return n.doc
}

func (n *ns) ObjectBucket() Bucket {
	return n.obj
}

type bucket struct {
	store  *badger.DB
	prefix []byte
}

func newBucket(store *badger.DB, prefix []byte) *bucket {
	return &bucket{
		store:  store,
		prefix: prefix,
	}
}

func (b *bucket) PutDoc(key []byte, item Item) error {
	content, err := bson.Marshal(item)
	if err != nil {
		return err
	}

	return b.Put(key, content)
}

func (b *bucket) GetDoc(key []byte) (Item, error) {
	val, err := b.Get(key)
	if err != nil {
		return nil, err
	}
	var item = new(Item)
	err = bson.Unmarshal(val, item)
	return *item, err
}

func (b *bucket) Find(query Query) (DocIterator, error) {
	it := b.newIterator(nil, nil, false)
	it.query = query
	return it, nil
}

func (b *bucket) dataPrefix() []byte {
	return mergeBytes(b.prefix, []byte{bucketKeyPrefix})
}

func (b *bucket) key(key []byte) []byte {
	return mergeBytes(b.prefix, []byte{bucketKeyPrefix}, key)
}

func (b *bucket) metaKey(key []byte) []byte {
	return mergeBytes(b.prefix, []byte{bucketMetaPrefix}, key)
}

func (b *bucket) Put(key, val []byte, opts ...PutOption) error {
	return b.store.Update(func(txn *badger.Txn) error {
		return b.put(txn, key, val, opts...)
	})
}

func (b *bucket) put(txn *badger.Txn, key, val []byte, opts ...PutOption) error {
	opt := applyPutOptions(opts)
	if err := txn.Set(b.key(key), val); err != nil {
		return err
	}
	if opt.meta == nil {
		return txn.Delete(b.metaKey(key))
	}
	m := *opt.meta
	m.TotalLen = len(val)
	content, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return txn.Set(b.metaKey(key), content)
}

func (b *bucket) Delete(key []byte) (err error) {
	return b.store.Update(func(txn *badger.Txn) error {
		return b.delete(txn, key)
	})
}

func (b *bucket) delete(txn *badger.Txn, key []byte) error {
	if err := txn.Delete(b.key(key)); err != nil {
		return err
	}
	return txn.Delete(b.metaKey(key))
}

func (b *bucket) Range(begin, end []byte, reverse bool) (Iterator, error) {
	return b.newIterator(begin, end, reverse), nil
}

func (b *bucket) Count(begin, end []byte) (int, error) {
	it := b.newIterator(begin, end, false)
	it.keysOnly = true
	defer it.Release()

	count := 0
	for it.Next() {
		count++
	}
	return count, it.Err()
}

func (b *bucket) Get(key []byte) (val []byte, err error) {
	err = b.store.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return
}

func (b *bucket) GetMeta(key []byte) (*Meta, error) {
	meta := new(Meta)
	err := getJson(b.store, b.metaKey(key), meta)
	if err == ErrNotFound {
		if yes, e := b.Exists(key); e == nil && yes {
			return nil, ErrNoMeta
		}
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (b *bucket) Exists(key []byte) (yes bool, err error) {
	err = b.store.View(func(txn *badger.Txn) error {
		_, err := txn.Get(b.key(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				yes = false
				return nil
			}
			return err
		}
		yes = true
		return nil
	})
	return
}
