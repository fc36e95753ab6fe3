package bucket

import (
	badgerdb "github.com/dgraph-io/badger/v4"
)

const (
	badgerBucketPrefix = "b!"
	badgerEntryPrefix  = "e!"
	badgerKeySep       = "\x00"
)

// Badger is a bucket provider backed by a Badger database on disk.
// It uses the same key layout as the LevelDB provider.
type Badger struct {
	db *badgerdb.DB
}

func NewBadger(dir string) (*Badger, error) {
	opts := badgerdb.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func badgerEntryKey(bucket, key string) []byte {
	return []byte(badgerEntryPrefix + bucket + badgerKeySep + key)
}

func (b *Badger) EnsureBucket(name string) error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(badgerBucketPrefix+name), nil)
	})
}

func (b *Badger) Put(bucket, key string, value []byte) error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set([]byte(badgerBucketPrefix+bucket), nil); err != nil {
			return err
		}
		return txn.Set(badgerEntryKey(bucket, key), value)
	})
}

func (b *Badger) Get(bucket, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(badgerEntryKey(bucket, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *Badger) Buckets() ([]string, error) {
	names := make([]string, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerBucketPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, string(it.Item().Key()[len(badgerBucketPrefix):]))
		}
		return nil
	})
	return names, err
}

func (b *Badger) DeleteBucket(name string) error {
	prefix := []byte(badgerEntryPrefix + name + badgerKeySep)
	return b.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		keys := make([][]byte, 0)
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return txn.Delete([]byte(badgerBucketPrefix + name))
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}
