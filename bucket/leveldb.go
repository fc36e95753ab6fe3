package bucket

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	levelBucketPrefix = "b!"
	levelEntryPrefix  = "e!"
	levelKeySep       = "\x00"
)

// LevelDB is a bucket provider backed by a LevelDB database on disk.
// Bucket membership is encoded into the key: a marker key per bucket and
// one prefixed key per entry, so that a bucket can be dropped with a
// single prefix iteration.
type LevelDB struct {
	db *leveldb.DB
}

func NewLevelDB(dir string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func levelEntryKey(bucket, key string) []byte {
	return []byte(levelEntryPrefix + bucket + levelKeySep + key)
}

func (l *LevelDB) EnsureBucket(name string) error {
	return l.db.Put([]byte(levelBucketPrefix+name), nil, nil)
}

func (l *LevelDB) Put(bucket, key string, value []byte) error {
	batch := new(leveldb.Batch)
	batch.Put([]byte(levelBucketPrefix+bucket), nil)
	batch.Put(levelEntryKey(bucket, key), value)
	return l.db.Write(batch, nil)
}

func (l *LevelDB) Get(bucket, key string) ([]byte, error) {
	value, err := l.db.Get(levelEntryKey(bucket, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (l *LevelDB) Buckets() ([]string, error) {
	names := make([]string, 0)
	iter := l.db.NewIterator(util.BytesPrefix([]byte(levelBucketPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		names = append(names, string(iter.Key()[len(levelBucketPrefix):]))
	}
	return names, iter.Error()
}

func (l *LevelDB) DeleteBucket(name string) error {
	batch := new(leveldb.Batch)
	iter := l.db.NewIterator(util.BytesPrefix([]byte(levelEntryPrefix+name+levelKeySep)), nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	batch.Delete([]byte(levelBucketPrefix + name))
	return l.db.Write(batch, nil)
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
