package bucket

import "errors"

// ErrNotFound is returned by Get when no entry exists for the given key.
// A miss is a normal outcome for strategy code, not a failure.
var ErrNotFound = errors.New("bucket: entry not found")

// Provider is storage for named cache buckets.
// A bucket maps request keys to serialized HTTP responses.
// Bucket names embed a version discriminator so that two worker versions
// never write into the same bucket.
//
// Implementations must be thread-safe!
type Provider interface {
	// EnsureBucket creates the named bucket if it does not already exist.
	// It is idempotent.
	EnsureBucket(name string) error
	// Put stores value under key in the named bucket,
	// replacing any previous entry. The bucket is created if needed.
	Put(bucket, key string, value []byte) error
	// Get returns the stored value for key in the named bucket.
	// It returns ErrNotFound when no entry exists.
	Get(bucket, key string) ([]byte, error)
	// Buckets returns the names of all known buckets.
	Buckets() ([]string, error)
	// DeleteBucket removes the named bucket and all of its entries.
	// Deleting a bucket that does not exist is not an error.
	DeleteBucket(name string) error
	// Close releases any underlying resources.
	Close() error
}
