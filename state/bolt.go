package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Bolt stores key-value pairs in a bolt database file.
type Bolt struct {
	db *bolt.DB
}

// DefaultFile returns the default state file location
// (~/.converge/state.db).
func DefaultFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "get home dir")
	}
	return filepath.Join(home, ".converge", "state.db"), nil
}

// NewBolt creates and opens a database at the given file. The file and its
// directory are created if they do not exist.
func NewBolt(file string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return nil, errors.Wrapf(err, "ensure dir exists: %s", filepath.Dir(file))
	}
	db, err := bolt.Open(file, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt db")
	}
	return &Bolt{db: db}, nil
}

// Close closes the database and releases all resources.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Put creates or updates a value.
func (b *Bolt) Put(ctx context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, k, err := bucketKey(key)
		if err != nil {
			return err
		}
		buc, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return errors.Wrap(err, "ensure bucket exists")
		}
		return buc.Put(k, value)
	})
}

// PutIfAbsent creates a value. The existence check and the write happen in
// the same transaction.
func (b *Bolt) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, k, err := bucketKey(key)
		if err != nil {
			return err
		}
		buc, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return errors.Wrap(err, "ensure bucket exists")
		}
		if buc.Get(k) != nil {
			return ErrKeyExists
		}
		return buc.Put(k, value)
	})
}

// Get returns a single value.
func (b *Bolt) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, k, err := bucketKey(key)
		if err != nil {
			return err
		}
		buc := tx.Bucket(bucket)
		if buc == nil {
			return ErrNotFound
		}
		data := buc.Get(k)
		if data == nil {
			return ErrNotFound
		}
		out = make([]byte, len(data))
		copy(out, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete deletes a key.
func (b *Bolt) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, k, err := bucketKey(key)
		if err != nil {
			return err
		}
		buc := tx.Bucket(bucket)
		if buc == nil || buc.Get(k) == nil {
			return ErrNotFound
		}
		return buc.Delete(k)
	})
}

// Scan returns all values with keys matching the prefix.
func (b *Bolt) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, buc *bolt.Bucket) error {
			return buc.ForEach(func(k, v []byte) error {
				full := string(name) + "/" + string(k)
				if !strings.HasPrefix(full, prefix) {
					return nil
				}
				val := make([]byte, len(v))
				copy(val, v)
				out[full] = val
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// bucketKey splits a key into a bucket name and the key within the bucket.
// The bucket is everything up to the last slash.
func bucketKey(key string) ([]byte, []byte, error) {
	i := strings.LastIndex(key, "/")
	if i <= 0 || i == len(key)-1 {
		return nil, nil, errors.Errorf("key %q must contain a namespace and a name", key)
	}
	return []byte(key[:i]), []byte(key[i+1:]), nil
}
