package blobstore

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/blake2b"
)

const (
	bucketBlobs = "blobs"      // blob id -> payload (normally zstd)
	bucketIndex = "blob_index" // content hash (hex) -> blob id
)

// ErrNotFound is returned when a content hash has no committed blob.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a content-addressed store for raw message bytes. Payloads are
// zstd-compressed on write; reads transparently fall back to raw payloads so
// that databases written before compression existed stay readable. A content
// hash maps to exactly one blob: the hash index entry and the payload are
// only ever written inside the same transaction.
type BlobStore struct {
	db   *bolt.DB
	path string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func New(path string) (*BlobStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt.Open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{bucketBlobs, bucketIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd.NewWriter: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd.NewReader: %w", err)
	}

	return &BlobStore{
		db:   db,
		path: path,
		enc:  enc,
		dec:  dec,
	}, nil
}

func (bs *BlobStore) Close() error {
	return bs.db.Close()
}

// Hash returns the lowercase hex BLAKE2b-512 digest of data. The digest is
// computed over the raw, uncompressed bytes and is the stable external
// identifier for the content.
func Hash(data []byte) string {
	sum := blake2b.Sum512(data)
	return hex.EncodeToString(sum[:])
}

// Encode compresses data into the stored payload format.
func (bs *BlobStore) Encode(data []byte) []byte {
	return bs.enc.EncodeAll(data, nil)
}

// Decode recovers the original bytes from a stored payload. The payload is
// treated as zstd first; if that fails it is a legacy payload written before
// compression existed and is returned as-is. The second return value reports
// which branch was taken.
func (bs *BlobStore) Decode(payload []byte) ([]byte, bool) {
	data, err := bs.dec.DecodeAll(payload, nil)
	if err != nil {
		return payload, false
	}
	return data, true
}

// Put stores data under its content hash and returns the hash. If the hash
// is already indexed, nothing is written. The index is re-checked inside the
// write transaction, so two concurrent Puts of the same content resolve
// deterministically: the second committer observes the first one's index
// entry and becomes a no-op.
func (bs *BlobStore) Put(data []byte) (string, error) {
	hash := Hash(data)

	if exists, err := bs.Exists(hash); err != nil {
		return "", err
	} else if exists {
		return hash, nil
	}

	payload := bs.Encode(data)

	err := bs.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket([]byte(bucketIndex))
		if index.Get([]byte(hash)) != nil {
			return nil
		}

		blobs := tx.Bucket([]byte(bucketBlobs))
		seq, err := blobs.NextSequence()
		if err != nil {
			return fmt.Errorf("blobs.NextSequence: %w", err)
		}
		id := itob(seq)
		if err := blobs.Put(id, payload); err != nil {
			return fmt.Errorf("blobs.Put: %w", err)
		}
		if err := index.Put([]byte(hash), id); err != nil {
			return fmt.Errorf("index.Put: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return hash, nil
}

// Get returns the original bytes for hash, decompressing if necessary.
func (bs *BlobStore) Get(hash string) ([]byte, error) {
	var payload []byte
	err := bs.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket([]byte(bucketIndex))
		id := index.Get([]byte(hash))
		if id == nil {
			return ErrNotFound
		}
		blobs := tx.Bucket([]byte(bucketBlobs))
		value := blobs.Get(id)
		if value == nil {
			return ErrNotFound
		}
		payload = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	data, _ := bs.Decode(payload)
	return data, nil
}

func (bs *BlobStore) Exists(hash string) (bool, error) {
	var exists bool
	err := bs.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket([]byte(bucketIndex))
		exists = index.Get([]byte(hash)) != nil
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ForEachBlob calls fn with every stored blob id and its physical payload,
// in whatever encoding is on disk. Used by the repair actions.
func (bs *BlobStore) ForEachBlob(fn func(id uint64, payload []byte) error) error {
	return bs.db.View(func(tx *bolt.Tx) error {
		blobs := tx.Bucket([]byte(bucketBlobs))
		return blobs.ForEach(func(k, v []byte) error {
			return fn(btoi(k), append([]byte(nil), v...))
		})
	})
}

// ForEachHash calls fn with every content hash present in the index.
func (bs *BlobStore) ForEachHash(fn func(hash string) error) error {
	return bs.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket([]byte(bucketIndex))
		return index.ForEach(func(k, v []byte) error {
			return fn(string(k))
		})
	})
}

// Recompress replaces the physical payload of an existing blob. The blob id
// and the hash index are untouched, so the content identity is preserved.
// Only the compress repair action calls this.
func (bs *BlobStore) Recompress(id uint64, payload []byte) error {
	return bs.db.Update(func(tx *bolt.Tx) error {
		blobs := tx.Bucket([]byte(bucketBlobs))
		key := itob(id)
		if blobs.Get(key) == nil {
			return ErrNotFound
		}
		if err := blobs.Put(key, payload); err != nil {
			return fmt.Errorf("blobs.Put: %w", err)
		}
		return nil
	})
}

// Count returns the number of committed blobs.
func (bs *BlobStore) Count() (uint64, error) {
	var count uint64
	err := bs.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket([]byte(bucketIndex))
		count = uint64(index.Stats().KeyN)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Size returns the on-disk size of the blob database file.
func (bs *BlobStore) Size() (int64, error) {
	info, err := os.Stat(bs.path)
	if err != nil {
		return 0, fmt.Errorf("os.Stat: %w", err)
	}
	return info.Size(), nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
