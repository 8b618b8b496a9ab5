package cache

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names follow the layout of the workspace store: version metadata in
// "workspace.disk", artifact payloads in "workspace.artifacts".
var (
	bucketVersions  = []byte("workspace.disk")
	bucketArtifacts = []byte("workspace.artifacts")
)

// diskTier is the unbounded on-disk cache layer. Entries are append-only:
// a key already present is never overwritten. All writes go through the
// store's single-writer transactions.
type diskTier struct {
	db *bolt.DB
}

var _ Tier = (*diskTier)(nil)

func openDiskTier(path string) (*diskTier, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache store %q failed: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketVersions, bucketArtifacts} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("creating bucket %q failed: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		closeErr := db.Close()
		return nil, errors.Join(err, closeErr)
	}
	return &diskTier{db: db}, nil
}

func (d *diskTier) Lookup(artifact Artifact) ([]byte, bool, error) {
	var payload []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketArtifacts).Get(encodeArtifactKey(artifact))
		if raw == nil {
			return nil
		}
		decoded, err := decodePayload(raw)
		if err != nil {
			return fmt.Errorf("corrupt cache entry for %s: %w", artifact, err)
		}
		payload = decoded
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payload, payload != nil, nil
}

func (d *diskTier) Store(artifact Artifact, data []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketArtifacts)
		key := encodeArtifactKey(artifact)
		if bucket.Get(key) != nil {
			return nil // append-only
		}
		return bucket.Put(key, encodePayload(data))
	})
}

func (d *diskTier) LookupVersions(artifact Artifact) ([]string, bool, error) {
	var versions []string
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketVersions).Get(encodeArtifactKey(artifact))
		if raw == nil {
			return nil
		}
		decoded, err := decodeVersions(raw)
		if err != nil {
			return fmt.Errorf("corrupt version list for %s: %w", artifact, err)
		}
		versions = decoded
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return versions, found, nil
}

func (d *diskTier) StoreVersions(artifact Artifact, versions []string) error {
	encoded, err := encodeVersions(versions)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketVersions)
		key := encodeArtifactKey(artifact)
		if bucket.Get(key) != nil {
			return nil // append-only
		}
		return bucket.Put(key, encoded)
	})
}

func (d *diskTier) Len() int {
	var n int
	_ = d.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketArtifacts).Stats().KeyN + tx.Bucket(bucketVersions).Stats().KeyN
		return nil
	})
	return n
}

func (d *diskTier) Close() error {
	return d.db.Close()
}
