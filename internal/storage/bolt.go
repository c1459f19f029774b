package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltFileName is the database file created inside the storage directory.
const BoltFileName = "omnisafe.db"

var entriesBucket = []byte("entries")

type boltEnvelope struct {
	Value     []byte     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// BoltStore keeps every key in one bucket of a bbolt file. It is the CLI
// counterpart of browser local storage.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltStore opens (or creates) the database inside dir.
func NewBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, BoltFileName), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create entries bucket: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var (
		env     boltEnvelope
		expired bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(entriesBucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("corrupt storage entry %s: %w", key, err)
		}
		expired = isExpired(env.ExpiresAt, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		_ = s.Delete(context.Background(), key)
		return nil, ErrNotFound
	}
	return env.Value, nil
}

func (s *BoltStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(boltEnvelope{Value: value, ExpiresAt: expiresAt(s.now(), ttl)})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *BoltStore) Delete(_ context.Context, keys ...string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// DeleteExpired removes expired entries. Undecodable entries are removed too.
func (s *BoltStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()
	var removed int64

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)

		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var env boltEnvelope
			if err := json.Unmarshal(v, &env); err != nil || isExpired(env.ExpiresAt, now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep storage: %w", err)
	}
	return removed, nil
}

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
