package boltdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketCampaigns    = []byte("campaigns")
	bucketCommands     = []byte("commands")
	bucketStatusEvents = []byte("status_events")
	bucketOutbox       = []byte("outbox")
	bucketMeasurements = []byte("measurements")
	bucketPositions    = []byte("positions")
)

// Store keeps every aggregate as JSON documents in its own bucket. It is
// meant for single-node deployments and tests.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCampaigns, bucketCommands, bucketStatusEvents, bucketOutbox, bucketMeasurements, bucketPositions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Campaigns() *CampaignRepository {
	return &CampaignRepository{db: s.db}
}

func (s *Store) Commands() *CommandRepository {
	return &CommandRepository{db: s.db}
}

func (s *Store) StatusEvents() *StatusRepository {
	return &StatusRepository{db: s.db}
}

func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{db: s.db}
}

func (s *Store) Measurements() *MeasurementRepository {
	return &MeasurementRepository{db: s.db}
}

func (s *Store) Positions() *PositionRepository {
	return &PositionRepository{db: s.db}
}

func put(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", bucket, err)
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

// get returns nil when key is absent.
func get[T any](db *bolt.DB, bucket []byte, key string) (*T, error) {
	var out *T
	err := db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

// scan decodes every document in bucket that satisfies match.
func scan[T any](db *bolt.DB, bucket []byte, match func(*T) bool) ([]*T, error) {
	var out []*T
	err := db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(_, data []byte) error {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			if match == nil || match(&v) {
				out = append(out, &v)
			}
			return nil
		})
	})
	return out, err
}

func truncate[T any](items []*T, limit int) []*T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
