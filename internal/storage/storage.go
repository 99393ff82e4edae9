// Package storage provides persistent data storage for the stock predictor.
// It uses BoltDB as the underlying storage engine to archive labeled indicator
// observations per symbol and to keep a history of training runs.
//
// The package provides thread-safe operations for storing and retrieving
// time-series data with efficient range queries and automatic bucket management.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	observationsBucket = "observations" // Bucket name for indicator observations
	runsBucket         = "runs"         // Bucket name for training run records

	dbFileName = "stock-data.db"

	keySeparator = 0x00 // Cannot appear in a symbol
)

// ObservationRecord is one archived row of the indicator table.
// Missing indicator values are simply absent from Features.
type ObservationRecord struct {
	Symbol    string             `json:"symbol"`
	Timestamp time.Time          `json:"timestamp"`
	Close     *float64           `json:"close,omitempty"`
	Features  map[string]float64 `json:"features"`
}

// Store provides persistent storage for observations and training runs using BoltDB.
// Keys are the symbol, a NUL separator and the nanosecond timestamp as a
// big-endian uint64 with the sign bit flipped, so cursor order matches time
// order on both sides of 1970.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
// Returns an error if the database cannot be opened or buckets cannot be created.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(observationsBucket)); err != nil {
			return fmt.Errorf("create observations bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
// It is safe to call more than once.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// StoreObservation stores a single observation record.
func (s *Store) StoreObservation(record ObservationRecord) error {
	return s.StoreObservations([]ObservationRecord{record})
}

// StoreObservations stores a batch of observation records in one transaction.
// Records with the same symbol and timestamp overwrite each other.
func (s *Store) StoreObservations(records []ObservationRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))

		for _, record := range records {
			if record.Symbol == "" {
				return fmt.Errorf("observation at %s has no symbol", record.Timestamp.Format(time.RFC3339))
			}
			if strings.IndexByte(record.Symbol, keySeparator) >= 0 {
				return fmt.Errorf("symbol %q contains a NUL byte", record.Symbol)
			}

			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("marshal observation: %w", err)
			}

			if err := b.Put(observationKey(record.Symbol, record.Timestamp), data); err != nil {
				return fmt.Errorf("put observation: %w", err)
			}
		}
		return nil
	})
}

// GetObservations retrieves observations for a symbol within a time range.
// The range is inclusive of both ends; a zero end means "no upper bound".
// Records come back in timestamp order.
func (s *Store) GetObservations(symbol string, start, end time.Time) ([]ObservationRecord, error) {
	var records []ObservationRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))
		c := b.Cursor()

		prefix := symbolPrefix(symbol)
		startKey := observationKey(symbol, start)
		if start.IsZero() {
			startKey = prefix
		}

		for k, v := c.Seek(startKey); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !end.IsZero() && bytes.Compare(k, observationKey(symbol, end)) > 0 {
				break
			}

			var record ObservationRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("decode observation %q: %w", k, err)
			}
			if record.Symbol != symbol {
				return fmt.Errorf("observation %q belongs to %q, not %q", k, record.Symbol, symbol)
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}

// CountObservations returns the number of archived observations for a symbol.
func (s *Store) CountObservations(symbol string) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(observationsBucket)).Cursor()
		prefix := symbolPrefix(symbol)
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func symbolPrefix(symbol string) []byte {
	return append([]byte(symbol), keySeparator)
}

func observationKey(symbol string, ts time.Time) []byte {
	key := symbolPrefix(symbol)
	return binary.BigEndian.AppendUint64(key, uint64(ts.UnixNano())^(1<<63))
}
