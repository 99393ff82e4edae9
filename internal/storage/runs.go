package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// RunRecord summarizes one completed training run
type RunRecord struct {
	RunID        string    `json:"run_id"`
	Symbol       string    `json:"symbol"`
	BundlePath   string    `json:"bundle_path"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	TrainingRows int       `json:"training_rows"`
	TestRows     int       `json:"test_rows"`
	CVScores     []float64 `json:"cv_scores"`
	CVMean       float64   `json:"cv_mean"`
	TestAccuracy float64   `json:"test_accuracy"`
}

// StoreRun stores a training run record keyed by finish time and run id
func (s *Store) StoreRun(run RunRecord) error {
	if run.RunID == "" {
		return fmt.Errorf("run record has no id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run record: %w", err)
		}

		key := fmt.Sprintf("%020d_%s", run.FinishedAt.UnixNano(), run.RunID)
		return b.Put([]byte(key), data)
	})
}

// ListRuns returns all run records, oldest first
func (s *Store) ListRuns() ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			runs = append(runs, run)
			return nil
		})
	})

	return runs, err
}

// LatestRun returns the most recently finished run, or nil if none exist
func (s *Store) LatestRun() (*RunRecord, error) {
	var latest *RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket([]byte(runsBucket)).Cursor().Last()
		if k == nil {
			return nil
		}
		var run RunRecord
		if err := json.Unmarshal(v, &run); err != nil {
			return fmt.Errorf("decode run %s: %w", k, err)
		}
		latest = &run
		return nil
	})

	return latest, err
}
