package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/vbonduro/inspectreport/internal/domain"
)

// ErrQuotaExceeded is returned when a serialized report is larger than the
// store allows. The previously stored blob is left untouched.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// ReportStore keeps whole reports as JSON blobs in the kv_store table.
type ReportStore struct {
	db       *sql.DB
	maxBytes int
}

func NewReportStore(db *sql.DB, maxBytes int) *ReportStore {
	return &ReportStore{db: db, maxBytes: maxBytes}
}

// Save overwrites the blob stored under key.
func (s *ReportStore) Save(ctx context.Context, key string, data *domain.ReportData) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if s.maxBytes > 0 && len(blob) > s.maxBytes {
		return fmt.Errorf("%w: report is %d bytes, limit is %d", ErrQuotaExceeded, len(blob), s.maxBytes)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(blob))
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Load returns the report stored under key, or nil when there is none.
func (s *ReportStore) Load(ctx context.Context, key string) (*domain.ReportData, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv_store WHERE key = ?
	`, key).Scan(&blob)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	data := &domain.ReportData{}
	if err := json.Unmarshal([]byte(blob), data); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return data, nil
}

// Delete removes the blob stored under key. Missing keys are not an error.
func (s *ReportStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM kv_store WHERE key = ?
	`, key); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// Revision returns the counter stored under key, or 0 when there is none.
func (s *ReportStore) Revision(ctx context.Context, key string) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv_store WHERE key = ?
	`, key).Scan(&value)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load revision: %w", err)
	}
	rev, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to decode revision: %w", err)
	}
	return rev, nil
}

// BumpRevision increments the counter stored under key and returns the new
// value. The counter is never removed by Delete of another key.
func (s *ReportStore) BumpRevision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, '1', datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1, updated_at = excluded.updated_at
		RETURNING CAST(value AS INTEGER)
	`, key).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("failed to bump revision: %w", err)
	}
	return rev, nil
}
