package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ay9334524-ux/mecfinder-backend/internal/log"
)

// SQLiteStore keeps snapshots, offer markers and offer sequences in the
// dispatch_* tables. Expiry is a unix-millisecond column; expired rows are
// invisible to reads and removed by Prune.
type SQLiteStore struct {
	db           *sql.DB
	now          func() time.Time
	seqRetention time.Duration
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:           db,
		now:          time.Now,
		seqRetention: DefaultSeqRetention,
	}
}

func (s *SQLiteStore) expiry(ttl time.Duration) (time.Time, int64) {
	at := s.now().Add(ttl).UTC()
	return at, at.UnixMilli()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap Snapshot, ttl time.Duration) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.SavedAt = s.now().UTC()
	body, err := seal(snap)
	if err != nil {
		return err
	}
	_, exp := s.expiry(ttl)

	_, err = s.db.ExecContext(ctx, `
INSERT INTO dispatch_snapshots(job_id, body, expires_at)
VALUES(?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET body = excluded.body, expires_at = excluded.expires_at;
`, snap.JobID, body, exp)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM dispatch_snapshots WHERE job_id = ?;", jobID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns every live snapshot. Entries that fail their checksum
// are skipped.
func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT job_id, body FROM dispatch_snapshots
WHERE expires_at > ?
ORDER BY job_id ASC;
`, s.now().UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			jobID string
			body  []byte
		)
		if err := rows.Scan(&jobID, &body); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap Snapshot
		if err := open(body, &snap); err != nil {
			log.WithComponent("state").Warn("skipping unreadable snapshot", "job_id", jobID, "error", err)
			continue
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SetOffer(ctx context.Context, m OfferMarker, ttl time.Duration) error {
	if m.JobID == "" || m.WorkerID == "" {
		return fmt.Errorf("offer marker needs job and worker ids")
	}
	var exp int64
	m.ExpiresAt, exp = s.expiry(ttl)
	body, err := seal(m)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO dispatch_offers(job_id, body, expires_at)
VALUES(?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET body = excluded.body, expires_at = excluded.expires_at;
`, m.JobID, body, exp)
	if err != nil {
		return fmt.Errorf("set offer marker: %w", err)
	}
	return nil
}

// GetOffer returns (nil, nil) when no live marker exists.
func (s *SQLiteStore) GetOffer(ctx context.Context, jobID string) (*OfferMarker, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM dispatch_offers WHERE job_id = ? AND expires_at > ?;",
		jobID, s.now().UTC().UnixMilli(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read offer marker: %w", err)
	}

	var m OfferMarker
	if err := open(body, &m); err != nil {
		log.WithComponent("state").Warn("ignoring unreadable offer marker", "job_id", jobID, "error", err)
		return nil, nil
	}
	return &m, nil
}

func (s *SQLiteStore) ClearOffer(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM dispatch_offers WHERE job_id = ?;", jobID); err != nil {
		return fmt.Errorf("clear offer marker: %w", err)
	}
	return nil
}

// NextOfferSeq atomically increments the job's offer counter. A counter past
// its retention restarts at 1.
func (s *SQLiteStore) NextOfferSeq(ctx context.Context, jobID string) (int64, error) {
	now := s.now().UTC().UnixMilli()
	_, exp := s.expiry(s.seqRetention)

	var seq int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO dispatch_seq(job_id, seq, expires_at)
VALUES(?, 1, ?)
ON CONFLICT(job_id) DO UPDATE SET
  seq = CASE WHEN dispatch_seq.expires_at <= ? THEN 1 ELSE dispatch_seq.seq + 1 END,
  expires_at = excluded.expires_at
RETURNING seq;
`, jobID, exp, now).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next offer seq: %w", err)
	}
	return seq, nil
}

// Prune deletes expired rows and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context) (int64, error) {
	now := s.now().UTC().UnixMilli()
	var total int64
	for _, table := range []string{"dispatch_snapshots", "dispatch_offers", "dispatch_seq"} {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE expires_at <= ?;", now)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("prune %s rows affected: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// RunPruner calls Prune every interval until ctx is done.
func (s *SQLiteStore) RunPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	logger := log.WithComponent("state")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx)
			if err != nil {
				logger.Warn("prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("pruned expired dispatch state", "rows", n)
			}
		}
	}
}
