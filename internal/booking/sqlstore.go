package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var bookingColumns = []string{
	"id", "customer_id", "service_type", "vehicle_type", "lat", "lng", "address",
	"estimated_payout", "currency", "status", "assigned_worker_id", "created_at", "updated_at",
}

// SQLStore keeps booking records in the SQLite schema bootstrapped by
// storage.OpenSQLite.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) Create(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("booking id is empty")
	}
	if rec.CustomerID == "" {
		return fmt.Errorf("customer id is empty")
	}
	now := s.now().UTC()
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	query, args, err := sq.Insert("bookings").
		Columns(bookingColumns...).
		Values(
			rec.ID, rec.CustomerID, rec.ServiceType, rec.VehicleType, rec.Location.Lat, rec.Location.Lng,
			rec.Location.Address, rec.EstimatedPayout, rec.Currency, string(rec.Status), rec.AssignedWorkerID,
			rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// Get returns the record with its history, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	query, args, err := sq.Select(bookingColumns...).From("bookings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		rec        Record
		status     string
		assigned   sql.NullString
		createdAtS string
		updatedAtS string
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&rec.ID, &rec.CustomerID, &rec.ServiceType, &rec.VehicleType, &rec.Location.Lat, &rec.Location.Lng,
		&rec.Location.Address, &rec.EstimatedPayout, &rec.Currency, &status, &assigned, &createdAtS, &updatedAtS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read booking: %w", err)
	}
	rec.Status = Status(status)
	if assigned.Valid {
		rec.AssignedWorkerID = &assigned.String
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtS); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtS); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	history, err := s.history(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.History = history
	return &rec, nil
}

func (s *SQLStore) history(ctx context.Context, id string) ([]HistoryEntry, error) {
	query, args, err := sq.Select("id", "action", "worker_id", "position", "note", "at").
		From("booking_history").
		Where(sq.Eq{"booking_id": id}).
		OrderBy("at ASC", "rowid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			e        HistoryEntry
			workerID sql.NullString
			note     sql.NullString
			atS      string
		)
		if err := rows.Scan(&e.ID, &e.Action, &workerID, &e.Position, &note, &atS); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.WorkerID = workerID.String
		e.Note = note.String
		if e.At, err = time.Parse(time.RFC3339Nano, atS); err != nil {
			return nil, fmt.Errorf("parse history at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// CompareAndSet applies t as a single conditional UPDATE. It reports true
// only when exactly one row matched the precondition and was modified.
func (s *SQLStore) CompareAndSet(ctx context.Context, t Transition) (bool, error) {
	if err := t.validate(); err != nil {
		return false, err
	}

	b := sq.Update("bookings").
		Set("status", string(t.To)).
		Set("updated_at", s.now().UTC().Format(time.RFC3339Nano)).
		Where(sq.Eq{"id": t.BookingID, "status": t.fromStrings()})
	if t.AssignTo != "" {
		b = b.Set("assigned_worker_id", t.AssignTo)
	}
	if t.RequireUnassigned {
		b = b.Where(sq.Eq{"assigned_worker_id": nil})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("conditional update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// AppendHistory adds an audit entry. ID and At are filled when unset.
func (s *SQLStore) AppendHistory(ctx context.Context, bookingID string, e HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}

	var workerID, note any
	if e.WorkerID != "" {
		workerID = e.WorkerID
	}
	if e.Note != "" {
		note = e.Note
	}

	query, args, err := sq.Insert("booking_history").
		Columns("id", "booking_id", "action", "worker_id", "position", "note", "at").
		Values(e.ID, bookingID, e.Action, workerID, e.Position, note, e.At.Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build history insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}
