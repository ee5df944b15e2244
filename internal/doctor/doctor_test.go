package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/config"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch/mocks"
	"github.com/ay9334524-ux/mecfinder-backend/internal/state"
	"github.com/ay9334524-ux/mecfinder-backend/internal/storage"
)

func validConfig() *config.Config {
	cfg := config.Default()
	cfg.API.JWTSecret = "doctor-secret-0123456789"
	return cfg
}

func sqliteStores(t *testing.T) (Stores, *state.SQLiteStore) {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "doctor.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st := state.NewSQLiteStore(db)
	return Stores{Records: booking.NewSQLStore(db), State: st}, st
}

func TestValidate_Ready(t *testing.T) {
	t.Parallel()
	stores, _ := sqliteStores(t)
	r := New(validConfig(), stores).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if r.PendingRecovery != 0 {
		t.Fatalf("PendingRecovery = %d", r.PendingRecovery)
	}
}

func TestValidate_ConfigErrorsAreSplit(t *testing.T) {
	t.Parallel()
	stores, _ := sqliteStores(t)
	cfg := validConfig()
	cfg.API.JWTSecret = ""
	cfg.Dispatch.RecoveryConcurrency = 0

	r := New(cfg, stores).Validate(context.Background())
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "config", "api.jwt_secret is not set")
	assertHasError(t, r, "config", "recovery_concurrency")
	if len(r.Errors) != 2 {
		t.Fatalf("errors = %v, want one issue per problem", r.Errors)
	}
	if r.Errors[0].Field != "dispatch.recovery_concurrency" && r.Errors[1].Field != "dispatch.recovery_concurrency" {
		t.Fatalf("fields not extracted: %v", r.Errors)
	}
}

func TestValidate_LockStates(t *testing.T) {
	t.Parallel()
	stores, _ := sqliteStores(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  jwt_secret: doctor-secret-0123456789\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	r := New(cfg, stores).Validate(context.Background())
	assertHasWarning(t, r, "config", "not locked")

	if _, err := config.Lock(path); err != nil {
		t.Fatal(err)
	}
	r = New(cfg, stores).Validate(context.Background())
	for _, w := range r.Warnings {
		if w.Field == "lock" {
			t.Fatalf("unexpected lock warning after locking: %v", w)
		}
	}

	if err := os.WriteFile(path, []byte("api:\n  jwt_secret: doctor-secret-0123456789\n  listen: 0.0.0.0:8080\n"), 0600); err != nil {
		t.Fatal(err)
	}
	r = New(cfg, stores).Validate(context.Background())
	if r.Valid {
		t.Fatal("tampered config should be invalid")
	}
	assertHasError(t, r, "config", "integrity")
}

func TestValidate_PendingRecovery(t *testing.T) {
	t.Parallel()
	stores, st := sqliteStores(t)
	snap := state.Snapshot{JobID: "bk-1", CustomerID: "c1", Candidates: []booking.Candidate{{WorkerID: "A"}}, StartedAt: time.Now()}
	if err := st.SaveSnapshot(context.Background(), snap, time.Hour); err != nil {
		t.Fatal(err)
	}

	cfg := validConfig()
	r := New(cfg, stores).Validate(context.Background())
	if !r.Valid || r.PendingRecovery != 1 {
		t.Fatalf("result = %+v", r)
	}
	assertHasWarning(t, r, "recovery", "will be recovered on start")

	cfg.Dispatch.RecoverOnStart = false
	r = New(cfg, stores).Validate(context.Background())
	assertHasWarning(t, r, "recovery", "recover_on_start is off")
}

func TestValidate_StoreFailures(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	records := mocks.NewMockRecordStore(ctrl)
	st := mocks.NewMockStateStore(ctrl)
	records.EXPECT().Get(gomock.Any(), pingBookingID).Return(nil, errors.New("server selection timeout"))
	st.EXPECT().ListSnapshots(gomock.Any()).Return(nil, errors.New("dial tcp: connection refused"))

	r := New(validConfig(), Stores{Records: records, State: st}).Validate(context.Background())
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "storage", "server selection timeout")
	assertHasError(t, r, "storage", "connection refused")
}

func TestValidate_StoresNotOpened(t *testing.T) {
	t.Parallel()
	r := New(validConfig(), Stores{OpenErr: errors.New("connect redis: timeout")}).Validate(context.Background())
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "storage", "connect redis")
	if len(r.Errors) != 1 {
		t.Fatalf("errors = %v, want only the open failure", r.Errors)
	}
}

func TestValidate_Exposure(t *testing.T) {
	t.Parallel()
	stores, _ := sqliteStores(t)
	cfg := validConfig()
	cfg.API.Listen = "0.0.0.0:8080"
	cfg.Metrics.Enabled = false

	r := New(cfg, stores).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("warnings only expected, got errors: %v", r.Errors)
	}
	assertHasWarning(t, r, "api", "all interfaces")
	assertHasWarning(t, r, "metrics", "disabled")
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	if got := FormatHuman(&Result{Valid: true}); got != "Ready.\n" {
		t.Fatalf("FormatHuman(valid) = %q", got)
	}
	got := FormatHuman(&Result{
		Errors:   []Issue{{Category: "storage", Field: "records", Message: "down"}},
		Warnings: []Issue{{Category: "recovery", Message: "2 pending"}},
	})
	for _, want := range []string{"Not ready (1 error(s), 1 warning(s))", "ERROR [storage] records: down", "WARN  [recovery] 2 pending"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func assertHasError(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.Category == category && strings.Contains(e.Message, substring) {
			return
		}
	}
	t.Fatalf("expected error with category=%q containing %q, got: %v", category, substring, r.Errors)
}

func assertHasWarning(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Category == category && strings.Contains(w.Message, substring) {
			return
		}
	}
	t.Fatalf("expected warning with category=%q containing %q, got: %v", category, substring, r.Warnings)
}
