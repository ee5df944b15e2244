package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/ay9334524-ux/mecfinder-backend/internal/auth"
	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/config"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/doctor"
	"github.com/ay9334524-ux/mecfinder-backend/internal/inspect"
	"github.com/ay9334524-ux/mecfinder-backend/internal/log"
	"github.com/ay9334524-ux/mecfinder-backend/internal/state"
	"github.com/ay9334524-ux/mecfinder-backend/internal/storage"
)

const testSecret = "cli-test-secret-0123456789"

func writeTestConfig(t *testing.T, extra string) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "mecfinder.db")
	body := `service:
  log_level: error
  log_format: text
records:
  sqlite_path: ` + dbPath + `
api:
  jwt_secret: ` + testSecret + `
` + extra
	cfgPath = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dbPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Fatalf("output %q missing version %q", out, version)
	}
}

func TestConfigCheck(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, "")

	out, err := runCLI(t, "--config", cfgPath, "config", "check")
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	for _, want := range []string{"OK", cfgPath, "none", "records: sqlite"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigLockThenTamper(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, "")

	out, err := runCLI(t, "--config", cfgPath, "config", "lock")
	if err != nil {
		t.Fatalf("config lock: %v", err)
	}
	if !strings.Contains(out, config.LockPath(cfgPath)) {
		t.Fatalf("lock output %q does not name the sidecar", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "config", "check")
	if err != nil {
		t.Fatalf("config check after lock: %v", err)
	}
	if !strings.Contains(out, "verified") {
		t.Fatalf("expected verified lock, got:\n%s", out)
	}

	f, err := os.OpenFile(cfgPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("metrics:\n  enabled: false\n")
	_ = f.Close()

	_, err = runCLI(t, "--config", cfgPath, "config", "check")
	if !errors.Is(err, config.ErrIntegrity) {
		t.Fatalf("check after tamper = %v, want ErrIntegrity", err)
	}

	// Relocking a reviewed change is allowed.
	if _, err := runCLI(t, "--config", cfgPath, "config", "lock"); err != nil {
		t.Fatalf("relock: %v", err)
	}
	if _, err := runCLI(t, "--config", cfgPath, "config", "check"); err != nil {
		t.Fatalf("check after relock: %v", err)
	}
}

func TestConfigLockRefusesInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("dispatch:\n  offer_timeout: 10ms\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := runCLI(t, "--config", path, "config", "lock"); err == nil {
		t.Fatal("expected lock of invalid config to fail")
	}
	if _, err := os.Stat(config.LockPath(path)); !os.IsNotExist(err) {
		t.Fatalf("lock sidecar written for invalid config")
	}
}

func TestTokenCommand(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, "")

	out, err := runCLI(t, "--config", cfgPath, "token", "--sub", "mech-7", "--role", "worker", "--ttl", "5m")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	signer, err := auth.NewSigner(testSecret, "mecfinder")
	if err != nil {
		t.Fatal(err)
	}
	p, err := signer.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Verify minted token: %v", err)
	}
	if p.Subject != "mech-7" || p.Role != auth.RoleWorker {
		t.Fatalf("principal = %+v", p)
	}

	if _, err := runCLI(t, "--config", cfgPath, "token", "--sub", "x", "--role", "superuser"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
}

func TestBookingCreateAndInspect(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, "")

	out, err := runCLI(t, "--config", cfgPath, "booking", "create",
		"--id", "bk-100", "--customer", "cust-1", "--service", "flat_tyre", "--lat", "12.97", "--lng", "77.59", "--payout", "450")
	if err != nil {
		t.Fatalf("booking create: %v", err)
	}
	if strings.TrimSpace(out) != "bk-100" {
		t.Fatalf("create output = %q", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "inspect", "bk-100", "--json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var report inspect.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Status != booking.StatusPending || report.CustomerID != "cust-1" || report.AssignedWorkerID != "" {
		t.Fatalf("report = %+v", report)
	}
	if report.ServiceType != "flat_tyre" || report.Dispatch != nil {
		t.Fatalf("report = %+v", report)
	}

	out, err = runCLI(t, "--config", cfgPath, "inspect", "bk-100")
	if err != nil {
		t.Fatalf("inspect text: %v", err)
	}
	if !strings.Contains(out, "Booking ID  : bk-100") {
		t.Fatalf("inspect output:\n%s", out)
	}

	if _, err := runCLI(t, "--config", cfgPath, "inspect", "missing"); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("inspect missing = %v, want ErrNotFound", err)
	}
}

func TestDoctorCommand(t *testing.T) {
	cfgPath, _ := writeTestConfig(t, "")

	out, err := runCLI(t, "--config", cfgPath, "doctor", "--json")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	var result doctor.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if !result.Valid {
		t.Fatalf("result = %+v", result)
	}

	bad, _ := writeTestConfig(t, "dispatch:\n  recovery_concurrency: 0\n")
	out, err = runCLI(t, "--config", bad, "doctor")
	if err == nil {
		t.Fatalf("doctor accepted recovery_concurrency 0:\n%s", out)
	}
	if !strings.Contains(out, "Not ready") || !strings.Contains(out, "dispatch.recovery_concurrency") {
		t.Fatalf("doctor output:\n%s", out)
	}
}

func TestRecoverPlansWithoutApplying(t *testing.T) {
	cfgPath, dbPath := writeTestConfig(t, "")
	ctx := context.Background()

	db, err := storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	records := booking.NewSQLStore(db)
	st := state.NewSQLiteStore(db)
	cands := []booking.Candidate{{WorkerID: "A"}, {WorkerID: "B"}}
	if err := records.Create(ctx, &booking.Record{ID: "bk-live", CustomerID: "c1", Status: booking.StatusSearching}); err != nil {
		t.Fatal(err)
	}
	for _, snap := range []state.Snapshot{
		{JobID: "bk-live", CustomerID: "c1", Candidates: cands, Cursor: 1, StartedAt: time.Now()},
		{JobID: "bk-gone", CustomerID: "c2", Candidates: cands, Cursor: 0, StartedAt: time.Now()},
	} {
		if err := st.SaveSnapshot(ctx, snap, time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	_ = db.Close()

	out, err := runCLI(t, "--config", cfgPath, "recover", "--json")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	var report dispatch.RecoveryReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Scanned != 2 || report.Resumed != 1 || report.Discarded != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Decisions[0].BookingID != "bk-gone" || report.Decisions[1].Cursor != 1 {
		t.Fatalf("decisions = %+v", report.Decisions)
	}

	// A plan leaves the snapshots for serve to act on.
	db, err = storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	snaps, err := state.NewSQLiteStore(db).ListSnapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots after plan = %d, want 2", len(snaps))
	}

	out, err = runCLI(t, "--config", cfgPath, "recover")
	if err != nil {
		t.Fatalf("recover table: %v", err)
	}
	if !strings.Contains(out, "bk-live") || !strings.Contains(out, "resume 1, discard 1") {
		t.Fatalf("table output:\n%s", out)
	}
}

func TestOpenStoresRedisState(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Records.SQLitePath = filepath.Join(t.TempDir(), "records.db")
	cfg.State.Driver = config.DriverRedis
	cfg.State.RedisAddr = mr.Addr()

	st, err := openStores(context.Background(), cfg, log.New(os.Stderr, "error", "text"))
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	defer st.Close()

	if st.pruner != nil {
		t.Fatal("redis state should not need the sqlite pruner")
	}
	seq, err := st.state.NextOfferSeq(context.Background(), "bk-1")
	if err != nil || seq != 1 {
		t.Fatalf("NextOfferSeq = %d, %v", seq, err)
	}
	if len(mr.Keys()) == 0 {
		t.Fatal("expected state keys in redis")
	}
}

func TestOpenStoresGivesUpOnUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Records.SQLitePath = filepath.Join(t.TempDir(), "records.db")
	cfg.Records.ConnectTimeout = 100 * time.Millisecond
	cfg.State.Driver = config.DriverRedis
	cfg.State.RedisAddr = addr

	_, err := openStores(context.Background(), cfg, log.New(os.Stderr, "error", "text"))
	if err == nil || !strings.Contains(err.Error(), "connect redis") {
		t.Fatalf("openStores = %v, want connect redis error", err)
	}
}
