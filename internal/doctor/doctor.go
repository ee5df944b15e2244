// Package doctor checks whether a mecfinder deployment is ready to serve:
// its configuration, its stores and the dispatch state it would recover.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/config"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/lock"
	"github.com/ay9334524-ux/mecfinder-backend/internal/storage"
)

// pingBookingID is looked up to prove the record store answers queries.
const pingBookingID = "__mecfinder_doctor_ping__"

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
	// PendingRecovery counts persisted snapshots serve would act on.
	PendingRecovery int `json:"pending_recovery"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Stores are the opened stores to check. OpenErr is set when opening them
// failed, in which case Records and State are nil.
type Stores struct {
	Records dispatch.RecordStore
	State   dispatch.StateStore
	OpenErr error
}

type Doctor struct {
	cfg    *config.Config
	stores Stores
}

func New(cfg *config.Config, stores Stores) *Doctor {
	return &Doctor{cfg: cfg, stores: stores}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateConfig(r)
	d.validateLock(r)
	d.checkPlacement(r)
	d.checkRecords(ctx, r)
	d.checkState(ctx, r)
	d.checkPIDFile(r)
	d.warnExposure(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateConfig reports every problem config.Validate finds as its own issue.
func (d *Doctor) validateConfig(r *Result) {
	err := config.Validate(d.cfg)
	if err == nil {
		return
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		field, _, _ := strings.Cut(e.Error(), " ")
		d.addError(r, "config", field, e.Error())
	}
}

func (d *Doctor) validateLock(r *Result) {
	if d.cfg.SourcePath == "" {
		return
	}
	locked, err := config.VerifyLock(d.cfg.SourcePath)
	switch {
	case errors.Is(err, config.ErrIntegrity):
		d.addError(r, "config", "lock", err.Error())
	case err != nil:
		d.addError(r, "config", "lock", fmt.Sprintf("cannot verify lock: %v", err))
	case !locked:
		d.addWarning(r, "config", "lock", "config is not locked; run 'mecfinder config lock' after review")
	}
}

func (d *Doctor) checkRecords(ctx context.Context, r *Result) {
	if d.stores.OpenErr != nil {
		d.addError(r, "storage", "", fmt.Sprintf("stores could not be opened: %v", d.stores.OpenErr))
		return
	}
	if d.stores.Records == nil {
		d.addError(r, "storage", "records", "no record store configured")
		return
	}
	_, err := d.stores.Records.Get(ctx, pingBookingID)
	if err != nil && !errors.Is(err, booking.ErrNotFound) {
		d.addError(r, "storage", "records", fmt.Sprintf("record store query failed: %v", err))
	}
}

func (d *Doctor) checkState(ctx context.Context, r *Result) {
	if d.stores.OpenErr != nil {
		return
	}
	if d.stores.State == nil {
		d.addError(r, "storage", "state", "no dispatch state store configured")
		return
	}
	snaps, err := d.stores.State.ListSnapshots(ctx)
	if err != nil {
		d.addError(r, "storage", "state", fmt.Sprintf("dispatch state query failed: %v", err))
		return
	}
	r.PendingRecovery = len(snaps)
	if len(snaps) == 0 {
		return
	}
	if d.cfg.Dispatch.RecoverOnStart {
		d.addWarning(r, "recovery", "", fmt.Sprintf("%d dispatch snapshot(s) will be recovered on start", len(snaps)))
	} else {
		d.addWarning(r, "recovery", "dispatch.recover_on_start",
			fmt.Sprintf("%d dispatch snapshot(s) persisted but recover_on_start is off; they expire after %s", len(snaps), d.cfg.Dispatch.SnapshotTTL))
	}
}

// checkPlacement reports where the SQLite file would live when either store
// uses it.
func (d *Doctor) checkPlacement(r *Result) {
	if !d.cfg.UsesSQLite() || d.cfg.Records.SQLitePath == "" {
		return
	}
	p, err := storage.InspectPlacement(d.cfg.Records.SQLitePath)
	switch {
	case err != nil:
		d.addWarning(r, "storage", "records.sqlite_path", err.Error())
	case p.Network:
		d.addError(r, "storage", "records.sqlite_path", p.Err().Error())
	case !p.Known:
		d.addWarning(r, "storage", "records.sqlite_path",
			fmt.Sprintf("cannot tell which filesystem %s is on; keep it on a local disk", p.Dir))
	}
}

// checkPIDFile warns when another live process already holds the pid file.
func (d *Doctor) checkPIDFile(r *Result) {
	path := d.cfg.Service.PIDFile
	if path == "" {
		return
	}
	pid, ok := lock.Holder(path)
	if !ok || pid == os.Getpid() {
		return
	}
	if err := syscall.Kill(pid, 0); err == nil || errors.Is(err, syscall.EPERM) {
		d.addWarning(r, "service", "service.pid_file", fmt.Sprintf("pid file %s is held by running process %d", path, pid))
	}
}

func (d *Doctor) warnExposure(r *Result) {
	if !d.cfg.Metrics.Enabled {
		d.addWarning(r, "metrics", "metrics.enabled", "metrics are disabled; /metrics will not be served")
	}
	host, _, err := net.SplitHostPort(d.cfg.API.Listen)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		d.addWarning(r, "api", "api.listen", fmt.Sprintf("API listens on all interfaces (%s)", d.cfg.API.Listen))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Ready.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Ready (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Not ready (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
