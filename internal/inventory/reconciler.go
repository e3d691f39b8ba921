package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaumeFigueras/sihoa/internal/infrastructure/database"
)

// Logger is the minimal logging interface the reconciler needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// runLogger stamps every line with the reconciliation run ID.
type runLogger struct {
	inner Logger
	runID string
}

func withRun(inner Logger, runID string) Logger {
	return runLogger{inner: inner, runID: runID}
}

func (l runLogger) Debug(msg string, args ...any) {
	l.inner.Debug(msg, append(args, "run_id", l.runID)...)
}

func (l runLogger) Info(msg string, args ...any) {
	l.inner.Info(msg, append(args, "run_id", l.runID)...)
}

func (l runLogger) Warn(msg string, args ...any) {
	l.inner.Warn(msg, append(args, "run_id", l.runID)...)
}

// Reconciler aligns the persisted inventory with a bridge snapshot.
type Reconciler struct {
	db     *database.DB
	logger Logger

	// now is replaceable for tests.
	now func() time.Time
}

// NewReconciler creates a reconciler over an open database.
// logger may be nil.
func NewReconciler(db *database.DB, logger Logger) *Reconciler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Reconciler{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile upserts every descriptor in snapshot and soft-retires active
// records absent from it, all in one transaction.
//
// Descriptors missing either identifier (IEEE address or friendly name
// under any accepted alias) are skipped and count toward neither total.
// Optional fields update only when the descriptor carries a usable value;
// conversion failures (non-numeric network address, unparsable build
// date) keep the stored value and the descriptor still counts as
// upserted. Integrity violations abort the whole transaction: the caller
// must treat reconciliation as all-or-nothing.
//
// Parameters:
//   - ctx: Cancellation context for the transaction
//   - snapshot: Device descriptors from <base>/bridge/devices
//
// Returns:
//   - int: Descriptors upserted (created or updated)
//   - int: Active records newly retired
//   - error: The first persistence error, after rollback
func (r *Reconciler) Reconcile(ctx context.Context, snapshot []map[string]any) (upserted, retired int, err error) {
	// Run ID correlates the log lines of one reconciliation.
	log := withRun(r.logger, uuid.NewString())
	log.Info("reconciliation started", "descriptors", len(snapshot))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // Original error wins
		}
	}()

	repo := (&SQLiteRepository{}).WithTx(tx)

	active := make(map[string]struct{}, len(snapshot))
	for _, descriptor := range snapshot {
		ieee, ok := firstString(descriptor, ieeeAddressKeys)
		if !ok {
			log.Debug("descriptor skipped, no ieee address", "descriptor", descriptor)
			continue
		}
		name, ok := firstString(descriptor, friendlyNameKeys)
		if !ok {
			log.Debug("descriptor skipped, no friendly name", "ieee_address", ieee)
			continue
		}

		if err = r.upsert(ctx, repo, ieee, name, descriptor); err != nil {
			return 0, 0, err
		}
		active[ieee] = struct{}{}
		upserted++
	}

	existing, err := repo.ListActive(ctx)
	if err != nil {
		return 0, 0, err
	}
	retireTime := r.now().UTC()
	for i := range existing {
		if _, present := active[existing[i].IEEEAddress]; present {
			continue
		}
		if err = repo.Retire(ctx, existing[i].IEEEAddress, retireTime); err != nil {
			return 0, 0, err
		}
		log.Info("device retired",
			"ieee_address", existing[i].IEEEAddress,
			"friendly_name", existing[i].FriendlyName,
		)
		retired++
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing reconciliation: %w", err)
	}

	log.Info("inventory reconciled", "upserted", upserted, "retired", retired)
	return upserted, retired, nil
}

// upsert creates or updates one record from a descriptor. The friendly
// name is always overwritten and the retirement mark always cleared; the
// optional fields follow the keep-on-absence rules.
func (r *Reconciler) upsert(ctx context.Context, repo *SQLiteRepository, ieee, name string, descriptor map[string]any) error {
	rec, err := repo.GetByAddress(ctx, ieee)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		rec = &Record{IEEEAddress: ieee}
	case err != nil:
		return err
	}

	rec.FriendlyName = name
	rec.RetiredAt = nil

	if addr, ok := networkAddress(descriptor); ok {
		rec.NetworkAddress = &addr
	}
	if v, ok := firstString(descriptor, deviceTypeKeys); ok {
		rec.DeviceType = &v
	}
	if v, ok := firstString(descriptor, modelKeys); ok {
		rec.ZigbeeModel = &v
	}
	if v, ok := firstString(descriptor, manufacturerKeys); ok {
		rec.ZigbeeManufacturer = &v
	}
	if v, ok := firstString(descriptor, fwVersionKeys); ok {
		rec.FirmwareVersion = &v
	}
	if date, ok := buildDate(descriptor); ok {
		rec.FirmwareBuildDate = &date
	}

	if rec.CreatedAt.IsZero() {
		return repo.Insert(ctx, rec)
	}
	return repo.Update(ctx, rec)
}
