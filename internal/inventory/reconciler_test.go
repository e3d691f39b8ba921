package inventory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/JaumeFigueras/sihoa/internal/infrastructure/database"
	_ "github.com/JaumeFigueras/sihoa/migrations" // register embedded migrations
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "sihoa_test.db"),
		WALMode:     false,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func descriptor(ieee, name string, extra map[string]any) map[string]any {
	d := map[string]any{"ieee_address": ieee, "friendly_name": name}
	for k, v := range extra {
		d[k] = v
	}
	return d
}

func TestRepositoryOptionalFieldsRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	// Bare record: every optional column stored and read back as NULL.
	if err := repo.Insert(ctx, &Record{IEEEAddress: "0x0001", FriendlyName: "menjador"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	bare, err := repo.GetByAddress(ctx, "0x0001")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if bare.NetworkAddress != nil || bare.FirmwareVersion != nil || bare.FirmwareBuildDate != nil ||
		bare.DeviceType != nil || bare.ZigbeeModel != nil || bare.ZigbeeManufacturer != nil {
		t.Errorf("expected all optional fields nil, got %+v", bare)
	}
	if bare.RetiredAt != nil {
		t.Errorf("expected retired_at nil, got %v", bare.RetiredAt)
	}

	// Full record: every optional column survives the round trip.
	addr := 1024
	version := "2.3.093"
	buildDate := time.Date(2019, 6, 8, 0, 0, 0, 0, time.UTC)
	deviceType := "Router"
	model := "LED1836G9"
	manufacturer := "IKEA"
	full := &Record{
		IEEEAddress:        "0x0002",
		FriendlyName:       "endoll_tv",
		NetworkAddress:     &addr,
		FirmwareVersion:    &version,
		FirmwareBuildDate:  &buildDate,
		DeviceType:         &deviceType,
		ZigbeeModel:        &model,
		ZigbeeManufacturer: &manufacturer,
	}
	if err := repo.Insert(ctx, full); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	stored, err := repo.GetByAddress(ctx, "0x0002")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if stored.FirmwareVersion == nil || *stored.FirmwareVersion != version {
		t.Errorf("firmware version = %v, want %s", stored.FirmwareVersion, version)
	}
	if stored.DeviceType == nil || *stored.DeviceType != deviceType {
		t.Errorf("device type = %v, want %s", stored.DeviceType, deviceType)
	}
	if stored.ZigbeeModel == nil || *stored.ZigbeeModel != model {
		t.Errorf("model = %v, want %s", stored.ZigbeeModel, model)
	}
	if stored.ZigbeeManufacturer == nil || *stored.ZigbeeManufacturer != manufacturer {
		t.Errorf("manufacturer = %v, want %s", stored.ZigbeeManufacturer, manufacturer)
	}
	if stored.NetworkAddress == nil || *stored.NetworkAddress != addr {
		t.Errorf("network address = %v, want %d", stored.NetworkAddress, addr)
	}
	if stored.FirmwareBuildDate == nil || !stored.FirmwareBuildDate.Equal(buildDate) {
		t.Errorf("build date = %v, want %v", stored.FirmwareBuildDate, buildDate)
	}
}

func TestReconcileNewDevices(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	ctx := context.Background()

	snapshot := []map[string]any{
		descriptor("0x0001", "menjador", map[string]any{
			"network_address":  float64(33),
			"type":             "Router",
			"model":            "LED1836G9",
			"manufacturer":     "IKEA",
			"software_version": "2.3.093",
			"date_code":        "20190608",
		}),
		descriptor("0x0002", "endoll_tv", nil),
	}

	upserted, retired, err := rec.Reconcile(ctx, snapshot)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if upserted != 2 || retired != 0 {
		t.Errorf("expected (2, 0), got (%d, %d)", upserted, retired)
	}

	repo := NewSQLiteRepository(db.DB)
	stored, err := repo.GetByAddress(ctx, "0x0001")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if stored.FriendlyName != "menjador" {
		t.Errorf("friendly name = %q, want menjador", stored.FriendlyName)
	}
	if stored.NetworkAddress == nil || *stored.NetworkAddress != 33 {
		t.Errorf("network address = %v, want 33", stored.NetworkAddress)
	}
	if stored.ZigbeeModel == nil || *stored.ZigbeeModel != "LED1836G9" {
		t.Errorf("model = %v, want LED1836G9", stored.ZigbeeModel)
	}
	if stored.FirmwareBuildDate == nil || stored.FirmwareBuildDate.Format("2006-01-02") != "2019-06-08" {
		t.Errorf("build date = %v, want 2019-06-08", stored.FirmwareBuildDate)
	}
	if stored.RetiredAt != nil {
		t.Error("new record must not be retired")
	}
	if stored.CreatedAt.IsZero() {
		t.Error("created_at must be assigned by the database")
	}
}

func TestReconcileEmptySnapshotRetiresActive(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	ctx := context.Background()

	// Seed one active and one already-retired record.
	if _, _, err := rec.Reconcile(ctx, []map[string]any{
		descriptor("0x0001", "menjador", nil),
		descriptor("0x0002", "endoll_tv", nil),
	}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}
	if _, _, err := rec.Reconcile(ctx, []map[string]any{
		descriptor("0x0001", "menjador", nil),
	}); err != nil {
		t.Fatalf("first retirement failed: %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	previouslyRetired, err := repo.GetByAddress(ctx, "0x0002")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if previouslyRetired.RetiredAt == nil {
		t.Fatal("expected 0x0002 retired by the previous reconciliation")
	}
	firstRetirement := *previouslyRetired.RetiredAt

	upserted, retired, err := rec.Reconcile(ctx, []map[string]any{})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if upserted != 0 || retired != 1 {
		t.Errorf("expected (0, 1), got (%d, %d)", upserted, retired)
	}

	// The already-retired record keeps its original timestamp.
	after, err := repo.GetByAddress(ctx, "0x0002")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if after.RetiredAt == nil || !after.RetiredAt.Equal(firstRetirement) {
		t.Errorf("already-retired timestamp changed: %v -> %v", firstRetirement, after.RetiredAt)
	}
}

func TestReconcileReactivatesRetired(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	ctx := context.Background()

	if _, _, err := rec.Reconcile(ctx, []map[string]any{descriptor("0x0001", "menjador", nil)}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}
	if _, _, err := rec.Reconcile(ctx, []map[string]any{}); err != nil {
		t.Fatalf("retiring failed: %v", err)
	}

	upserted, retired, err := rec.Reconcile(ctx, []map[string]any{descriptor("0x0001", "menjador", nil)})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if upserted != 1 || retired != 0 {
		t.Errorf("expected (1, 0), got (%d, %d)", upserted, retired)
	}

	repo := NewSQLiteRepository(db.DB)
	stored, err := repo.GetByAddress(ctx, "0x0001")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if stored.RetiredAt != nil {
		t.Error("expected retirement cleared on reappearance")
	}
}

func TestReconcileBadNetworkAddressKeepsStored(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	ctx := context.Background()

	if _, _, err := rec.Reconcile(ctx, []map[string]any{
		descriptor("0x0001", "menjador", map[string]any{"network_address": float64(33)}),
	}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	upserted, _, err := rec.Reconcile(ctx, []map[string]any{
		descriptor("0x0001", "menjador", map[string]any{"network_address": "not-an-int"}),
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if upserted != 1 {
		t.Errorf("conversion failure must still count as upserted, got %d", upserted)
	}

	repo := NewSQLiteRepository(db.DB)
	stored, err := repo.GetByAddress(ctx, "0x0001")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if stored.NetworkAddress == nil || *stored.NetworkAddress != 33 {
		t.Errorf("network address = %v, want previous value 33", stored.NetworkAddress)
	}
}

func TestReconcileSkipsDescriptorsMissingIdentifiers(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	ctx := context.Background()

	snapshot := []map[string]any{
		{"friendly_name": "no_address"},
		{"ieee_address": "0x0003"},
		{"type": "Coordinator"},
	}

	upserted, retired, err := rec.Reconcile(ctx, snapshot)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if upserted != 0 || retired != 0 {
		t.Errorf("expected (0, 0), got (%d, %d)", upserted, retired)
	}

	repo := NewSQLiteRepository(db.DB)
	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records created, got %d", len(records))
	}
}

func TestReconcileIdempotentForStableSnapshot(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	ctx := context.Background()

	snapshot := []map[string]any{
		descriptor("0x0001", "menjador", map[string]any{"model": "LED1836G9"}),
		descriptor("0x0002", "endoll_tv", nil),
	}

	for round := 1; round <= 2; round++ {
		upserted, retired, err := rec.Reconcile(ctx, snapshot)
		if err != nil {
			t.Fatalf("round %d failed: %v", round, err)
		}
		if upserted != 2 || retired != 0 {
			t.Errorf("round %d: expected (2, 0), got (%d, %d)", round, upserted, retired)
		}
	}
}

func TestReconcileAbsentOptionalFieldsKeepStored(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	ctx := context.Background()

	if _, _, err := rec.Reconcile(ctx, []map[string]any{
		descriptor("0x0001", "menjador", map[string]any{
			"model":            "LED1836G9",
			"software_version": "2.3.093",
		}),
	}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	// A later snapshot without the optional fields must not clear them,
	// but a renamed device always takes the new friendly name.
	if _, _, err := rec.Reconcile(ctx, []map[string]any{
		descriptor("0x0001", "menjador_nou", nil),
	}); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	stored, err := repo.GetByAddress(ctx, "0x0001")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if stored.FriendlyName != "menjador_nou" {
		t.Errorf("friendly name = %q, want menjador_nou", stored.FriendlyName)
	}
	if stored.ZigbeeModel == nil || *stored.ZigbeeModel != "LED1836G9" {
		t.Errorf("model = %v, want kept LED1836G9", stored.ZigbeeModel)
	}
	if stored.FirmwareVersion == nil || *stored.FirmwareVersion != "2.3.093" {
		t.Errorf("firmware version = %v, want kept 2.3.093", stored.FirmwareVersion)
	}
}

func TestReconcileAliasKeys(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	ctx := context.Background()

	snapshot := []map[string]any{
		{
			"ieeeAddress":    "0x0009",
			"friendlyName":   "terrassa",
			"networkAddress": float64(1024),
			"device_type":    "EndDevice",
		},
	}

	if _, _, err := rec.Reconcile(ctx, snapshot); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	stored, err := repo.GetByAddress(ctx, "0x0009")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if stored.FriendlyName != "terrassa" {
		t.Errorf("friendly name = %q, want terrassa", stored.FriendlyName)
	}
	if stored.NetworkAddress == nil || *stored.NetworkAddress != 1024 {
		t.Errorf("network address = %v, want 1024", stored.NetworkAddress)
	}
	if stored.DeviceType == nil || *stored.DeviceType != "EndDevice" {
		t.Errorf("device type = %v, want EndDevice", stored.DeviceType)
	}
}

func TestReconcileDuplicateFriendlyNameAborts(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	ctx := context.Background()

	if _, _, err := rec.Reconcile(ctx, []map[string]any{
		descriptor("0x0001", "menjador", nil),
	}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	// A second address claiming the same unique name violates the
	// constraint; the whole unit of work rolls back.
	_, _, err := rec.Reconcile(ctx, []map[string]any{
		descriptor("0x0001", "menjador", nil),
		descriptor("0x0002", "menjador", nil),
	})
	if err == nil {
		t.Fatal("expected integrity violation to surface")
	}

	repo := NewSQLiteRepository(db.DB)
	if _, err := repo.GetByAddress(ctx, "0x0002"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected rollback to drop 0x0002, got %v", err)
	}
}

func TestParseDateFormats(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2019-06-08", "2019-06-08"},
		{"20190608", "2019-06-08"},
		{"NOV-05-2019", "2019-11-05"},
		{"2021-03-18T07:22:54Z", "2021-03-18"},
		{"2021-03-18 07:22:54", "2021-03-18"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseDate(tt.raw)
			if !ok {
				t.Fatalf("parseDate(%q) failed", tt.raw)
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("parseDate(%q) = %v, want %s", tt.raw, got, tt.want)
			}
		})
	}

	if _, ok := parseDate("unknown"); ok {
		t.Error("expected unparsable value rejected")
	}
	if _, ok := parseDate(""); ok {
		t.Error("expected empty value rejected")
	}
}

func TestReconcileRespectsContext(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := rec.Reconcile(ctx, []map[string]any{descriptor("0x0001", "menjador", nil)}); err == nil {
		t.Error("expected error from cancelled context")
	}
}

// now override sanity: retirement uses the reconciler clock.
func TestRetirementTimestampUsesClock(t *testing.T) {
	db := setupTestDB(t)
	rec := NewReconciler(db, nil)
	fixed := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }
	ctx := context.Background()

	if _, _, err := rec.Reconcile(ctx, []map[string]any{descriptor("0x0001", "menjador", nil)}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}
	if _, _, err := rec.Reconcile(ctx, []map[string]any{}); err != nil {
		t.Fatalf("retiring failed: %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	stored, err := repo.GetByAddress(ctx, "0x0001")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if stored.RetiredAt == nil || !stored.RetiredAt.Equal(fixed) {
		t.Errorf("retired_at = %v, want %v", stored.RetiredAt, fixed)
	}
}
