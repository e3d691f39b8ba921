package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Column value formats. SQLite stores timestamps as TEXT; dates and
// date-times use distinct layouts so the build date stays a plain date.
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05Z"
)

// Repository defines the persistence operations the reconciler and the
// import tool need. The abstraction keeps the reconciliation algorithm
// testable against fakes, although the shipped implementation is SQLite.
type Repository interface {
	// GetByAddress retrieves a record by IEEE address.
	// Returns ErrRecordNotFound if no record exists.
	GetByAddress(ctx context.Context, ieeeAddress string) (*Record, error)

	// List retrieves all records, active and retired, ordered by name.
	List(ctx context.Context) ([]Record, error)

	// ListActive retrieves all records whose retirement timestamp is null.
	ListActive(ctx context.Context) ([]Record, error)

	// Insert creates a new record. CreatedAt is assigned by the database.
	Insert(ctx context.Context, rec *Record) error

	// Update overwrites the mutable fields of an existing record.
	// Returns ErrRecordNotFound if the record does not exist.
	Update(ctx context.Context, rec *Record) error

	// Retire sets the retirement timestamp of a record.
	Retire(ctx context.Context, ieeeAddress string, when time.Time) error
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// letting the same repository run standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	q querier
}

// NewSQLiteRepository creates a repository over an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{q: db}
}

// WithTx returns a repository running all operations inside tx.
func (r *SQLiteRepository) WithTx(tx *sql.Tx) *SQLiteRepository {
	return &SQLiteRepository{q: tx}
}

const recordColumns = `ieee_address, friendly_name, network_address,
	firmware_version, firmware_build_date, device_type, zigbee_model,
	zigbee_manufacturer, created_at, retired_at`

// GetByAddress retrieves a record by IEEE address.
func (r *SQLiteRepository) GetByAddress(ctx context.Context, ieeeAddress string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM devices WHERE ieee_address = ?`

	rec, err := scanRecord(r.q.QueryRowContext(ctx, query, ieeeAddress))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying device by address: %w", err)
	}
	return rec, nil
}

// List retrieves all records ordered by friendly name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM devices ORDER BY friendly_name`
	return r.queryRecords(ctx, query)
}

// ListActive retrieves all records whose retirement timestamp is null.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM devices
		WHERE retired_at IS NULL ORDER BY friendly_name`
	return r.queryRecords(ctx, query)
}

// Insert creates a new record.
//
// Integrity violations (duplicate address, duplicate friendly name,
// out-of-range network address) surface as the driver's native error and
// abort the enclosing transaction.
func (r *SQLiteRepository) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO devices (ieee_address, friendly_name, network_address,
			firmware_version, firmware_build_date, device_type,
			zigbee_model, zigbee_manufacturer, retired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.q.ExecContext(ctx, query,
		rec.IEEEAddress,
		rec.FriendlyName,
		nullableInt(rec.NetworkAddress),
		nullableString(rec.FirmwareVersion),
		nullableDate(rec.FirmwareBuildDate),
		nullableString(rec.DeviceType),
		nullableString(rec.ZigbeeModel),
		nullableString(rec.ZigbeeManufacturer),
		nullableDateTime(rec.RetiredAt),
	)
	if err != nil {
		return fmt.Errorf("inserting device %s: %w", rec.IEEEAddress, err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing record.
func (r *SQLiteRepository) Update(ctx context.Context, rec *Record) error {
	query := `
		UPDATE devices
		SET friendly_name = ?, network_address = ?, firmware_version = ?,
			firmware_build_date = ?, device_type = ?, zigbee_model = ?,
			zigbee_manufacturer = ?, retired_at = ?
		WHERE ieee_address = ?`

	result, err := r.q.ExecContext(ctx, query,
		rec.FriendlyName,
		nullableInt(rec.NetworkAddress),
		nullableString(rec.FirmwareVersion),
		nullableDate(rec.FirmwareBuildDate),
		nullableString(rec.DeviceType),
		nullableString(rec.ZigbeeModel),
		nullableString(rec.ZigbeeManufacturer),
		nullableDateTime(rec.RetiredAt),
		rec.IEEEAddress,
	)
	if err != nil {
		return fmt.Errorf("updating device %s: %w", rec.IEEEAddress, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Retire sets the retirement timestamp of a record.
func (r *SQLiteRepository) Retire(ctx context.Context, ieeeAddress string, when time.Time) error {
	query := `UPDATE devices SET retired_at = ? WHERE ieee_address = ?`

	result, err := r.q.ExecContext(ctx, query, when.UTC().Format(dateTimeLayout), ieeeAddress)
	if err != nil {
		return fmt.Errorf("retiring device %s: %w", ieeeAddress, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking retire result: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iteration

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return records, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec          Record
		networkAddr  sql.NullInt64
		fwVersion    sql.NullString
		fwBuildDate  sql.NullString
		deviceType   sql.NullString
		model        sql.NullString
		manufacturer sql.NullString
		createdAt    string
		retiredAt    sql.NullString
	)

	err := s.Scan(
		&rec.IEEEAddress,
		&rec.FriendlyName,
		&networkAddr,
		&fwVersion,
		&fwBuildDate,
		&deviceType,
		&model,
		&manufacturer,
		&createdAt,
		&retiredAt,
	)
	if err != nil {
		return nil, err
	}

	if networkAddr.Valid {
		v := int(networkAddr.Int64)
		rec.NetworkAddress = &v
	}
	rec.FirmwareVersion = fromNullString(fwVersion)
	rec.DeviceType = fromNullString(deviceType)
	rec.ZigbeeModel = fromNullString(model)
	rec.ZigbeeManufacturer = fromNullString(manufacturer)

	if fwBuildDate.Valid {
		t, err := time.Parse(dateLayout, fwBuildDate.String)
		if err != nil {
			return nil, fmt.Errorf("parsing firmware build date %q: %w", fwBuildDate.String, err)
		}
		rec.FirmwareBuildDate = &t
	}

	rec.CreatedAt, err = time.Parse(dateTimeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}

	if retiredAt.Valid {
		t, err := time.Parse(dateTimeLayout, retiredAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing retired_at %q: %w", retiredAt.String, err)
		}
		rec.RetiredAt = &t
	}

	return &rec, nil
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func nullableDateTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateTimeLayout)
}
