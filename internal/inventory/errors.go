package inventory

import "errors"

var (
	// ErrRecordNotFound is returned when no record exists for an address.
	ErrRecordNotFound = errors.New("device record not found")

	// ErrSnapshotTimeout is returned when the retained device list does
	// not arrive within the configured wait.
	ErrSnapshotTimeout = errors.New("timed out waiting for retained device list")
)
