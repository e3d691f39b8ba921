package inventory

import "time"

// Record is one persisted device row.
//
// The IEEE (extended) address is a permanent 64-bit identifier assigned at
// manufacturing time, stored in its canonical hex form (e.g.
// "0x00124b0012345678") and used as the primary key. The friendly name is
// unique across all records, active or retired. Optional fields are nil
// when the bridge has never reported them.
type Record struct {
	IEEEAddress  string
	FriendlyName string

	// NetworkAddress is the 16-bit short address; it may change when the
	// device rejoins the network.
	NetworkAddress *int

	FirmwareVersion   *string
	FirmwareBuildDate *time.Time

	DeviceType         *string
	ZigbeeModel        *string
	ZigbeeManufacturer *string

	// CreatedAt is assigned by the database when the row is first written.
	CreatedAt time.Time

	// RetiredAt is nil while the device is active. Set when the device
	// disappears from a bridge snapshot, cleared if it reappears.
	RetiredAt *time.Time
}

// Active reports whether the record has not been retired.
func (r *Record) Active() bool {
	return r.RetiredAt == nil
}
