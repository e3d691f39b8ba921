package inventory

import (
	"strconv"
	"strings"
	"time"
)

// Accepted alias keys per descriptor field. zigbee2mqtt has renamed
// several fields across releases and some forks camel-case them, so each
// field is read from the first alias carrying a usable value.
var (
	ieeeAddressKeys  = []string{"ieee_address", "ieeeAddress", "ieee"}
	friendlyNameKeys = []string{"friendly_name", "friendlyName", "name"}
	networkAddrKeys  = []string{"network_address", "networkAddress"}
	deviceTypeKeys   = []string{"type", "device_type"}
	modelKeys        = []string{"model", "zigbee_model"}
	manufacturerKeys = []string{"manufacturer", "zigbee_manufacturer"}
	fwVersionKeys    = []string{"software_version", "firmware_version"}
	buildDateKeys    = []string{"software_build_id", "firmware_build_date", "date_code"}
)

// firstString returns the first non-empty string found under keys.
func firstString(d map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := d[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// firstValue returns the first non-nil value found under keys.
func firstValue(d map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := d[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// networkAddress converts a raw descriptor value to a 16-bit short
// address. JSON numbers arrive as float64; some bridges quote them.
//
// Returns:
//   - int: The converted address
//   - bool: false when the value is absent or not numeric; the caller
//     keeps the previously stored value
func networkAddress(d map[string]any) (int, bool) {
	v, ok := firstValue(d, networkAddrKeys)
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// buildDateLayouts covers the formats seen in the wild for the firmware
// build date: ISO dates and date-times, compact dates (common in
// date_code, e.g. "20190608") and month-name forms ("NOV-05-2019" on
// some Tuya devices).
var buildDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102",
	"Jan-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// buildDate extracts and permissively parses the firmware build date.
//
// Returns:
//   - time.Time: The parsed date, truncated to a calendar date
//   - bool: false when absent or unparsable; the caller keeps the
//     previously stored value
func buildDate(d map[string]any) (time.Time, bool) {
	raw, ok := firstString(d, buildDateKeys)
	if !ok {
		return time.Time{}, false
	}
	return parseDate(raw)
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	candidates := []string{raw, normalizeMonthCase(raw)}
	for _, candidate := range candidates {
		for _, layout := range buildDateLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}

// normalizeMonthCase rewrites alphabetic runs to title case so layouts
// with month names match values like "NOV-05-2019" or "nov-05-2019".
func normalizeMonthCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	startOfWord := true
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		switch {
		case isAlpha && startOfWord:
			if r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			startOfWord = false
		case isAlpha:
			if r >= 'A' && r <= 'Z' {
				r += 'a' - 'A'
			}
		default:
			startOfWord = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
