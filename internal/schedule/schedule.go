package schedule

import (
	"fmt"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// ControlMode selects the on-window for a group of devices.
type ControlMode string

const (
	// ModeSunsetSunrise keeps devices on from sunset until the next
	// sunrise.
	ModeSunsetSunrise ControlMode = "sunset_sunrise"

	// ModeSunsetTime keeps devices on from sunset until a fixed local
	// off time.
	ModeSunsetTime ControlMode = "sunset_time"
)

// ParseControlMode validates a control-mode string from configuration.
func ParseControlMode(s string) (ControlMode, error) {
	switch ControlMode(s) {
	case ModeSunsetSunrise, ModeSunsetTime:
		return ControlMode(s), nil
	default:
		return "", fmt.Errorf("unknown control mode %q", s)
	}
}

// Site is the observer position sun times are computed for.
type Site struct {
	Latitude  float64
	Longitude float64

	// Location resolves the local wall-clock off time.
	Location *time.Location
}

// SunTimes returns sunrise and sunset (UTC) for the calendar day of t.
func (s Site) SunTimes(t time.Time) (rise, set time.Time) {
	y, m, d := t.UTC().Date()
	return sunrise.SunriseSunset(s.Latitude, s.Longitude, y, m, d)
}

// Device is an actuator as the evaluator sees it: confirmed state plus
// command entry points. Requests are only issued when the confirmed state
// disagrees with the window.
type Device interface {
	// Online reports whether the device is currently reachable.
	Online() bool

	// On returns the last confirmed state and whether one exists.
	On() (on, confirmed bool)

	RequestOn() bool
	RequestOff() bool
}

// Group is a set of devices sharing one control window.
type Group struct {
	Mode ControlMode

	// OffHour and OffMinute are the local wall-clock off time for
	// ModeSunsetTime; ignored for ModeSunsetSunrise.
	OffHour   int
	OffMinute int

	Devices []Device
}

// Evaluator applies control windows to device groups once per tick.
type Evaluator struct {
	site   Site
	groups []Group

	// now is replaceable for tests.
	now func() time.Time
}

// NewEvaluator creates an evaluator for the given site and groups.
func NewEvaluator(site Site, groups []Group) *Evaluator {
	if site.Location == nil {
		site.Location = time.UTC
	}
	return &Evaluator{
		site:   site,
		groups: groups,
		now:    time.Now,
	}
}

// Evaluate computes each group's desired state for the current instant
// and nudges devices whose confirmed state differs.
func (e *Evaluator) Evaluate() {
	now := e.now().UTC()
	rise, set := e.site.SunTimes(now)

	for _, group := range e.groups {
		desired := e.shouldBeOn(group, now, rise, set)
		applyDesired(desired, group.Devices)
	}
}

// shouldBeOn decides the group's window state at now, given today's sun
// times.
func (e *Evaluator) shouldBeOn(group Group, now, rise, set time.Time) bool {
	switch group.Mode {
	case ModeSunsetSunrise:
		return now.After(set) || now.Equal(set) || now.Before(rise)

	case ModeSunsetTime:
		local := now.In(e.site.Location)
		off := time.Date(local.Year(), local.Month(), local.Day(),
			group.OffHour, group.OffMinute, 0, 0, e.site.Location)

		if off.After(set) {
			// Off time before midnight: on strictly between sunset
			// and the off time.
			return (now.After(set) || now.Equal(set)) && now.Before(off)
		}
		// Off time after midnight: on late in the evening or in the
		// small hours before the off time.
		return now.After(set) || now.Equal(set) || now.Before(off)

	default:
		return false
	}
}

// applyDesired issues at most one command per device: only online devices
// with a confirmed state opposite to the desired one are commanded.
// Unconfirmed devices wait for their first report.
func applyDesired(desired bool, devices []Device) {
	for _, device := range devices {
		if !device.Online() {
			continue
		}
		on, confirmed := device.On()
		if !confirmed || on == desired {
			continue
		}
		if desired {
			device.RequestOn()
		} else {
			device.RequestOff()
		}
	}
}
