package schedule

import (
	"testing"
	"time"
)

// fakeDevice implements Device with scripted state.
type fakeDevice struct {
	online    bool
	on        bool
	confirmed bool

	onRequests  int
	offRequests int
}

func (d *fakeDevice) Online() bool     { return d.online }
func (d *fakeDevice) On() (bool, bool) { return d.on, d.confirmed }
func (d *fakeDevice) RequestOn() bool  { d.onRequests++; return true }
func (d *fakeDevice) RequestOff() bool { d.offRequests++; return true }

// testSite is a mid-latitude site where sunrise is around 04:30 UTC and
// sunset around 18:30 UTC in late August.
var testSite = Site{Latitude: 41.694386, Longitude: 2.352831, Location: time.UTC}

func evaluateAt(t *testing.T, e *Evaluator, at time.Time) {
	t.Helper()
	e.now = func() time.Time { return at }
	e.Evaluate()
}

func TestSunTimesOrdering(t *testing.T) {
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	rise, set := testSite.SunTimes(day)
	if !rise.Before(set) {
		t.Fatalf("sunrise %v not before sunset %v", rise, set)
	}
	if rise.Day() != day.Day() || set.Day() != day.Day() {
		t.Errorf("sun times not on requested day: rise=%v set=%v", rise, set)
	}
}

func TestSunsetSunriseWindow(t *testing.T) {
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	rise, set := testSite.SunTimes(day)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"midday", day, false},
		{"just before sunset", set.Add(-time.Minute), false},
		{"just after sunset", set.Add(time.Minute), true},
		{"before sunrise", rise.Add(-time.Minute), true},
		{"after sunrise", rise.Add(time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &fakeDevice{online: true, on: !tt.want, confirmed: true}
			e := NewEvaluator(testSite, []Group{{Mode: ModeSunsetSunrise, Devices: []Device{device}}})
			evaluateAt(t, e, tt.at)

			if tt.want && device.onRequests != 1 {
				t.Errorf("expected RequestOn at %v, got %d on / %d off", tt.at, device.onRequests, device.offRequests)
			}
			if !tt.want && device.offRequests != 1 {
				t.Errorf("expected RequestOff at %v, got %d on / %d off", tt.at, device.onRequests, device.offRequests)
			}
		})
	}
}

func TestSunsetTimeWindowOffAfterMidnight(t *testing.T) {
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	_, set := testSite.SunTimes(day)

	group := Group{Mode: ModeSunsetTime, OffHour: 4, OffMinute: 0}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"midday", day, false},
		{"evening after sunset", set.Add(time.Hour), true},
		{"small hours before off time", time.Date(2026, 8, 25, 3, 30, 0, 0, time.UTC), true},
		{"after off time", time.Date(2026, 8, 25, 4, 30, 0, 0, time.UTC), false},
	}

	e := NewEvaluator(testSite, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rise, sunset := testSite.SunTimes(tt.at)
			if got := e.shouldBeOn(group, tt.at, rise, sunset); got != tt.want {
				t.Errorf("shouldBeOn at %v = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSunsetTimeWindowOffBeforeMidnight(t *testing.T) {
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	rise, set := testSite.SunTimes(day)

	group := Group{Mode: ModeSunsetTime, OffHour: 23, OffMinute: 0}
	e := NewEvaluator(testSite, nil)

	if e.shouldBeOn(group, set.Add(-time.Minute), rise, set) {
		t.Error("expected off before sunset")
	}
	if !e.shouldBeOn(group, set.Add(time.Hour), rise, set) {
		t.Error("expected on between sunset and off time")
	}
	lateNight := time.Date(2026, 8, 25, 23, 30, 0, 0, time.UTC)
	if e.shouldBeOn(group, lateNight, rise, set) {
		t.Error("expected off after the off time")
	}
}

func TestEvaluateSkipsOfflineAndUnconfirmed(t *testing.T) {
	day := time.Date(2026, 8, 25, 22, 0, 0, 0, time.UTC) // night

	offline := &fakeDevice{online: false, on: false, confirmed: true}
	unconfirmed := &fakeDevice{online: true, confirmed: false}
	alreadyOn := &fakeDevice{online: true, on: true, confirmed: true}

	e := NewEvaluator(testSite, []Group{{
		Mode:    ModeSunsetSunrise,
		Devices: []Device{offline, unconfirmed, alreadyOn},
	}})
	evaluateAt(t, e, day)

	for name, d := range map[string]*fakeDevice{
		"offline":     offline,
		"unconfirmed": unconfirmed,
		"already on":  alreadyOn,
	} {
		if d.onRequests != 0 || d.offRequests != 0 {
			t.Errorf("%s device commanded: %d on / %d off", name, d.onRequests, d.offRequests)
		}
	}
}

func TestParseControlMode(t *testing.T) {
	if _, err := ParseControlMode("sunset_sunrise"); err != nil {
		t.Errorf("expected sunset_sunrise accepted: %v", err)
	}
	if _, err := ParseControlMode("sunset_time"); err != nil {
		t.Errorf("expected sunset_time accepted: %v", err)
	}
	if _, err := ParseControlMode("always_on"); err == nil {
		t.Error("expected unknown mode rejected")
	}
}
