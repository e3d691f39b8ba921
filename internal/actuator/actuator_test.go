package actuator

import (
	"testing"
	"time"

	"github.com/JaumeFigueras/sihoa/internal/dispatch"
)

func drain(t *testing.T, q *dispatch.Queue) []dispatch.Message {
	t.Helper()
	var msgs []dispatch.Message
	for {
		msg, ok := q.Pop(0)
		if !ok {
			return msgs
		}
		msgs = append(msgs, msg)
	}
}

func newTestLight(t *testing.T) (*Light, *dispatch.Queue) {
	t.Helper()
	outbound := dispatch.NewQueue(16)
	return NewLight("menjador", "0x00124b0022xxyyzz", outbound, nil), outbound
}

func TestRequestOnEmitsSetAndGet(t *testing.T) {
	light, outbound := newTestLight(t)

	if issued := light.RequestOn(); !issued {
		t.Fatal("expected command to be issued")
	}
	if !light.Pending() {
		t.Error("expected pending flag raised after issuing")
	}

	msgs := drain(t, outbound)
	if len(msgs) != 2 {
		t.Fatalf("expected exactly one set and one get, got %d messages", len(msgs))
	}
	if msgs[0].Topic != "menjador/set" {
		t.Errorf("first message on %q, want menjador/set", msgs[0].Topic)
	}
	if msgs[0].Payload["state"] != "ON" {
		t.Errorf("set payload state = %v, want ON", msgs[0].Payload["state"])
	}
	if msgs[0].Payload["transition"] != 0 {
		t.Errorf("light set command missing zero transition hint: %v", msgs[0].Payload)
	}
	if msgs[1].Topic != "menjador/get" {
		t.Errorf("second message on %q, want menjador/get", msgs[1].Topic)
	}
	if msgs[1].Payload["state"] != "" {
		t.Errorf("get payload = %v, want state mapped to empty string", msgs[1].Payload)
	}
}

func TestRequestGatedWhilePending(t *testing.T) {
	light, outbound := newTestLight(t)

	light.RequestOn()
	drain(t, outbound)

	if issued := light.RequestOn(); issued {
		t.Error("expected request gated while pending")
	}
	if issued := light.RequestOff(); issued {
		t.Error("expected opposite request gated while pending too")
	}
	if msgs := drain(t, outbound); len(msgs) != 0 {
		t.Errorf("expected no outbound messages while pending, got %d", len(msgs))
	}
}

func TestReportConfirmsAndClearsPending(t *testing.T) {
	light, outbound := newTestLight(t)

	light.RequestOn()
	drain(t, outbound)

	light.HandleReport(map[string]any{"state": "ON", "brightness": float64(200)})

	if light.Pending() {
		t.Error("expected pending cleared by confirming report")
	}
	on, confirmed := light.On()
	if !confirmed || !on {
		t.Errorf("expected on confirmed true, got on=%v confirmed=%v", on, confirmed)
	}
	if b, ok := light.Brightness(); !ok || b != 200 {
		t.Errorf("expected brightness 200, got %d (ok=%v)", b, ok)
	}

	// Gate is down again: the next request goes out.
	if issued := light.RequestOff(); !issued {
		t.Error("expected request to be issued after confirmation")
	}
}

func TestPartialReportLeavesStateUnchanged(t *testing.T) {
	light, _ := newTestLight(t)

	light.HandleReport(map[string]any{"state": "ON"})
	light.HandleReport(map[string]any{"brightness": float64(120)})

	on, confirmed := light.On()
	if !confirmed || !on {
		t.Errorf("brightness-only report must not clobber on state, got on=%v confirmed=%v", on, confirmed)
	}
	if b, _ := light.Brightness(); b != 120 {
		t.Errorf("expected brightness 120, got %d", b)
	}
}

func TestReportOffState(t *testing.T) {
	light, _ := newTestLight(t)

	// Anything other than "ON" reads as off.
	light.HandleReport(map[string]any{"state": "OFF"})
	if on, confirmed := light.On(); !confirmed || on {
		t.Errorf("expected confirmed off, got on=%v confirmed=%v", on, confirmed)
	}
}

func TestOnUnconfirmedUntilFirstReport(t *testing.T) {
	light, _ := newTestLight(t)
	if _, confirmed := light.On(); confirmed {
		t.Error("expected state unconfirmed before any report")
	}
}

func TestAvailabilityTransitions(t *testing.T) {
	light, outbound := newTestLight(t)

	if light.Availability() != AvailabilityUnknown {
		t.Errorf("expected initial availability unknown, got %v", light.Availability())
	}

	light.HandleAvailability(map[string]any{"state": "online"})
	if light.Availability() != AvailabilityOnline {
		t.Errorf("expected online, got %v", light.Availability())
	}

	// Going online triggers a read of the non-volunteered attributes.
	msgs := drain(t, outbound)
	if len(msgs) != 1 || msgs[0].Topic != "menjador/get" {
		t.Fatalf("expected one get on coming online, got %v", msgs)
	}
	if _, ok := msgs[0].Payload["power_on_behavior"]; !ok {
		t.Errorf("expected power_on_behavior requested, got %v", msgs[0].Payload)
	}
	if _, ok := msgs[0].Payload["color_temp_startup"]; !ok {
		t.Errorf("expected color_temp_startup requested, got %v", msgs[0].Payload)
	}

	// A repeated online report is not a transition.
	light.HandleAvailability(map[string]any{"state": "online"})
	if msgs := drain(t, outbound); len(msgs) != 0 {
		t.Errorf("expected no read on repeated online, got %v", msgs)
	}

	light.HandleAvailability(map[string]any{"state": "offline"})
	if light.Availability() != AvailabilityOffline {
		t.Errorf("expected offline, got %v", light.Availability())
	}
}

func TestPlugOnlineRequestsState(t *testing.T) {
	outbound := dispatch.NewQueue(16)
	plug := NewPlug("endoll_tv", "0x00124b0033aabbcc", outbound, nil)

	plug.HandleAvailability(map[string]any{"state": "online"})

	msgs := drain(t, outbound)
	if len(msgs) != 1 || msgs[0].Topic != "endoll_tv/get" {
		t.Fatalf("expected one get on coming online, got %v", msgs)
	}
	if msgs[0].Payload["state"] != "" {
		t.Errorf("expected state read request, got %v", msgs[0].Payload)
	}
}

func TestPlugSetCommandHasNoTransition(t *testing.T) {
	outbound := dispatch.NewQueue(16)
	plug := NewPlug("endoll_tv", "0x00124b0033aabbcc", outbound, nil)

	plug.RequestOff()

	msgs := drain(t, outbound)
	if len(msgs) != 2 {
		t.Fatalf("expected set and get, got %d messages", len(msgs))
	}
	if _, ok := msgs[0].Payload["transition"]; ok {
		t.Errorf("plug set command must not carry a transition hint: %v", msgs[0].Payload)
	}
	if msgs[0].Payload["state"] != "OFF" {
		t.Errorf("set payload state = %v, want OFF", msgs[0].Payload["state"])
	}
}

func TestPendingTimeoutReopensGate(t *testing.T) {
	light, outbound := newTestLight(t)
	light.SetPendingTimeout(10 * time.Millisecond)

	light.RequestOn()
	drain(t, outbound)

	if issued := light.RequestOn(); issued {
		t.Fatal("expected gate still up before timeout")
	}

	time.Sleep(20 * time.Millisecond)

	if issued := light.RequestOn(); !issued {
		t.Error("expected gate reopened after pending timeout")
	}
	if msgs := drain(t, outbound); len(msgs) != 2 {
		t.Errorf("expected re-issued set and get, got %d messages", len(msgs))
	}
}

func TestFullOutboundQueueLeavesGateDown(t *testing.T) {
	outbound := dispatch.NewQueue(1)
	light := NewLight("menjador", "0x00124b0022xxyyzz", outbound, nil)

	// Occupy the single slot so the set command cannot be enqueued.
	if err := outbound.Push(dispatch.Message{Topic: "filler"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if issued := light.RequestOn(); issued {
		t.Error("expected no command issued when the queue is full")
	}
	if light.Pending() {
		t.Error("expected gate left down so the next tick retries")
	}
}

func TestTurnOnDefaultsOnlyApplyToOn(t *testing.T) {
	light, outbound := newTestLight(t)
	brightness, colorTemp := 254, 250
	light.SetTurnOnDefaults(&brightness, &colorTemp)

	light.RequestOn()
	msgs := drain(t, outbound)
	if msgs[0].Payload["brightness"] != 254 || msgs[0].Payload["color_temp"] != 250 {
		t.Errorf("turn-on command missing defaults: %v", msgs[0].Payload)
	}

	light.HandleReport(map[string]any{"state": "ON"})
	light.RequestOff()
	msgs = drain(t, outbound)
	if _, ok := msgs[0].Payload["brightness"]; ok {
		t.Errorf("turn-off command must not carry brightness: %v", msgs[0].Payload)
	}
}

type recordedState struct {
	device string
	on     bool
}

type fakeRecorder struct {
	states      []recordedState
	linkQuality map[string]int
}

func (r *fakeRecorder) RecordState(device string, on bool) {
	r.states = append(r.states, recordedState{device: device, on: on})
}

func (r *fakeRecorder) RecordLinkQuality(device string, lq int) {
	if r.linkQuality == nil {
		r.linkQuality = make(map[string]int)
	}
	r.linkQuality[device] = lq
}

func TestRecorderObservesConfirmedChanges(t *testing.T) {
	light, _ := newTestLight(t)
	rec := &fakeRecorder{}
	light.SetRecorder(rec)

	light.HandleReport(map[string]any{"state": "ON", "linkquality": float64(87)})
	light.HandleReport(map[string]any{"state": "ON"}) // unchanged, not recorded
	light.HandleReport(map[string]any{"state": "OFF"})

	if len(rec.states) != 2 {
		t.Fatalf("expected 2 recorded state changes, got %d", len(rec.states))
	}
	if !rec.states[0].on || rec.states[1].on {
		t.Errorf("expected on then off, got %+v", rec.states)
	}
	if rec.linkQuality["menjador"] != 87 {
		t.Errorf("expected link quality 87 recorded, got %v", rec.linkQuality)
	}
}
