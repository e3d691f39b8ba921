package actuator

import "github.com/JaumeFigueras/sihoa/internal/dispatch"

// Plug is a smart-plug actuator: the shared on/off core plus link quality.
type Plug struct {
	Actuator

	linkQuality *int
}

// NewPlug creates a plug actuator emitting commands on outbound.
func NewPlug(name, ieee string, outbound *dispatch.Queue, logger Logger) *Plug {
	return &Plug{Actuator: newActuator(name, ieee, outbound, logger)}
}

// HandleAvailability consumes a payload from <name>/availability. A
// transition to online triggers a state read, since plugs do not
// volunteer a report on reconnection.
func (p *Plug) HandleAvailability(payload map[string]any) {
	if p.handleAvailability(payload) {
		p.readBack("state")
	}
}

// HandleReport consumes a state report.
func (p *Plug) HandleReport(payload map[string]any) {
	p.handleState(payload)

	if v, ok := intField(payload, "linkquality"); ok {
		p.linkQuality = &v
		if p.recorder != nil {
			p.recorder.RecordLinkQuality(p.name, v)
		}
	}
}

// LinkQuality returns the last reported link quality (0-255).
func (p *Plug) LinkQuality() (int, bool) {
	if p.linkQuality == nil {
		return 0, false
	}
	return *p.linkQuality, true
}
