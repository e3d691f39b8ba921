package actuator

import "github.com/JaumeFigueras/sihoa/internal/dispatch"

// Light is a dimmable light actuator.
//
// Beyond the shared on/off core it tracks the optional attributes lights
// report: brightness, colour mode and temperature, link quality, power-on
// behaviour and startup colour temperature. Reports are partial; a field
// absent from a given report leaves the known value unchanged.
type Light struct {
	Actuator

	brightness       *int
	colorMode        *string
	colorTemp        *int
	linkQuality      *int
	powerOnBehavior  *string
	colorTempStartup *int
}

// NewLight creates a light actuator emitting commands on outbound.
//
// Parameters:
//   - name: Friendly name, also the device's topic namespace
//   - ieee: Permanent hardware address
//   - outbound: Queue set/get commands are appended to
//   - logger: Optional logger, may be nil
//
// Set commands carry a zero transition hint so switching is instant
// regardless of the device's configured default transition.
func NewLight(name, ieee string, outbound *dispatch.Queue, logger Logger) *Light {
	l := &Light{Actuator: newActuator(name, ieee, outbound, logger)}
	l.setHints = map[string]any{"transition": 0}
	return l
}

// SetTurnOnDefaults makes every turn-on command carry the configured
// brightness and colour temperature, so the light always comes up at its
// intended level regardless of what the last manual adjustment left
// behind. Nil arguments leave the corresponding attribute uncommanded.
func (l *Light) SetTurnOnDefaults(brightness, colorTemp *int) {
	l.onHints = map[string]any{}
	if brightness != nil {
		l.onHints["brightness"] = *brightness
	}
	if colorTemp != nil {
		l.onHints["color_temp"] = *colorTemp
	}
}

// HandleAvailability consumes a payload from <name>/availability. A
// transition to online triggers a read of the attributes the device does
// not volunteer in state reports.
func (l *Light) HandleAvailability(payload map[string]any) {
	if l.handleAvailability(payload) {
		l.readBack("power_on_behavior", "color_temp_startup")
	}
}

// HandleReport consumes a state report. The state field, when present,
// confirms the pending command; every other field updates its attribute
// only when present.
func (l *Light) HandleReport(payload map[string]any) {
	l.handleState(payload)

	if v, ok := intField(payload, "brightness"); ok {
		l.brightness = &v
	}
	if v, ok := stringField(payload, "color_mode"); ok {
		l.colorMode = &v
	}
	if v, ok := intField(payload, "color_temp"); ok {
		l.colorTemp = &v
	}
	if v, ok := stringField(payload, "power_on_behavior"); ok {
		l.powerOnBehavior = &v
	}
	if v, ok := intField(payload, "color_temp_startup"); ok {
		l.colorTempStartup = &v
	}
	if v, ok := intField(payload, "linkquality"); ok {
		l.linkQuality = &v
		if l.recorder != nil {
			l.recorder.RecordLinkQuality(l.name, v)
		}
	}
}

// Brightness returns the last reported brightness (0-254) and whether one
// has been reported.
func (l *Light) Brightness() (int, bool) {
	if l.brightness == nil {
		return 0, false
	}
	return *l.brightness, true
}

// ColorTemp returns the last reported colour temperature in mireds.
func (l *Light) ColorTemp() (int, bool) {
	if l.colorTemp == nil {
		return 0, false
	}
	return *l.colorTemp, true
}

// LinkQuality returns the last reported link quality (0-255).
func (l *Light) LinkQuality() (int, bool) {
	if l.linkQuality == nil {
		return 0, false
	}
	return *l.linkQuality, true
}

// PowerOnBehavior returns the reported power-on behaviour ("on", "off",
// "previous").
func (l *Light) PowerOnBehavior() (string, bool) {
	if l.powerOnBehavior == nil {
		return "", false
	}
	return *l.powerOnBehavior, true
}
