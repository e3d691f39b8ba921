// Package schedule decides whether groups of actuators should be on,
// based on the sun's position at the configured site.
//
// Two window kinds exist. A sunset-to-sunrise window keeps its devices on
// through the whole night. A sunset-to-time window keeps them on from
// sunset until a fixed local wall-clock off time, which commonly falls
// after midnight; the window logic handles both sides of the day
// boundary.
//
// The Evaluator only computes the desired state and nudges devices whose
// confirmed state differs. Devices that are offline, unconfirmed, or
// awaiting a command acknowledgment are left alone, so a tick never
// produces redundant commands.
package schedule
