// Package controller runs the fixed-period application loop.
//
// The loop owns all actuator state. Every tick it drains the outbound
// queue onto the transport (prefixing the zigbee base topic), drains the
// inbound queue into the per-topic handlers, lets the schedule evaluator
// nudge actuators, and sleeps. Routing errors recorded by the dispatch
// registry terminate the loop: they indicate broken topic bookkeeping,
// not a transient fault.
package controller
