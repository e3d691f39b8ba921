// Package dispatch routes MQTT traffic between the transport and the
// application loop.
//
// The Registry owns the mapping from topic to handler. It is the single
// authority on topic bookkeeping: registering a topic subscribes it on the
// transport, unregistering removes it, and reconnects replay every
// registered subscription. A message arriving on a topic the Registry does
// not know is a fatal condition, never a silent drop, because it means the
// registry and the broker disagree about what we are subscribed to.
//
// Delivery and dispatch run on different goroutines. The transport invokes
// OnMessage on its own network goroutine, which only decodes the payload
// and appends to the inbound Queue; the application loop drains the queue
// and invokes handlers via ProcessInbound. Outbound commands travel the
// opposite way through a second Queue and ProcessOutbound. The two queues
// are the only state shared across goroutines.
package dispatch
