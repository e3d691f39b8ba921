// Package inventory persists the durable record of every Zigbee device
// ever observed on the network and keeps it aligned with the bridge's
// authoritative device list.
//
// zigbee2mqtt publishes the full device list as a retained JSON array on
// <base>/bridge/devices. The Reconciler consumes one such snapshot and, in
// a single transaction, upserts every descriptor carrying both identifier
// keys and soft-retires every active record absent from the snapshot.
// Records are never deleted: retirement is a nullable timestamp, cleared
// again if the device reappears.
//
// The inventory is independent of the runtime actuator state in package
// actuator; it only touches the database.
package inventory
