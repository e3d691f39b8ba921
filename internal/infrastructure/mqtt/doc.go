// Package mqtt provides MQTT client connectivity for SIHOA.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// SIHOA talks to zigbee2mqtt through the broker. The client is a thin
// transport: topic bookkeeping (which topic routes to which handler, and
// re-subscription after reconnect) is owned by the dispatch registry, which
// receives the client's OnConnect callback.
//
//	SIHOA controller ↔ MQTT broker ↔ zigbee2mqtt ↔ Zigbee radio
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("zigbee/exterior_porta/availability", 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received: %s = %s", topic, payload)
//	        return nil
//	    })
//
// TLS is supported for remote brokers (cfg.Broker.TLS=true); anonymous
// access is only for local deployments.
package mqtt
