// Package mqtt provides MQTT client connectivity for Aquafeed Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Aquafeed uses MQTT as the device bus connecting Core to feeder
// hardware. The broker (Mosquitto) decouples Core from the firmware:
// feeders publish telemetry and command echoes, and Core publishes
// client-originated commands back onto the same topics.
//
//	Aquafeed Core ↔ MQTT Broker ↔ Feeder Devices
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to feeder telemetry
//	err = client.Subscribe(mqtt.TopicFeederInfo, 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a feed command
//	client.Publish(mqtt.TopicFeederControl, []byte(`{"source":"App","portion":3}`), 1, false)
package mqtt
