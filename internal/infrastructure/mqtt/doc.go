// Package mqtt provides the MQTT client the controller uses to reach its
// Z-Wave gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload-size validation
//   - Subscriptions that survive reconnects
//   - Last Will and Testament for offline detection
//
// # Architecture
//
// The radio stack lives in a separate gateway process. The controller
// and the gateway only talk through the broker:
//
//	controller ↔ MQTT broker ↔ Z-Wave gateway ↔ radio
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.ZWaveCommand(7)
//	err = client.Publish(topic, []byte(`{"command":"set_binary_switch","on":true}`), 1, false)
package mqtt
