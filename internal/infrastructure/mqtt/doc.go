// Package mqtt provides the bridge's single connection to the farm message bus.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Required topic subscriptions, re-issued on every reconnect
//   - QoS 1 publishing that waits for the broker acknowledgement
//   - Fan-out of each inbound message to every registered handler
//   - Last Will and Testament on the bridge status topic
//
// # Architecture
//
// Devices and the bridge only meet on the broker:
//
//	HTTP caller -> bridge -> broker -> device
//	device -> broker -> bridge (every handler sees every message)
//
// Subscribe decides what the broker sends; AddHandler decides who sees it.
// The two are independent so short-lived waiters can come and go without
// touching broker subscriptions.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Subscribe(mqtt.Topics{}.Graph(), 1); err != nil {
//	    log.Fatal(err)
//	}
//	id := client.AddHandler(mqtt.Topics{}.Graph(), func(topic string, payload []byte) error {
//	    log.Printf("Received: %s = %s", topic, payload)
//	    return nil
//	})
//	defer client.RemoveHandler(id)
//
//	client.Publish(mqtt.Topics{}.Command("pump"), []byte(`{"deviceId":"ABCDEF123456","water":3}`), 1, false)
package mqtt
