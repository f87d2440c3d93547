// Package mqtt provides MQTT client connectivity for the valve daemon.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees and input validation
//   - Topic subscriptions restored after every reconnect
//   - A retained Last Will, used as the Home Assistant availability topic
//   - Panic recovery around message handlers
//
// Message handlers run unordered, each in its own goroutine, so a handler
// may publish and wait for the acknowledgment without stalling delivery.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, mqtt.WithLastWill(ns.AvailabilityTopic(), "offline"))
//	client.SetOnConnect(node.HandleConnect)
//	if err := client.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// *Client satisfies hass.Broker.
package mqtt
