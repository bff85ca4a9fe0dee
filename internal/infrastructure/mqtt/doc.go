// Package mqtt connects the feeder core to the MQTT broker the PLAF203
// firmware talks to.
//
// The Client wraps paho.mqtt.golang with:
//   - auto-reconnect and restoration of every tracked subscription
//   - a retained bridge topic (plaf203/<serial>/bridge) that flips to
//     "offline" through the Last Will when the process disappears
//   - panic recovery around message handlers
//
// Device topics (dl/PLAF203/<serial>/device/...) are not built here; the
// router owns that namespace and drives this client through a small
// transport adapter.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Device.Serial)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("dl/PLAF203/AF0123/device/heart/post", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("heartbeat: %s", payload)
//	        return nil
//	    })
package mqtt
