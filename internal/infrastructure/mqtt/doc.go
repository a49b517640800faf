// Package mqtt provides the MQTT publishing side channel of the library service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - A retained online/offline status with Last Will and Testament
//   - Topic naming under a configurable prefix
//
// The service never subscribes. Record changes, loan notices and the
// periodic collection announcement flow outward only:
//
//	library/{kind}/{action}   record change (book, member, loan)
//	library/borrow            a new loan was created
//	library/announce          collection announcement
//	library/system/status     retained online/offline status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.NewTopics(cfg.Publisher.TopicPrefix))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishDefault(client.Topics().Change("book", "created"), payload)
package mqtt
