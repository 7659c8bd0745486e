// protod is a long-running service that exposes the protocol
// pipeline (parse, compile, verify, stepped simulation) to graphical
// editors over WebSocket and, optionally, MQTT.
//
// Completed run traces are persisted to a bbolt database and pruned
// on a crontab schedule.
package main

import (
	"context"
	"flag"
	"log"
	"time"
)

func main() {
	var (
		addr = flag.String("addr", ":8357", "WebSocket listen address")

		dbFile    = flag.String("db", "protod.db", "trace database file ('' disables persistence)")
		schedule  = flag.String("prune-schedule", "0 0 * * * * *", "crontab schedule for trace pruning")
		retention = flag.Duration("retention", 7*24*time.Hour, "how long to keep completed traces")

		broker    = flag.String("broker", "", "optional MQTT broker (e.g. tcp://localhost:1883)")
		clientId  = flag.String("i", "protod", "MQTT client id")
		userName  = flag.String("u", "", "MQTT username")
		password  = flag.String("P", "", "MQTT password")
		reqTopic  = flag.String("req-topic", "protod/requests", "MQTT request topic")
		respTopic = flag.String("resp-topic", "protod/responses", "MQTT response topic")
		qos       = flag.Int("qos", 1, "MQTT QoS")
		keepAlive = flag.Duration("k", 10*time.Minute, "MQTT keep-alive")
		reconnect = flag.Bool("reconnect", true, "automatically attempt to reconnect to the broker")
	)

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store *TraceStore
	if *dbFile != "" {
		var err error
		if store, err = OpenTraceStore(*dbFile); err != nil {
			log.Fatal(err)
		}
		defer store.Close()

		go func() {
			if err := store.Janitor(ctx, *schedule, *retention); err != nil && err != context.Canceled {
				log.Printf("janitor: %v", err)
			}
		}()
	}

	service := NewService(store)

	if *broker != "" {
		opts := &MQTTOpts{
			Broker:    *broker,
			ClientId:  *clientId,
			UserName:  *userName,
			Password:  *password,
			ReqTopic:  *reqTopic,
			RespTopic: *respTopic,
			QoS:       byte(*qos),
			KeepAlive: *keepAlive,
			Quiesce:   100,
			Reconnect: *reconnect,
		}
		go func() {
			if err := service.MQTTService(ctx, opts); err != nil {
				log.Printf("mqtt: %v", err)
			}
		}()
	}

	if err := service.WebSocketService(ctx, *addr); err != nil {
		log.Fatal(err)
	}
}
