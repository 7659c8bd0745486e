package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOpts configures the optional MQTT coupling, which mirrors the
// WebSocket API over a request topic and a reply topic for editors
// that reach the service through a broker.
type MQTTOpts struct {
	Broker   string
	ClientId string
	UserName string
	Password string

	ReqTopic  string
	RespTopic string
	QoS       byte
	KeepAlive time.Duration
	Quiesce   uint // Disconnection quiescence in milliseconds.
	Reconnect bool
}

// MQTTService subscribes to the request topic and publishes one reply
// per request.  Blocks until the context is done.
func (s *Service) MQTTService(ctx context.Context, opts *MQTTOpts) error {
	mqtt.ERROR = log.New(os.Stderr, "mqtt.error ", 0)

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientId)
	if opts.UserName != "" {
		co.SetUsername(opts.UserName)
		co.SetPassword(opts.Password)
	}
	co.SetKeepAlive(opts.KeepAlive)
	co.SetAutoReconnect(opts.Reconnect)

	client := mqtt.NewClient(co)
	if t := client.Connect(); t.Wait() && t.Error() != nil {
		return t.Error()
	}
	defer client.Disconnect(opts.Quiesce)

	handler := func(client mqtt.Client, msg mqtt.Message) {
		var req Request
		if err := json.Unmarshal(msg.Payload(), &req); err != nil {
			log.Printf("bad request on %s: %v", msg.Topic(), err)
			return
		}
		resp := s.Handle(ctx, &req)
		bs, err := json.Marshal(resp)
		if err != nil {
			log.Printf("marshaling response: %v", err)
			return
		}
		if t := client.Publish(opts.RespTopic, opts.QoS, false, bs); t.Wait() && t.Error() != nil {
			log.Printf("publishing response: %v", t.Error())
		}
	}

	if t := client.Subscribe(opts.ReqTopic, opts.QoS, handler); t.Wait() && t.Error() != nil {
		return t.Error()
	}

	log.Printf("protod mqtt coupling on %s (%s -> %s)",
		opts.Broker, opts.ReqTopic, opts.RespTopic)

	<-ctx.Done()
	if err := ctx.Err(); err != context.Canceled {
		return fmt.Errorf("mqtt coupling stopped: %v", err)
	}
	return nil
}
