package backend

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lolzio5/PiTrainer/internal/config"
)

// Handlers receive what devices publish. Nil handlers are skipped.
type Handlers struct {
	State   func(device string, s State)
	Reps    func(rc RepCount)
	Set     func(sr SetResult)
	Workout func(ws WorkoutSummary)
}

// Listener follows every device under a topic prefix.
type Listener struct {
	client mqtt.Client
	prefix string
	h      Handlers
}

// Listen connects and subscribes to all device topics.
func Listen(cfg config.MQTTConfig, clientID string, h Handlers) (*Listener, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("backend: connect %s: %w", cfg.Broker, token.Error())
	}
	log.Infof("connected to MQTT broker at %s", cfg.Broker)

	l := &Listener{client: client, prefix: cfg.TopicPrefix, h: h}
	all := NewTopics(cfg.TopicPrefix, "+")
	filters := map[string]byte{all.State: 1, all.Reps: 1, all.Set: 1, all.Workout: 1}
	token := client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		if err := l.dispatch(msg.Topic(), msg.Payload()); err != nil {
			log.Warnf("%v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("backend: subscribe: %w", token.Error())
	}
	log.Infof("subscribed to %s/+/{state,reps,set,workout}", cfg.TopicPrefix)
	return l, nil
}

func (l *Listener) dispatch(topic string, payload []byte) error {
	device, kind, ok := SplitTopic(l.prefix, topic)
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	switch kind {
	case KindState:
		if l.h.State != nil {
			l.h.State(device, ParseState(string(payload)))
		}
	case KindReps:
		var rc RepCount
		if err := json.Unmarshal(payload, &rc); err != nil {
			return fmt.Errorf("%s: unmarshal error: %w", topic, err)
		}
		if l.h.Reps != nil {
			l.h.Reps(rc)
		}
	case KindSet:
		var sr SetResult
		if err := json.Unmarshal(payload, &sr); err != nil {
			return fmt.Errorf("%s: unmarshal error: %w", topic, err)
		}
		if l.h.Set != nil {
			l.h.Set(sr)
		}
	case KindWorkout:
		var ws WorkoutSummary
		if err := json.Unmarshal(payload, &ws); err != nil {
			return fmt.Errorf("%s: unmarshal error: %w", topic, err)
		}
		if l.h.Workout != nil {
			l.h.Workout(ws)
		}
	default:
		return fmt.Errorf("unexpected topic %q", topic)
	}
	return nil
}

// PublishState sets the retained workout state of device.
func (l *Listener) PublishState(ctx context.Context, device string, s State) error {
	m := newMQTT(l.client, NewTopics(l.prefix, device))
	return m.PublishState(ctx, s)
}

// Close disconnects from the broker.
func (l *Listener) Close() {
	l.client.Disconnect(250)
}
