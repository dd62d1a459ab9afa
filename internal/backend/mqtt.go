package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/logger"
)

var log = logger.New("backend")

// Topic kinds below <prefix>/<device>/.
const (
	KindState   = "state"
	KindReps    = "reps"
	KindSet     = "set"
	KindWorkout = "workout"
)

// Topics are the MQTT topics of one device.
type Topics struct {
	State   string
	Reps    string
	Set     string
	Workout string
}

// NewTopics builds the topics of device. A device of "+" gives the
// subscription wildcards for every device.
func NewTopics(prefix, device string) Topics {
	base := strings.TrimSuffix(prefix, "/") + "/" + device + "/"
	return Topics{
		State:   base + KindState,
		Reps:    base + KindReps,
		Set:     base + KindSet,
		Workout: base + KindWorkout,
	}
}

// SplitTopic returns the device and kind of a topic under prefix.
func SplitTopic(prefix, topic string) (device, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, strings.TrimSuffix(prefix, "/")+"/")
	if !found {
		return "", "", false
	}
	device, kind, ok = strings.Cut(rest, "/")
	if !ok || device == "" || strings.Contains(kind, "/") {
		return "", "", false
	}
	return device, kind, true
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT is the Backend spoken over an MQTT broker. The requested state is a
// retained message on the state topic; results are published as JSON.
type MQTT struct {
	client mqtt.Client
	pub    publisher
	topics Topics

	mu        sync.RWMutex
	state     State
	haveState bool
}

// Dial connects to the broker and subscribes to the device's state topic.
func Dial(cfg config.MQTTConfig, clientID, device string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("backend: connect %s: %w", cfg.Broker, token.Error())
	}
	log.Infof("connected to MQTT broker at %s", cfg.Broker)

	m := newMQTT(client, NewTopics(cfg.TopicPrefix, device))
	m.client = client

	token := client.Subscribe(m.topics.State, 1, m.onState)
	token.Wait()
	if token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("backend: subscribe %s: %w", m.topics.State, token.Error())
	}
	log.Infof("subscribed to MQTT topic %s", m.topics.State)
	return m, nil
}

func newMQTT(pub publisher, topics Topics) *MQTT {
	return &MQTT{pub: pub, topics: topics, state: State{Phase: PhaseIdle}}
}

func (m *MQTT) onState(_ mqtt.Client, msg mqtt.Message) {
	s := ParseState(string(msg.Payload()))
	m.mu.Lock()
	changed := !m.haveState || s != m.state
	m.state = s
	m.haveState = true
	m.mu.Unlock()
	if changed {
		log.Infof("workout state is now %q", s)
	}
}

// WorkoutState returns the last state received, Idle before the first.
func (m *MQTT) WorkoutState(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, nil
}

// PublishState sets the retained workout state, driving the device the
// way the service does.
func (m *MQTT) PublishState(ctx context.Context, s State) error {
	return m.publish(ctx, m.topics.State, true, []byte(s.String()))
}

func (m *MQTT) PublishRepCount(ctx context.Context, rc RepCount) error {
	return m.publishJSON(ctx, m.topics.Reps, rc)
}

func (m *MQTT) PublishSet(ctx context.Context, sr SetResult) error {
	return m.publishJSON(ctx, m.topics.Set, sr)
}

func (m *MQTT) PublishWorkout(ctx context.Context, ws WorkoutSummary) error {
	return m.publishJSON(ctx, m.topics.Workout, ws)
}

func (m *MQTT) publishJSON(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("backend: encode %s: %w", topic, err)
	}
	return m.publish(ctx, topic, false, payload)
}

func (m *MQTT) publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	token := m.pub.Publish(topic, 1, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("backend: publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
}
