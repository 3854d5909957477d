package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"vehiclecode-go/services/logging"
)

const (
	defaultMQTTTimeout = 5 * time.Second
	mqttQuiesceMs      = 250
)

// Remote topics accepted on <prefix>/<node>/...
var mqttInbound = []string{"bms/charger/set"}

var errNotConnected = errors.New("mqtt: not connected")

type mqttTransport struct {
	p    MQTTParams
	base string
	log  logging.Log

	mu     sync.Mutex
	client pahomqtt.Client
	in     chan Inbound
}

func newMQTTTransport(p Params) (Transport, error) {
	if p.MQTT.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}
	if p.MQTT.QoS > 2 {
		return nil, fmt.Errorf("mqtt: invalid qos %d", p.MQTT.QoS)
	}
	if p.MQTT.ConnectTimeout <= 0 {
		p.MQTT.ConnectTimeout = defaultMQTTTimeout
	}
	base := p.Node
	if pre := strings.Trim(p.MQTT.Prefix, "/"); pre != "" {
		base = pre + "/" + p.Node
	}
	return &mqttTransport{p: p.MQTT, base: base, log: p.Log}, nil
}

func (t *mqttTransport) String() string { return "mqtt" }

func (t *mqttTransport) statusTopic() string { return t.base + "/status" }

func (t *mqttTransport) Open(ctx context.Context) error {
	in := make(chan Inbound, 8)

	opts := pahomqtt.NewClientOptions().
		AddBroker(t.p.Broker).
		SetClientID(t.p.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(t.p.ConnectTimeout).
		SetOrderMatters(false)
	if t.p.Username != "" {
		opts.SetUsername(t.p.Username)
		opts.SetPassword(t.p.Password)
	}
	opts.SetWill(t.statusTopic(), "offline", t.p.QoS, true)

	// Subscriptions are restored here after every reconnect.
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		for _, rel := range mqttInbound {
			c.Subscribe(t.base+"/"+rel, t.p.QoS, t.handler(in))
		}
		c.Publish(t.statusTopic(), t.p.QoS, true, "online")
		t.log.Info("mqtt connected", "broker", t.p.Broker)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.log.Warn("mqtt connection lost", "error", err)
	})

	client := pahomqtt.NewClient(opts)
	if err := wait(ctx, client.Connect(), t.p.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", t.p.Broker, err)
	}

	t.mu.Lock()
	t.client, t.in = client, in
	t.mu.Unlock()
	return nil
}

func (t *mqttTransport) handler(in chan<- Inbound) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, m pahomqtt.Message) {
		rel := strings.TrimPrefix(m.Topic(), t.base+"/")
		select {
		case in <- Inbound{Topic: rel, Payload: m.Payload()}:
		default:
			t.log.Warn("mqtt inbound dropped", "topic", m.Topic())
		}
	}
}

func (t *mqttTransport) Send(topic string, payload []byte, retained bool) error {
	t.mu.Lock()
	c := t.client
	t.mu.Unlock()
	if c == nil || !c.IsConnectionOpen() {
		return errNotConnected
	}
	return wait(context.Background(), c.Publish(t.base+"/"+topic, t.p.QoS, retained, payload), t.p.ConnectTimeout)
}

func (t *mqttTransport) Inbound() <-chan Inbound {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.in
}

func (t *mqttTransport) Close() error {
	t.mu.Lock()
	c := t.client
	t.client = nil
	t.mu.Unlock()
	if c == nil {
		return nil
	}
	if c.IsConnectionOpen() {
		c.Publish(t.statusTopic(), t.p.QoS, true, "offline").WaitTimeout(time.Second)
	}
	c.Disconnect(mqttQuiesceMs)
	return nil
}

// wait blocks on tok until it completes, d elapses or ctx ends.
func wait(ctx context.Context, tok pahomqtt.Token, d time.Duration) error {
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-tm.C:
		return fmt.Errorf("timeout after %v", d)
	case <-ctx.Done():
		return ctx.Err()
	}
}
