package bridge

import (
	"context"
	"sort"
	"sync"
	"time"

	"vehiclecode-go/errcode"
	"vehiclecode-go/services/logging"
)

// Inbound is a message received from off the node. Topic is relative to the
// node: any broker prefix and node segment are already stripped.
type Inbound struct {
	Topic   string
	Payload []byte
}

// Transport is a pluggable link off the node.
type Transport interface {
	Open(ctx context.Context) error
	Send(topic string, payload []byte, retained bool) error
	// Inbound is valid after a successful Open. A nil channel means the
	// transport is send-only; a closed one means the link dropped.
	Inbound() <-chan Inbound
	Close() error
	String() string
}

type MQTTParams struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	Prefix         string
	ConnectTimeout time.Duration
}

// UARTParams selects a board UART. Pin numbers are platform IDs.
type UARTParams struct {
	Port  string // "uart0" | "uart1"
	Baud  uint32
	TXPin int
	RXPin int
}

// Params carries everything any registered factory may need.
type Params struct {
	Node string
	MQTT MQTTParams
	UART UARTParams
	Log  logging.Log
}

type Factory func(Params) (Transport, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

func init() {
	RegisterTransport("log", newLogTransport)
	RegisterTransport("mqtt", newMQTTTransport)
}

// RegisterTransport adds or replaces a named transport factory.
func RegisterTransport(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

// NewTransport builds the named transport.
func NewTransport(name string, p Params) (Transport, error) {
	regMu.RLock()
	f, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "bridge.transport", Msg: name}
	}
	if p.Log == nil {
		p.Log = logging.Nop{}
	}
	return f(p)
}

// Transports lists registered names, sorted.
func Transports() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------
// log transport
// -----------------------------------------------------------------------------

type logTransport struct {
	log  logging.Log
	node string
}

func newLogTransport(p Params) (Transport, error) {
	return &logTransport{log: p.Log, node: p.Node}, nil
}

func (t *logTransport) Open(context.Context) error { return nil }

func (t *logTransport) Send(topic string, payload []byte, retained bool) error {
	t.log.Debug("bridge tx", "node", t.node, "topic", topic, "bytes", len(payload), "retained", retained)
	return nil
}

func (t *logTransport) Inbound() <-chan Inbound { return nil }
func (t *logTransport) Close() error            { return nil }
func (t *logTransport) String() string          { return "log" }
