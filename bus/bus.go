// bus.go
package bus

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Wildcard tokens accepted in subscription topics.
const (
	SingleWild = "+"
	MultiWild  = "#"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of comparable tokens (usually strings or ints).
type Topic []any

// T builds a topic, panicking on tokens that cannot be used as map keys.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token is not comparable")
		}
	}
	return Topic(tokens)
}

// Parse splits a '/'-separated string into string tokens. Empty levels are
// dropped, so "a//b/" parses as T("a", "b").
func Parse(s string) Topic {
	var t Topic
	for _, part := range strings.Split(s, "/") {
		if part != "" {
			t = append(t, part)
		}
	}
	return t
}

func (t Topic) Len() int { return len(t) }

func (t Topic) At(i int) any {
	if i < 0 || i >= len(t) {
		return nil
	}
	return t[i]
}

// Append returns a new topic; t is never modified.
func (t Topic) Append(tokens ...any) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, T(tokens...)...)
}

func (t Topic) Equal(o Topic) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// String joins tokens with '/' (used for logs and external transports).
func (t Topic) String() string {
	var b []byte
	for i, tok := range t {
		if i > 0 {
			b = append(b, '/')
		}
		switch v := tok.(type) {
		case string:
			b = append(b, v...)
		case int:
			b = strconv.AppendInt(b, int64(v), 10)
		default:
			b = append(b, '?')
		}
	}
	return string(b)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

func (m *Message) CanReply() bool { return m != nil && len(m.ReplyTo) > 0 }

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any, create bool) *node {
	if c, ok := n.children[tok]; ok || !create {
		return c
	}
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

func (n *node) empty() bool {
	return len(n.subs) == 0 && len(n.children) == 0 && n.retained == nil
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu      sync.RWMutex
	root    *node
	qLen    int
	replyID atomic.Uint64
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Publish delivers msg to every matching subscriber. Retained messages are
// stored at their exact topic; a retained nil payload clears the slot.
func (b *Bus) Publish(msg *Message) {
	if msg.Retained {
		b.mu.Lock()
		n := b.root
		for _, tok := range msg.Topic {
			n = n.child(tok, true)
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
		b.mu.Unlock()
		if msg.Payload == nil {
			return
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	var subs []*Subscription
	collectSubs(b.root, msg.Topic, 0, &subs)
	for _, s := range subs {
		deliver(s.ch, msg)
	}
}

func collectSubs(n *node, topic Topic, i int, out *[]*Subscription) {
	if n == nil {
		return
	}
	if hash := n.children[MultiWild]; hash != nil {
		*out = append(*out, hash.subs...)
	}
	if i == len(topic) {
		*out = append(*out, n.subs...)
		return
	}
	collectSubs(n.children[topic[i]], topic, i+1, out)
	collectSubs(n.children[SingleWild], topic, i+1, out)
}

func collectRetained(n *node, pattern Topic, i int, out *[]*Message) {
	if n == nil {
		return
	}
	if i == len(pattern) {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	switch pattern[i] {
	case MultiWild:
		walkRetained(n, out)
	case SingleWild:
		for tok, c := range n.children {
			if tok == SingleWild || tok == MultiWild {
				continue
			}
			collectRetained(c, pattern, i+1, out)
		}
	default:
		collectRetained(n.children[pattern[i]], pattern, i+1, out)
	}
}

func walkRetained(n *node, out *[]*Message) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, c := range n.children {
		walkRetained(c, out)
	}
}

// deliver never blocks: a full queue drops its oldest message.
func deliver(ch chan *Message, msg *Message) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}

func (b *Bus) subscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.root
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	var ret []*Message
	collectRetained(b.root, sub.topic, 0, &ret)
	for _, m := range ret {
		deliver(sub.ch, m)
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := []*node{b.root}
	n := b.root
	for _, tok := range sub.topic {
		n = n.child(tok, false)
		if n == nil {
			return
		}
		path = append(path, n)
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			close(sub.ch)
			break
		}
	}
	for i := len(sub.topic) - 1; i >= 0; i-- {
		if !path[i+1].empty() {
			break
		}
		delete(path[i].children, sub.topic[i])
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers a subscription owned by this connection. Matching
// retained messages are queued immediately.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.subscribe(sub)
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.bus.unsubscribe(sub)
}

// Disconnect closes all subscriptions owned by the connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		c.bus.unsubscribe(s)
	}
}

// Reply publishes payload to req.ReplyTo. It is a no-op when the request
// carries no reply topic.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if !req.CanReply() {
		return
	}
	c.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}

// Request assigns a private reply topic to msg, subscribes to it and
// publishes msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	msg.ReplyTo = T("_reply", c.id, int(c.bus.replyID.Add(1)))
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes msg and blocks for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m := <-sub.Channel():
		return m, nil
	}
}
