package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Dialer opens a byte stream: a board UART, or a pipe in tests.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// streamTransport frames bus traffic over a byte stream.
type streamTransport struct {
	name string
	dial Dialer

	mu  sync.Mutex
	rwc io.ReadWriteCloser
	wr  *framedWriter
	in  chan Inbound
}

// NewStreamTransport returns a framed transport over whatever dial opens.
func NewStreamTransport(name string, dial Dialer) Transport {
	return &streamTransport{name: name, dial: dial}
}

func (t *streamTransport) String() string { return t.name }

func (t *streamTransport) Open(ctx context.Context) error {
	if t.dial == nil {
		return errors.New(t.name + ": no dialer")
	}
	rwc, err := t.dial(ctx)
	if err != nil {
		return err
	}
	in := make(chan Inbound, 8)
	t.mu.Lock()
	t.rwc, t.wr, t.in = rwc, newFramedWriter(rwc), in
	t.mu.Unlock()
	go t.readLoop(rwc, in)
	return nil
}

func (t *streamTransport) readLoop(rwc io.ReadWriteCloser, in chan<- Inbound) {
	defer close(in)
	rd := newFramedReader(rwc)
	for {
		f, err := rd.ReadFrame()
		if err != nil {
			return
		}
		switch f.Type {
		case framePing:
			_ = t.write(Frame{Type: framePong})
		case framePub:
			topic, data, _, err := decodePub(f.Payload)
			if err != nil {
				continue
			}
			select {
			case in <- Inbound{Topic: topic, Payload: data}:
			default:
			}
		case frameClose:
			return
		}
	}
}

func (t *streamTransport) write(f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.wr == nil {
		return io.ErrClosedPipe
	}
	return t.wr.WriteFrame(f)
}

func (t *streamTransport) Send(topic string, payload []byte, retained bool) error {
	p, err := encodePub(topic, payload, retained)
	if err != nil {
		return err
	}
	return t.write(Frame{Type: framePub, Payload: p})
}

func (t *streamTransport) Inbound() <-chan Inbound {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.in
}

func (t *streamTransport) Close() error {
	t.mu.Lock()
	rwc, wr := t.rwc, t.wr
	t.rwc, t.wr = nil, nil
	t.mu.Unlock()
	if rwc == nil {
		return nil
	}
	_ = wr.WriteFrame(Frame{Type: frameClose})
	return rwc.Close()
}

// -----------------------------------------------------------------------------
// Framing: [type][len hi][len lo][payload]
// -----------------------------------------------------------------------------

const (
	framePing  byte = 0x01
	framePong  byte = 0x02
	framePub   byte = 0x10
	frameClose byte = 0x7f
)

const flagRetained byte = 0x01

type Frame struct {
	Type    byte
	Payload []byte
}

type framedReader struct{ r io.Reader }
type framedWriter struct{ w io.Writer }

func newFramedReader(r io.Reader) *framedReader { return &framedReader{r: r} }
func newFramedWriter(w io.Writer) *framedWriter { return &framedWriter{w: w} }

func (fr *framedReader) ReadFrame() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	n := int(hdr[1])<<8 | int(hdr[2])
	var buf []byte
	if n > 0 {
		buf = make([]byte, n)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: hdr[0], Payload: buf}, nil
}

// WriteFrame emits header and payload in one Write so concurrent pipes
// never see a split frame.
func (fw *framedWriter) WriteFrame(f Frame) error {
	if len(f.Payload) > 0xFFFF {
		return fmt.Errorf("frame too large: %d", len(f.Payload))
	}
	buf := make([]byte, 0, 3+len(f.Payload))
	buf = append(buf, f.Type, byte(len(f.Payload)>>8), byte(len(f.Payload)))
	buf = append(buf, f.Payload...)
	_, err := fw.w.Write(buf)
	return err
}

// pub payload: [flags][topic len][topic][data]
func encodePub(topic string, data []byte, retained bool) ([]byte, error) {
	if len(topic) > 0xFF {
		return nil, fmt.Errorf("topic too long: %d", len(topic))
	}
	var flags byte
	if retained {
		flags |= flagRetained
	}
	out := make([]byte, 0, 2+len(topic)+len(data))
	out = append(out, flags, byte(len(topic)))
	out = append(out, topic...)
	return append(out, data...), nil
}

func decodePub(p []byte) (topic string, data []byte, retained bool, err error) {
	if len(p) < 2 || len(p) < 2+int(p[1]) {
		return "", nil, false, errors.New("short pub frame")
	}
	n := int(p[1])
	return string(p[2 : 2+n]), p[2+n:], p[0]&flagRetained != 0, nil
}
