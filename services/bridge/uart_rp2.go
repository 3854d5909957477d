//go:build rp2040 || rp2350

package bridge

import (
	"context"
	"errors"
	"io"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

func init() {
	RegisterTransport("uart", func(p Params) (Transport, error) {
		hw, err := uartByName(p.UART.Port)
		if err != nil {
			return nil, err
		}
		u := p.UART
		return NewStreamTransport("uart", func(ctx context.Context) (io.ReadWriteCloser, error) {
			if err := hw.Configure(uartx.UARTConfig{
				BaudRate: u.Baud,
				TX:       machine.Pin(u.TXPin),
				RX:       machine.Pin(u.RXPin),
			}); err != nil {
				return nil, err
			}
			rctx, cancel := context.WithCancel(ctx)
			return &uartPort{u: hw, ctx: rctx, cancel: cancel}, nil
		}), nil
	})
}

func uartByName(name string) (*uartx.UART, error) {
	switch name {
	case "", "uart0":
		return uartx.UART0, nil
	case "uart1":
		return uartx.UART1, nil
	}
	return nil, errors.New("uart: unknown port " + name)
}

// uartPort adapts uartx to io.ReadWriteCloser. Close cancels pending reads;
// the peripheral itself stays configured.
type uartPort struct {
	u      *uartx.UART
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *uartPort) Read(b []byte) (int, error) {
	n, err := p.u.RecvSomeContext(p.ctx, b)
	if err != nil && p.ctx.Err() != nil {
		return n, io.EOF
	}
	return n, err
}

func (p *uartPort) Write(b []byte) (int, error) {
	if p.ctx.Err() != nil {
		return 0, io.ErrClosedPipe
	}
	return p.u.Write(b)
}

func (p *uartPort) Close() error {
	p.cancel()
	return nil
}
