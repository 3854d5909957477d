//go:build rp2040 || rp2350

// Command pico-vehicle is the board build: charger on the LTC4015, e-fuses
// on the harness expander and MCU GPIOs, frames bridged out over uart0.
package main

import (
	"context"
	"log/slog"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/services/bms"
	"vehiclecode-go/services/bridge"
	"vehiclecode-go/services/fsm"
	"vehiclecode-go/services/hal"
	"vehiclecode-go/services/hal/gpioirq"
	"vehiclecode-go/services/heartbeat"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/services/pdm"
	"vehiclecode-go/services/timer"
)

const (
	node        = "vehicle"
	tick        = 10 * time.Millisecond
	retryPeriod = time.Second
	retryPulse  = 5 * time.Millisecond
	debounce    = 2 * time.Millisecond
	expBase     = 32
)

// Fault lines sit on MCU GPIOs for interrupts; enables are on the expander.
var efuses = map[pdm.SwitchID]pdm.EFusePins{
	"aux1": {Enable: expBase + 0, Fault: 10, FaultActiveLow: true, FaultPull: hal.PullUp},
	"aux2": {Enable: expBase + 1, Fault: 11, FaultActiveLow: true, FaultPull: hal.PullUp},
	"fan":  {Enable: expBase + 2, Fault: 12, FaultActiveLow: true, FaultPull: hal.PullUp},
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	log := logging.Println{Component: "vehicle", Min: slog.LevelInfo}
	log.Info("boot")

	ctx := context.Background()
	b := bus.NewBus(8)

	// The expander and the charge controller share i2c0.
	i2c := hal.NewSharedI2C(hal.BoardI2C())
	exp, err := hal.NewExpander(i2c, hal.DefaultExpanderAddr, expBase)
	if err != nil {
		halt(log, "expander", err)
	}
	pins := hal.Chain{hal.BoardPins(), exp}

	timers := timer.New()
	go timers.Run(ctx)
	irq := gpioirq.New(16, 16)
	go irq.Run(ctx)

	// ADC acquisition is not part of this build; the bench sampler sweeps
	// every signal through its range.
	world := fsm.NewWorld(fsm.DefaultLimits())
	ctl := fsm.NewService(b.NewConnection("fsm"), world, fsm.NewSimSampler(fsm.DefaultLimits()), fsm.Options{
		Node: node,
		Tick: tick,
		Log:  logging.Println{Component: "fsm", Min: slog.LevelWarn},
	})
	go ctl.Run(ctx)

	charger := bms.NewCharger(bms.NewLTC4015Hooks(i2c, bms.LTC4015Addr))
	go bms.NewService(b.NewConnection("bms"), charger, bms.Options{
		StatusPeriod: time.Second,
		Log:          logging.Println{Component: "bms", Min: slog.LevelInfo},
	}).Run(ctx)

	fuses, err := pdm.NewPinEFuse(pins, efuses, retryPulse)
	if err != nil {
		halt(log, "efuses", err)
	}
	drv := pdm.NewDeferredDriver(fuses, 8)
	go drv.Run(ctx)
	ids := make([]pdm.SwitchID, 0, len(efuses))
	for id := range efuses {
		ids = append(ids, id)
	}
	sup := pdm.NewSupervisor(drv, ids...)
	fuses.OnResult(func(id pdm.SwitchID, ok bool) {
		if ok {
			sup.Succeeded(id)
		} else {
			sup.Failed(id)
		}
	})
	for id, c := range efuses {
		p, _ := fuses.FaultPin(id)
		if ip, ok := p.(hal.IRQPin); ok {
			if _, err := irq.Watch(string(id), ip, hal.EdgeBoth, debounce, c.FaultActiveLow); err != nil {
				halt(log, "efuse irq", err)
			}
		}
	}
	plog := logging.Println{Component: "pdm", Min: slog.LevelInfo}
	go func() {
		if err := pdm.NewService(b.NewConnection("pdm"), sup, timers, pdm.Options{
			RetryPeriod: retryPeriod,
			Edges:       irq.Events(),
			Log:         plog,
		}).Run(ctx); err != nil {
			plog.Error("supervisor exited", "error", err)
		}
	}()

	tr, err := bridge.NewTransport("uart", bridge.Params{
		Node: node,
		UART: bridge.UARTParams{Port: "uart0", Baud: 115200, TXPin: 0, RXPin: 1},
	})
	if err != nil {
		halt(log, "bridge", err)
	}
	go bridge.NewService(b.NewConnection("bridge"), tr, bridge.Options{
		Forward: []bus.Topic{
			bus.T("can", "tx", node),
			bus.T("bms", "charger", "state"),
			bus.T("pdm", "efuse", bus.SingleWild, "state"),
			bus.T("system", "heartbeat"),
		},
		Log: logging.Println{Component: "bridge", Min: slog.LevelInfo},
	}).Run(ctx)

	heartbeat.NewService(b.NewConnection("heartbeat"), 2*time.Second, log).Run(ctx)
}

func halt(log logging.Log, what string, err error) {
	log.Error("startup failed", "stage", what, "error", err)
	for {
		time.Sleep(time.Second)
	}
}
