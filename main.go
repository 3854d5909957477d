// Command vehiclecode runs every vehicle subsystem in one host process
// against simulated pins: the control tick with its periodic signal frame,
// the charger service, the e-fuse retry supervisor, heartbeat and the
// off-node bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/errcode"
	"vehiclecode-go/services/bms"
	"vehiclecode-go/services/bridge"
	"vehiclecode-go/services/config"
	"vehiclecode-go/services/fsm"
	"vehiclecode-go/services/hal"
	"vehiclecode-go/services/hal/gpioirq"
	"vehiclecode-go/services/heartbeat"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/services/metrics"
	"vehiclecode-go/services/pdm"
	"vehiclecode-go/services/timer"
	"vehiclecode-go/x/timex"
)

// Set at build time: -ldflags "-X main.version=1.2.3"
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := flag.String("config", "", "YAML config file (default: embedded vehicle profile)")
	scenario := flag.Bool("scenario", true, "drive simulated faults and charger plug events")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}

	log := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}, version, cfg.Node)
	log.Info("starting vehiclecode", "version", version, "node", cfg.Node)

	m := metrics.New(cfg.Node)
	if cfg.Metrics.Enabled {
		stop := serveMetrics(m, cfg.Metrics.Listen, log)
		defer stop()
	}

	n, err := build(cfg, log, m)
	if err != nil {
		return err
	}
	if *scenario {
		n.add(func(ctx context.Context) error { drive(ctx, n, cfg, log); return nil })
	}

	// SIGHUP re-reads the file and republishes the runtime sections.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	n.add(func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				next, err := loadConfig(*cfgPath)
				if err != nil {
					log.Error("config reload failed", "error", err)
					continue
				}
				n.config.Publish(next)
				log.Info("config reloaded")
			}
		}
	})

	err = n.run(ctx)
	log.Info("vehiclecode stopped")
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadEmbedded("vehicle")
	}
	return config.Load(path)
}

func serveMetrics(m *metrics.Metrics, addr string, log logging.Log) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// node is the wired process: one bus, its services, and the simulated lines
// the scenario driver pokes.
type node struct {
	bus     *bus.Bus
	sim     *hal.SimPins
	tca     *hal.SimTCA9534
	tcaBase int
	config  *config.Service
	sup     *pdm.Supervisor
	runs    []func(context.Context) error
}

func (n *node) add(fn func(context.Context) error) { n.runs = append(n.runs, fn) }

// run starts every service and waits for all of them. The first error
// cancels the rest.
func (n *node) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	for _, fn := range n.runs {
		wg.Add(1)
		go func(fn func(context.Context) error) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				once.Do(func() { first = err })
				cancel()
			}
		}(fn)
	}
	wg.Wait()
	return first
}

func build(cfg *config.Config, log *logging.Logger, m *metrics.Metrics) (*node, error) {
	n := &node{bus: bus.NewBus(32), sim: hal.NewSimPins(cfg.HAL.SimPins)}

	var pins hal.PinFactory = n.sim
	if cfg.HAL.Expander.Enabled {
		n.tca, n.tcaBase = &hal.SimTCA9534{}, cfg.HAL.Expander.Base
		exp, err := hal.NewExpander(n.tca, cfg.HAL.Expander.Addr, cfg.HAL.Expander.Base)
		if err != nil {
			return nil, err
		}
		pins = hal.Chain{n.sim, exp}
	}

	n.config = config.NewService(n.bus.NewConnection("config"))
	n.config.Publish(cfg)

	timers := timer.New()
	n.add(func(ctx context.Context) error { timers.Run(ctx); return nil })

	irq := gpioirq.New(16, 16)
	n.add(func(ctx context.Context) error { irq.Run(ctx); return nil })

	// Control tick.
	world := fsm.NewWorld(cfg.FSM.Bounds())
	ctl := fsm.NewService(n.bus.NewConnection("fsm"), world, fsm.NewSimSampler(cfg.FSM.Bounds()), fsm.Options{
		Node: cfg.Node,
		Tick: timex.Ms(cfg.Control.TickMs),
		Log:  log.With("component", "fsm"),
		Obs:  m,
	})
	n.add(func(ctx context.Context) error { ctl.Run(ctx); return nil })

	// Charger.
	hooks, err := chargerHooks(cfg.BMS.Charger, pins)
	if err != nil {
		return nil, err
	}
	charger := bms.NewCharger(hooks)
	chg := bms.NewService(n.bus.NewConnection("bms"), charger, bms.Options{
		StatusPeriod: timex.Ms(cfg.BMS.StatusMs),
		Log:          log.With("component", "bms"),
		Obs:          m,
	})
	n.add(func(ctx context.Context) error { chg.Run(ctx); return nil })

	// E-fuses.
	if err := n.buildPDM(cfg, pins, timers, irq, log, m); err != nil {
		return nil, err
	}

	hb := heartbeat.NewService(n.bus.NewConnection("heartbeat"), timex.Ms(cfg.Heartbeat.IntervalMs), log.With("component", "heartbeat"))
	n.add(func(ctx context.Context) error { hb.Run(ctx); return nil })

	return n, n.buildBridges(cfg, log, m)
}

// chargerHooks builds the pin driver; the host has no I²C charge controller.
func chargerHooks(cp config.ChargerPins, pins hal.PinFactory) (bms.Hooks, error) {
	if cp.Driver != config.ChargerDriverPins {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "charger", Msg: cp.Driver + " needs a board I2C bus"}
	}
	return bms.NewPinHooks(pins, bms.PinConfig{
		Enable:          cp.Enable,
		EnableActiveLow: cp.EnableActiveLow,
		Sense:           cp.Sense,
		SensePull:       hal.ParsePull(cp.SensePull),
		SenseActiveLow:  cp.SenseActiveLow,
	})
}

func (n *node) buildPDM(cfg *config.Config, pins hal.PinFactory, timers *timer.Service, irq *gpioirq.Worker, log *logging.Logger, m *metrics.Metrics) error {
	lines := make(map[pdm.SwitchID]pdm.EFusePins, len(cfg.PDM.EFuses))
	ids := make([]pdm.SwitchID, 0, len(cfg.PDM.EFuses))
	for _, e := range cfg.PDM.EFuses {
		id := pdm.SwitchID(e.ID)
		ids = append(ids, id)
		lines[id] = pdm.EFusePins{
			Enable:          e.Enable,
			EnableActiveLow: e.EnableActiveLow,
			Fault:           e.Fault,
			FaultActiveLow:  e.FaultActiveLow,
			FaultPull:       hal.ParsePull(e.FaultPull),
		}
	}

	fuses, err := pdm.NewPinEFuse(pins, lines, timex.Ms(cfg.PDM.PulseMs))
	if err != nil {
		return err
	}
	drv := pdm.NewDeferredDriver(fuses, cfg.PDM.QueueDepth)
	drv.OnDrop = m.RetryDropped
	n.sup = pdm.NewSupervisor(drv, ids...)
	fuses.OnResult(func(id pdm.SwitchID, ok bool) {
		if ok {
			n.sup.Succeeded(id)
		} else {
			n.sup.Failed(id)
		}
	})

	plog := log.With("component", "pdm")
	debounce := timex.Ms(cfg.PDM.DebounceMs)
	for _, e := range cfg.PDM.EFuses {
		id := pdm.SwitchID(e.ID)
		p, _ := fuses.FaultPin(id)
		ip, ok := p.(hal.IRQPin)
		if !ok {
			// Expander lines have no interrupt; the bus event path still works.
			plog.Warn("fault line has no interrupt", "efuse", e.ID, "pin", e.Fault)
			continue
		}
		if _, err := irq.Watch(e.ID, ip, hal.EdgeBoth, debounce, e.FaultActiveLow); err != nil {
			return fmt.Errorf("efuse %s: %w", e.ID, err)
		}
	}

	svc := pdm.NewService(n.bus.NewConnection("pdm"), n.sup, timers, pdm.Options{
		RetryPeriod: timex.Ms(cfg.PDM.RetryPeriodMs),
		Edges:       irq.Events(),
		Log:         plog,
		Obs:         m,
	})
	n.add(func(ctx context.Context) error { drv.Run(ctx); return nil })
	n.add(svc.Run)
	return nil
}

func (n *node) buildBridges(cfg *config.Config, log *logging.Logger, m *metrics.Metrics) error {
	forward := make([]bus.Topic, 0, len(cfg.Bridge.Forward))
	for _, f := range cfg.Bridge.Forward {
		forward = append(forward, bus.Parse(f))
	}
	names := cfg.Bridge.Transports
	if cfg.MQTT.Enabled && !slices.Contains(names, "mqtt") {
		names = append(names, "mqtt")
	}
	for _, name := range names {
		blog := log.With("component", "bridge")
		tr, err := bridge.NewTransport(name, bridge.Params{
			Node: cfg.Node,
			MQTT: bridge.MQTTParams{
				Broker:         cfg.MQTT.Broker,
				ClientID:       cfg.MQTT.ClientID,
				Username:       cfg.MQTT.Username,
				Password:       cfg.MQTT.Password,
				QoS:            byte(cfg.MQTT.QoS),
				Prefix:         cfg.MQTT.TopicPrefix,
				ConnectTimeout: timex.Ms(cfg.MQTT.ConnectTimeoutMs),
			},
			Log: blog,
		})
		if err != nil {
			return fmt.Errorf("bridge %s: %w", name, err)
		}
		svc := bridge.NewService(n.bus.NewConnection("bridge-"+name), tr, bridge.Options{
			Forward: forward,
			Log:     blog,
			Obs:     m,
		})
		n.add(func(ctx context.Context) error { svc.Run(ctx); return nil })
	}
	return nil
}
