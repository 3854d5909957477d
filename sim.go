package main

import (
	"context"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/services/config"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/x/timex"
)

// Scenario timing, in retry periods of the e-fuse supervisor.
const (
	faultHoldPeriods  = 3
	faultCyclePeriods = 15
	plugEvery         = 6 * time.Second
)

// drive plays a repeating scenario on the simulated lines: the first e-fuse
// faults and stays faulted across a few retries before clearing, and the
// charger is plugged and unplugged.
func drive(ctx context.Context, n *node, cfg *config.Config, log logging.Log) {
	conn := n.bus.NewConnection("scenario")
	defer conn.Disconnect()
	conn.Publish(conn.NewMessage(bus.T("bms", "charger", "control", "enable"), nil, false))

	retry := timex.Ms(cfg.PDM.RetryPeriodMs)
	cycle := time.NewTicker(faultCyclePeriods * retry)
	defer cycle.Stop()
	plug := time.NewTicker(plugEvery)
	defer plug.Stop()
	var release <-chan time.Time

	cp := cfg.BMS.Charger
	plugged := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-plug.C:
			plugged = !plugged
			n.driveLine(cp.Sense, plugged != cp.SenseActiveLow)
			log.Info("scenario charger plug", "plugged", plugged)
		case <-cycle.C:
			if len(cfg.PDM.EFuses) == 0 {
				continue
			}
			e := cfg.PDM.EFuses[0]
			n.driveLine(e.Fault, !e.FaultActiveLow)
			log.Info("scenario fault asserted", "efuse", e.ID)
			release = time.After(faultHoldPeriods * retry)
		case <-release:
			e := cfg.PDM.EFuses[0]
			n.driveLine(e.Fault, e.FaultActiveLow)
			log.Info("scenario fault released", "efuse", e.ID)
			release = nil
		}
	}
}

// driveLine sets the external level on a simulated line, wherever it lives.
func (n *node) driveLine(pin int, level bool) {
	if p := n.sim.Sim(pin); p != nil {
		p.Drive(level)
		return
	}
	if n.tca != nil && pin >= n.tcaBase && pin < n.tcaBase+8 {
		n.tca.DriveInput(uint8(pin-n.tcaBase), level)
	}
}
