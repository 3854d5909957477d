// Package bms holds the charger actuation gate and the service that owns it.
package bms

// Hooks is the charger hardware: one actuation line and a connection probe.
// The charger's power and master-switch (PON) conditions are combined in
// external wiring, so software drives a single enable.
type Hooks interface {
	Enable()
	Disable()
	IsConnected() bool
}

// HookFuncs adapts three plain functions to Hooks. All three must be set.
type HookFuncs struct {
	EnableFn      func()
	DisableFn     func()
	IsConnectedFn func() bool
}

func (h HookFuncs) Enable()           { h.EnableFn() }
func (h HookFuncs) Disable()          { h.DisableFn() }
func (h HookFuncs) IsConnected() bool { return h.IsConnectedFn() }

// Charger gates the external charging circuit. It is not safe for
// concurrent use; callers serialise access.
type Charger struct {
	hooks   Hooks
	enabled bool
}

func NewCharger(h Hooks) *Charger { return &Charger{hooks: h} }

// Enable calls the enable hook once and records the flag. Whether the
// hardware actually switched is the hook's business.
func (c *Charger) Enable() {
	c.hooks.Enable()
	c.enabled = true
}

func (c *Charger) Disable() {
	c.hooks.Disable()
	c.enabled = false
}

// IsEnabled reports the last Enable/Disable call.
func (c *Charger) IsEnabled() bool { return c.enabled }

// IsConnected asks the probe every time.
func (c *Charger) IsConnected() bool { return c.hooks.IsConnected() }

// Destroy drops the hooks. It does not disable the charger; call Disable
// first for a safe shutdown. The Charger must not be used afterwards.
func (c *Charger) Destroy() {
	c.hooks = nil
}
