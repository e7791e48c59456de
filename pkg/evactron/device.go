// pkg/evactron/device.go
package evactron

import (
	"context"
	"sync"
	"time"
)

// DefaultSettleDelay is how long the unit needs after being disabled before it
// accepts configuration writes.
const DefaultSettleDelay = 100 * time.Millisecond

// Device is an open session with an Evactron unit on a communication port.
//
// Every getter and setter issues exactly one call into the Library and returns
// its result unchanged. Once Close has been called, or if Open never
// succeeded, every method returns ErrNotConnected without reaching the Library.
type Device struct {
	lib         Library
	port        int
	settleDelay time.Duration

	mu     sync.Mutex
	handle Handle
	open   bool
}

// Option configures a Device.
type Option func(*Device)

// WithSettleDelay overrides DefaultSettleDelay for Reconfigure.
func WithSettleDelay(d time.Duration) Option {
	return func(dev *Device) {
		dev.settleDelay = d
	}
}

// Open acquires a handle on the given communication port. On failure the
// returned error is a *ConnectError wrapping the library error.
func Open(lib Library, port int, opts ...Option) (*Device, error) {
	d := &Device{
		lib:         lib,
		port:        port,
		settleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(d)
	}

	h, err := lib.Connect(port)
	if err != nil {
		return nil, &ConnectError{Port: port, Err: err}
	}

	d.handle = h
	d.open = true
	return d, nil
}

// Port returns the communication port number.
func (d *Device) Port() int {
	return d.port
}

// Handle returns the vendor handle and whether it is still held.
func (d *Device) Handle() (Handle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle, d.open
}

// Close releases the handle. Calls after the first are no-ops.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil
	}
	if err := d.lib.Disconnect(d.handle); err != nil {
		return err
	}
	d.open = false
	return nil
}

// Closed reports whether the handle has been released.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.open
}

func (d *Device) do(fn func(Handle) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return ErrNotConnected
	}
	return fn(d.handle)
}

func get[T any](d *Device, fn func(Handle) (T, error)) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		var zero T
		return zero, ErrNotConnected
	}
	return fn(d.handle)
}

//- Session

// IsConnected asks the library whether the unit still answers on the handle.
func (d *Device) IsConnected() (bool, error) {
	return get(d, d.lib.IsConnected)
}

// Enable turns the unit on.
func (d *Device) Enable() error {
	return d.do(func(h Handle) error { return d.lib.EnableUnit(h, true) })
}

// Disable turns the unit off.
func (d *Device) Disable() error {
	return d.do(func(h Handle) error { return d.lib.EnableUnit(h, false) })
}

// Reconfigure disables the unit, waits the settle delay, runs fn and enables
// the unit again. The unit is re-enabled even when fn fails; fn's error is
// returned in that case.
func (d *Device) Reconfigure(ctx context.Context, fn func(*Device) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.Disable(); err != nil {
		return err
	}
	defer func() {
		if enableErr := d.Enable(); enableErr != nil && err == nil {
			err = enableErr
		}
	}()

	if d.settleDelay > 0 {
		timer := time.NewTimer(d.settleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fn(d)
}

//- Faults

// Faults returns the dynamic and latched faults. Unknown codes map to nil.
func (d *Device) Faults() (FaultReport, error) {
	type codes struct{ latched, dynamic int }
	c, err := get(d, func(h Handle) (codes, error) {
		latched, dynamic, err := d.lib.Faults(h)
		return codes{latched, dynamic}, err
	})
	if err != nil {
		return FaultReport{}, err
	}
	return FaultReport{
		Dynamic: FaultByCode(c.dynamic),
		Latched: FaultByCode(c.latched),
	}, nil
}

// ClearFaults acknowledges latched faults. A "command ignored" answer means
// there was nothing to clear and is not an error.
func (d *Device) ClearFaults() error {
	err := d.do(d.lib.ClearFaults)
	if IsCommandIgnored(err) {
		return nil
	}
	return err
}

//- Read only

// Status returns state, cycle, run timer, display unit and status flags.
func (d *Device) Status() (Status, error) {
	return get(d, d.lib.StatusEx)
}

// DLLVersion returns the vendor library version.
func (d *Device) DLLVersion() (Version, error) {
	return get(d, func(Handle) (Version, error) { return d.lib.DLLVersion() })
}

func (d *Device) FirmwareVersion() (Version, error) {
	return get(d, d.lib.FirmwareVersion)
}

func (d *Device) ApplicationVersion() (Version, error) {
	return get(d, d.lib.ApplicationVersion)
}

// LastClean returns when the last cleaning phase started.
func (d *Device) LastClean() (time.Time, error) {
	return get(d, d.lib.LastCleanTime)
}

// PressurePa returns the measured chamber pressure.
func (d *Device) PressurePa() (float64, error) {
	return get(d, d.lib.Pressure)
}

func (d *Device) ForwardPowerW() (float64, error) {
	return get(d, d.lib.ForwardPower)
}

func (d *Device) ReversePowerW() (float64, error) {
	return get(d, d.lib.ReversePower)
}

func (d *Device) MeteringValveVoltageV() (float64, error) {
	return get(d, d.lib.MeteringValveVoltage)
}

// RunTimer returns the time remaining in the current plasma or purge phase,
// zero outside those phases.
func (d *Device) RunTimer() (time.Duration, error) {
	return get(d, d.lib.RunTimer)
}

// Elapsed returns how long the current plasma or purge phase has been
// running, zero outside those phases.
func (d *Device) Elapsed() (time.Duration, error) {
	st, err := d.Status()
	if err != nil {
		return 0, err
	}

	var total time.Duration
	switch st.State {
	case StateCleaning:
		total, err = d.PlasmaTime()
	case StatePurging:
		total, err = d.PurgeTime()
	default:
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if elapsed := total - st.Timer; elapsed > 0 {
		return elapsed, nil
	}
	return 0, nil
}

//- General configuration

// Clock returns the device clock.
func (d *Device) Clock() (time.Time, error) {
	return get(d, d.lib.Clock)
}

// SetClock sets the device clock. The unit only accepts it while disabled,
// see Reconfigure.
func (d *Device) SetClock(t time.Time) error {
	return d.do(func(h Handle) error { return d.lib.SetClock(h, t) })
}

//- Plasma configuration

// Cycles returns the total number of process iterations.
func (d *Device) Cycles() (int, error) {
	return get(d, d.lib.CycleCount)
}

func (d *Device) SetCycles(cycles int) error {
	return d.do(func(h Handle) error { return d.lib.SetCycleCount(h, cycles) })
}

// IgnitePressureSetpointPa is the pressure set-point for plasma ignition.
func (d *Device) IgnitePressureSetpointPa() (float64, error) {
	return get(d, d.lib.IgnitePressureSetpoint)
}

func (d *Device) SetIgnitePressureSetpointPa(pa float64) error {
	return d.do(func(h Handle) error { return d.lib.SetIgnitePressureSetpoint(h, pa) })
}

// PlasmaPressureSetpointPa is the pressure set-point for the plasma state.
func (d *Device) PlasmaPressureSetpointPa() (float64, error) {
	return get(d, d.lib.PlasmaPressureSetpoint)
}

func (d *Device) SetPlasmaPressureSetpointPa(pa float64) error {
	return d.do(func(h Handle) error { return d.lib.SetPlasmaPressureSetpoint(h, pa) })
}

func (d *Device) PlasmaPowerSetpointW() (float64, error) {
	return get(d, d.lib.PlasmaPowerSetpoint)
}

func (d *Device) SetPlasmaPowerSetpointW(watts float64) error {
	return d.do(func(h Handle) error { return d.lib.SetPlasmaPowerSetpoint(h, watts) })
}

// PlasmaTime is the programmed duration of the plasma phase. The unit keeps
// seconds in steps of ten.
func (d *Device) PlasmaTime() (time.Duration, error) {
	return get(d, d.lib.PlasmaTime)
}

func (d *Device) SetPlasmaTime(dur time.Duration) error {
	return d.do(func(h Handle) error { return d.lib.SetPlasmaTime(h, dur) })
}

func (d *Device) PurgeEnabled() (bool, error) {
	return get(d, d.lib.PurgeEnabled)
}

func (d *Device) SetPurgeEnabled(enabled bool) error {
	return d.do(func(h Handle) error { return d.lib.EnablePurge(h, enabled) })
}

func (d *Device) PurgePressureSetpointPa() (float64, error) {
	return get(d, d.lib.PurgePressureSetpoint)
}

func (d *Device) SetPurgePressureSetpointPa(pa float64) error {
	return d.do(func(h Handle) error { return d.lib.SetPurgePressureSetpoint(h, pa) })
}

// PurgeTime is the programmed duration of the purge phase. The unit keeps
// seconds in steps of ten.
func (d *Device) PurgeTime() (time.Duration, error) {
	return get(d, d.lib.PurgeTime)
}

func (d *Device) SetPurgeTime(dur time.Duration) error {
	return d.do(func(h Handle) error { return d.lib.SetPurgeTime(h, dur) })
}
