// Package simulator provides an in-memory evactron.Library. It stands in for
// the vendor DLL when no unit is attached, and it is the stub the tests drive:
// failures can be injected per vendor function and every call is counted.
package simulator

import (
	"sync"
	"time"

	"evactron-service/pkg/evactron"
)

// CodeInvalidHandle is returned for calls on a handle the simulator did not
// hand out, or that has been disconnected.
const CodeInvalidHandle = 1401

// Phase durations of the simulated process before the plasma ignites.
const (
	PumpDownDuration    = 5 * time.Second
	StabilizingDuration = 3 * time.Second
	IgnitionDuration    = 2 * time.Second
)

// timerResolution is the step the unit stores plasma and purge times in.
const timerResolution = 10 * time.Second

// Unit is the simulated device state. Pressures are in pascals.
type Unit struct {
	Enabled bool

	State evactron.State
	Cycle int
	Timer time.Duration
	Units evactron.PressureUnit
	Flags int32

	Pressure     float64
	ForwardPower float64
	ReversePower float64
	ValveVoltage float64

	Clock     time.Time
	LastClean time.Time

	Cycles         int
	IgnitePressure float64
	PlasmaPressure float64
	PlasmaPower    float64
	PlasmaTime     time.Duration
	PurgeEnabled   bool
	PurgePressure  float64
	PurgeTime      time.Duration

	LatchedFault int
	DynamicFault int

	DLLVersion         evactron.Version
	FirmwareVersion    evactron.Version
	ApplicationVersion evactron.Version
}

// DefaultUnit returns a unit in the ready state with factory settings.
func DefaultUnit() Unit {
	clock := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.Local)
	return Unit{
		Enabled:            true,
		State:              evactron.StateReady,
		Units:              evactron.UnitPa,
		Pressure:           0.1,
		ValveVoltage:       0,
		Clock:              clock,
		LastClean:          clock.Add(-24 * time.Hour),
		Cycles:             1,
		IgnitePressure:     0.6 * evactron.TorrToPa,
		PlasmaPressure:     0.4 * evactron.TorrToPa,
		PlasmaPower:        14,
		PlasmaTime:         2 * time.Minute,
		PurgeEnabled:       true,
		PurgePressure:      0.8 * evactron.TorrToPa,
		PurgeTime:          time.Minute,
		DLLVersion:         evactron.Version{Major: 1, Minor: 5},
		FirmwareVersion:    evactron.Version{Major: 2, Minor: 3},
		ApplicationVersion: evactron.Version{Major: 3, Minor: 1},
	}
}

// Simulator implements evactron.Library in memory.
type Simulator struct {
	mu sync.Mutex

	unit         Unit
	phaseElapsed time.Duration

	next     evactron.Handle
	handles  map[evactron.Handle]bool
	calls    map[string]int
	failures map[string]error
}

// New returns a simulator holding DefaultUnit.
func New() *Simulator {
	return NewWithUnit(DefaultUnit())
}

// NewWithUnit returns a simulator holding u.
func NewWithUnit(u Unit) *Simulator {
	return &Simulator{
		unit:     u,
		next:     1,
		handles:  make(map[evactron.Handle]bool),
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// FailOn makes every call to the named vendor function return err. A nil err
// clears the failure.
func (s *Simulator) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns how many times the named vendor function was invoked.
func (s *Simulator) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns the number of vendor calls of any kind.
func (s *Simulator) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// OpenHandles returns the number of handles not yet disconnected.
func (s *Simulator) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Snapshot returns a copy of the unit state.
func (s *Simulator) Snapshot() Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit
}

// Update mutates the unit state under the simulator lock.
func (s *Simulator) Update(fn func(*Unit)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.unit)
}

// enter records a call and returns the injected failure, if any. When h is
// non-nil the handle must be open.
func (s *Simulator) enter(op string, h *evactron.Handle) error {
	s.calls[op]++
	if err, ok := s.failures[op]; ok {
		return err
	}
	if h != nil && !s.handles[*h] {
		return &evactron.CallError{Op: op, Code: CodeInvalidHandle}
	}
	return nil
}

func read[T any](s *Simulator, op string, h evactron.Handle, fn func(*Unit) T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(op, &h); err != nil {
		var zero T
		return zero, err
	}
	return fn(&s.unit), nil
}

func (s *Simulator) write(op string, h evactron.Handle, fn func(*Unit)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(op, &h); err != nil {
		return err
	}
	fn(&s.unit)
	return nil
}

//- Session

func (s *Simulator) Connect(port int) (evactron.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("evbConnect", nil); err != nil {
		return 0, err
	}
	h := s.next
	s.next++
	s.handles[h] = true
	return h, nil
}

func (s *Simulator) Disconnect(h evactron.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("evbDisconnect", &h); err != nil {
		return err
	}
	delete(s.handles, h)
	return nil
}

func (s *Simulator) IsConnected(h evactron.Handle) (bool, error) {
	return read(s, "evbIsConnected", h, func(*Unit) bool { return true })
}

func (s *Simulator) EnableUnit(h evactron.Handle, enable bool) error {
	return s.write("evbEnableUnit", h, func(u *Unit) { u.Enabled = enable })
}

//- Faults

func (s *Simulator) Faults(h evactron.Handle) (int, int, error) {
	type pair struct{ latched, dynamic int }
	p, err := read(s, "evbGetFaults", h, func(u *Unit) pair {
		return pair{u.LatchedFault, u.DynamicFault}
	})
	return p.latched, p.dynamic, err
}

// ClearFaults clears the latched fault once the dynamic condition is gone. It
// answers "command ignored" when there is nothing to acknowledge.
func (s *Simulator) ClearFaults(h evactron.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "evbClearFaults"
	if err := s.enter(op, &h); err != nil {
		return err
	}
	if s.unit.LatchedFault == 0 || s.unit.DynamicFault != 0 {
		return &evactron.CallError{Op: op, Code: evactron.CodeCommandIgnored}
	}
	s.unit.LatchedFault = 0
	return nil
}

//- Read only

func (s *Simulator) StatusEx(h evactron.Handle) (evactron.Status, error) {
	return read(s, "evbGetStatusEx", h, func(u *Unit) evactron.Status {
		return evactron.Status{
			State: u.State,
			Cycle: u.Cycle,
			Timer: u.Timer,
			Units: u.Units,
			Flags: u.Flags,
		}
	})
}

func (s *Simulator) DLLVersion() (evactron.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("evbGetDLLVersion", nil); err != nil {
		return evactron.Version{}, err
	}
	return s.unit.DLLVersion, nil
}

func (s *Simulator) FirmwareVersion(h evactron.Handle) (evactron.Version, error) {
	return read(s, "evbGetFirmwareVersion", h, func(u *Unit) evactron.Version { return u.FirmwareVersion })
}

func (s *Simulator) ApplicationVersion(h evactron.Handle) (evactron.Version, error) {
	return read(s, "evbGetApplicationVersion", h, func(u *Unit) evactron.Version { return u.ApplicationVersion })
}

func (s *Simulator) LastCleanTime(h evactron.Handle) (time.Time, error) {
	return read(s, "evbGetLastCleanTime", h, func(u *Unit) time.Time { return u.LastClean })
}

func (s *Simulator) Pressure(h evactron.Handle) (float64, error) {
	return read(s, "evbGetPressure", h, func(u *Unit) float64 { return u.Pressure })
}

func (s *Simulator) ForwardPower(h evactron.Handle) (float64, error) {
	return read(s, "evbGetForwardPower", h, func(u *Unit) float64 { return u.ForwardPower })
}

func (s *Simulator) ReversePower(h evactron.Handle) (float64, error) {
	return read(s, "evbGetReversePower", h, func(u *Unit) float64 { return u.ReversePower })
}

func (s *Simulator) MeteringValveVoltage(h evactron.Handle) (float64, error) {
	return read(s, "evbGetMeteringValveVoltage", h, func(u *Unit) float64 { return u.ValveVoltage })
}

func (s *Simulator) RunTimer(h evactron.Handle) (time.Duration, error) {
	return read(s, "evbGetRunTimer", h, func(u *Unit) time.Duration { return u.Timer })
}

//- General configuration

// Clock reads the date and the time as two vendor calls.
func (s *Simulator) Clock(h evactron.Handle) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range []string{"evbGetDate", "evbGetTime"} {
		if err := s.enter(op, &h); err != nil {
			return time.Time{}, err
		}
	}
	return s.unit.Clock, nil
}

// SetClock writes the date, then the time. A failed time write leaves the new
// date in place, as on the unit.
func (s *Simulator) SetClock(h evactron.Handle, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t = t.In(time.Local).Truncate(time.Second)
	if err := s.enter("evbSetDate", &h); err != nil {
		return err
	}
	old := s.unit.Clock
	s.unit.Clock = time.Date(t.Year(), t.Month(), t.Day(),
		old.Hour(), old.Minute(), old.Second(), 0, time.Local)
	if err := s.enter("evbSetTime", &h); err != nil {
		return err
	}
	s.unit.Clock = t
	return nil
}

//- Plasma configuration

func (s *Simulator) CycleCount(h evactron.Handle) (int, error) {
	return read(s, "evbGetCycleCount", h, func(u *Unit) int { return u.Cycles })
}

func (s *Simulator) SetCycleCount(h evactron.Handle, cycles int) error {
	return s.write("evbSetCycleCount", h, func(u *Unit) { u.Cycles = cycles })
}

func (s *Simulator) IgnitePressureSetpoint(h evactron.Handle) (float64, error) {
	return read(s, "evbGetIgnitePressureSetpoint", h, func(u *Unit) float64 { return u.IgnitePressure })
}

func (s *Simulator) SetIgnitePressureSetpoint(h evactron.Handle, pa float64) error {
	return s.write("evbSetIgnitePressureSetpoint", h, func(u *Unit) { u.IgnitePressure = pa })
}

func (s *Simulator) PlasmaPressureSetpoint(h evactron.Handle) (float64, error) {
	return read(s, "evbGetPlasmaPressureSetpoint", h, func(u *Unit) float64 { return u.PlasmaPressure })
}

func (s *Simulator) SetPlasmaPressureSetpoint(h evactron.Handle, pa float64) error {
	return s.write("evbSetPlasmaPressureSetpoint", h, func(u *Unit) { u.PlasmaPressure = pa })
}

func (s *Simulator) PlasmaPowerSetpoint(h evactron.Handle) (float64, error) {
	return read(s, "evbGetPlasmaPowerSetpoint", h, func(u *Unit) float64 { return u.PlasmaPower })
}

func (s *Simulator) SetPlasmaPowerSetpoint(h evactron.Handle, watts float64) error {
	return s.write("evbSetPlasmaPowerSetpoint", h, func(u *Unit) { u.PlasmaPower = watts })
}

func (s *Simulator) PlasmaTime(h evactron.Handle) (time.Duration, error) {
	return read(s, "evbGetPlasmaTime", h, func(u *Unit) time.Duration { return u.PlasmaTime })
}

func (s *Simulator) SetPlasmaTime(h evactron.Handle, d time.Duration) error {
	return s.write("evbSetPlasmaTime", h, func(u *Unit) { u.PlasmaTime = d.Truncate(timerResolution) })
}

func (s *Simulator) PurgeEnabled(h evactron.Handle) (bool, error) {
	return read(s, "evbGetPurgeEnable", h, func(u *Unit) bool { return u.PurgeEnabled })
}

func (s *Simulator) EnablePurge(h evactron.Handle, enable bool) error {
	return s.write("evbEnablePurge", h, func(u *Unit) { u.PurgeEnabled = enable })
}

func (s *Simulator) PurgePressureSetpoint(h evactron.Handle) (float64, error) {
	return read(s, "evbGetPurgePressureSetpoint", h, func(u *Unit) float64 { return u.PurgePressure })
}

func (s *Simulator) SetPurgePressureSetpoint(h evactron.Handle, pa float64) error {
	return s.write("evbSetPurgePressureSetpoint", h, func(u *Unit) { u.PurgePressure = pa })
}

func (s *Simulator) PurgeTime(h evactron.Handle) (time.Duration, error) {
	return read(s, "evbGetPurgeTime", h, func(u *Unit) time.Duration { return u.PurgeTime })
}

func (s *Simulator) SetPurgeTime(h evactron.Handle, d time.Duration) error {
	return s.write("evbSetPurgeTime", h, func(u *Unit) { u.PurgeTime = d.Truncate(timerResolution) })
}

var _ evactron.Library = (*Simulator)(nil)
