package simulator

import (
	"context"
	"time"

	"evactron-service/pkg/evactron"
)

const (
	idlePressure   = 0.1
	reflectedRatio = 0.04
	valveOpenVolts = 3.2
)

// Start begins a cleaning run the way the front panel start key does. It is a
// no-op unless the unit is enabled and ready.
func (s *Simulator) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.unit.Enabled || s.unit.State != evactron.StateReady {
		return false
	}
	s.unit.Cycle = 1
	s.enterPhase(evactron.StatePumpDown)
	return true
}

// Advance moves the simulated clock and process forward by d. A disabled unit
// only advances its clock.
func (s *Simulator) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unit.Clock = s.unit.Clock.Add(d)
	if !s.unit.Enabled || s.unit.DynamicFault != 0 {
		return
	}

	for d > 0 {
		step := s.remaining()
		if step <= 0 || step > d {
			step = d
		}
		d -= step
		s.phaseElapsed += step

		if s.unit.State == evactron.StateCleaning || s.unit.State == evactron.StatePurging {
			s.unit.Timer -= step
			if s.unit.Timer < 0 {
				s.unit.Timer = 0
			}
		}

		if s.remaining() == 0 {
			s.nextPhase()
		}
		if s.unit.State == evactron.StateReady {
			return
		}
	}
}

// remaining returns the time left in the current phase, -1 for phases that
// do not end on their own.
func (s *Simulator) remaining() time.Duration {
	switch s.unit.State {
	case evactron.StatePumpDown:
		return PumpDownDuration - s.phaseElapsed
	case evactron.StateStabilizingPressure:
		return StabilizingDuration - s.phaseElapsed
	case evactron.StateWaitForIgnition:
		return IgnitionDuration - s.phaseElapsed
	case evactron.StateCleaning, evactron.StatePurging:
		return s.unit.Timer
	default:
		return -1
	}
}

func (s *Simulator) nextPhase() {
	switch s.unit.State {
	case evactron.StatePumpDown:
		s.enterPhase(evactron.StateStabilizingPressure)
	case evactron.StateStabilizingPressure:
		s.enterPhase(evactron.StateWaitForIgnition)
	case evactron.StateWaitForIgnition:
		s.enterPhase(evactron.StateCleaning)
	case evactron.StateCleaning:
		if s.unit.PurgeEnabled {
			s.enterPhase(evactron.StatePurging)
			return
		}
		s.finishCycle()
	case evactron.StatePurging:
		s.finishCycle()
	}
}

func (s *Simulator) finishCycle() {
	if s.unit.Cycle < s.unit.Cycles {
		s.unit.Cycle++
		s.enterPhase(evactron.StatePumpDown)
		return
	}
	s.unit.Cycle = 0
	s.enterPhase(evactron.StateReady)
}

func (s *Simulator) enterPhase(state evactron.State) {
	u := &s.unit
	u.State = state
	u.Timer = 0
	u.ForwardPower = 0
	u.ReversePower = 0
	s.phaseElapsed = 0

	switch state {
	case evactron.StatePumpDown:
		u.Pressure = idlePressure
		u.ValveVoltage = 0
	case evactron.StateStabilizingPressure, evactron.StateWaitForIgnition:
		u.Pressure = u.IgnitePressure
		u.ValveVoltage = valveOpenVolts
	case evactron.StateCleaning:
		u.Pressure = u.PlasmaPressure
		u.ForwardPower = u.PlasmaPower
		u.ReversePower = u.PlasmaPower * reflectedRatio
		u.ValveVoltage = valveOpenVolts
		u.Timer = u.PlasmaTime
		u.LastClean = u.Clock
	case evactron.StatePurging:
		u.Pressure = u.PurgePressure
		u.ValveVoltage = valveOpenVolts
		u.Timer = u.PurgeTime
	default:
		u.Pressure = idlePressure
		u.ValveVoltage = 0
	}
}

// Run advances the simulation in real time, one tick at a time, until ctx is
// done.
func (s *Simulator) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
}
