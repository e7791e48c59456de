// pkg/evactron/state.go
package evactron

import (
	"fmt"
	"time"
)

// State is the operating state reported by the device.
type State int

const (
	StateInvalid             State = -1
	StateStartup             State = 0
	StateInitialized         State = 1
	StateReady               State = 10
	StateStabilizingPressure State = 11
	StateWaitForIgnition     State = 12
	StateCleaning            State = 13
	StatePurging             State = 14
	StatePumpDown            State = 15
	StateConfiguration       State = 32
)

var stateMessages = map[State]string{
	StateInvalid:             "Invalid state",
	StateStartup:             "Starting up",
	StateInitialized:         "Initialized",
	StateReady:               "Ready",
	StateStabilizingPressure: "Stabilizing pressure",
	StateWaitForIgnition:     "Waiting for ignition",
	StateCleaning:            "Cleaning",
	StatePurging:             "Purging",
	StatePumpDown:            "Pumping down",
	StateConfiguration:       "Front panel configuration on",
}

// Known reports whether the state code is one the device documents.
func (s State) Known() bool {
	_, ok := stateMessages[s]
	return ok
}

func (s State) String() string {
	if msg, ok := stateMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PressureUnit is the unit selected on the front panel display.
type PressureUnit int

const (
	UnitTorr PressureUnit = 0
	UnitPa   PressureUnit = 1
	UnitMbar PressureUnit = 2
)

func (u PressureUnit) String() string {
	switch u {
	case UnitTorr:
		return "Torr"
	case UnitPa:
		return "Pa"
	case UnitMbar:
		return "mbar"
	default:
		return fmt.Sprintf("PressureUnit(%d)", int(u))
	}
}

// Status is the result of evbGetStatusEx.
type Status struct {
	State State
	Cycle int
	// Timer is the time remaining in the current plasma or purge phase.
	Timer time.Duration
	Units PressureUnit
	// Flags is the raw status bit field.
	Flags int32
}

// Running reports whether a plasma or purge phase is in progress.
func (s Status) Running() bool {
	return s.State == StateCleaning || s.State == StatePurging
}

// Version is a major/minor pair.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
