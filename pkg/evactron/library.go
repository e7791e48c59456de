// pkg/evactron/library.go
package evactron

import "time"

// TorrToPa converts Torr, the unit the vendor library speaks, to pascals.
const TorrToPa = 133.322

// Handle is an open vendor library session.
type Handle int32

// Library is the vendor communication API. Each method maps onto one exported
// function of the vendor DLL. Pressures are in pascals, powers in watts and
// voltages in volts; implementations own any conversion to the wire unit.
//
// Implementations report non-OK return codes as *CallError.
type Library interface {
	// Session
	Connect(port int) (Handle, error)
	Disconnect(h Handle) error
	IsConnected(h Handle) (bool, error)
	EnableUnit(h Handle, enable bool) error

	// Faults
	Faults(h Handle) (latched, dynamic int, err error)
	ClearFaults(h Handle) error

	// Read only
	StatusEx(h Handle) (Status, error)
	DLLVersion() (Version, error)
	FirmwareVersion(h Handle) (Version, error)
	ApplicationVersion(h Handle) (Version, error)
	LastCleanTime(h Handle) (time.Time, error)
	Pressure(h Handle) (float64, error)
	ForwardPower(h Handle) (float64, error)
	ReversePower(h Handle) (float64, error)
	MeteringValveVoltage(h Handle) (float64, error)
	RunTimer(h Handle) (time.Duration, error)

	// General configuration
	Clock(h Handle) (time.Time, error)
	SetClock(h Handle, t time.Time) error

	// Plasma configuration
	CycleCount(h Handle) (int, error)
	SetCycleCount(h Handle, cycles int) error
	IgnitePressureSetpoint(h Handle) (float64, error)
	SetIgnitePressureSetpoint(h Handle, pa float64) error
	PlasmaPressureSetpoint(h Handle) (float64, error)
	SetPlasmaPressureSetpoint(h Handle, pa float64) error
	PlasmaPowerSetpoint(h Handle) (float64, error)
	SetPlasmaPowerSetpoint(h Handle, watts float64) error
	PlasmaTime(h Handle) (time.Duration, error)
	SetPlasmaTime(h Handle, d time.Duration) error
	PurgeEnabled(h Handle) (bool, error)
	EnablePurge(h Handle, enable bool) error
	PurgePressureSetpoint(h Handle) (float64, error)
	SetPurgePressureSetpoint(h Handle, pa float64) error
	PurgeTime(h Handle) (time.Duration, error)
	SetPurgeTime(h Handle, d time.Duration) error
}

// SplitDuration breaks d into the hour/minute/second triple the vendor
// library uses for timers.
func SplitDuration(d time.Duration) (hour, minute, second int) {
	total := int(d / time.Second)
	return total / 3600, (total % 3600) / 60, total % 60
}

// JoinDuration is the inverse of SplitDuration.
func JoinDuration(hour, minute, second int) time.Duration {
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second
}
