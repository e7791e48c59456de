// Package vendordll binds evactron.Library onto the EvactronComm DLL shipped
// with the Evactron de-contaminator. The binding only exists on Windows; on
// other platforms Load returns ErrUnsupportedPlatform.
package vendordll

import (
	"errors"
	"time"

	"evactron-service/pkg/evactron"
)

// DefaultPath is the file name of the vendor library.
const DefaultPath = "EvactronComm_VB6.dll"

// ErrUnsupportedPlatform is returned by Load outside Windows.
var ErrUnsupportedPlatform = errors.New("vendordll: the vendor library is only available on windows")

// exports lists every function the binding resolves at load time.
var exports = []string{
	"evbConnect",
	"evbDisconnect",
	"evbIsConnected",
	"evbEnableUnit",
	"evbGetFaults",
	"evbClearFaults",
	"evbGetStatusEx",
	"evbGetDLLVersion",
	"evbGetFirmwareVersion",
	"evbGetApplicationVersion",
	"evbGetLastCleanTime",
	"evbGetPressure",
	"evbGetForwardPower",
	"evbGetReversePower",
	"evbGetMeteringValveVoltage",
	"evbGetRunTimer",
	"evbGetDate",
	"evbGetTime",
	"evbSetDate",
	"evbSetTime",
	"evbGetCycleCount",
	"evbSetCycleCount",
	"evbGetIgnitePressureSetpoint",
	"evbSetIgnitePressureSetpoint",
	"evbGetPlasmaPressureSetpoint",
	"evbSetPlasmaPressureSetpoint",
	"evbGetPlasmaPowerSetpoint",
	"evbSetPlasmaPowerSetpoint",
	"evbGetPlasmaTime",
	"evbSetPlasmaTime",
	"evbGetPurgeEnable",
	"evbEnablePurge",
	"evbGetPurgePressureSetpoint",
	"evbSetPurgePressureSetpoint",
	"evbGetPurgeTime",
	"evbSetPurgeTime",
}

// Exports returns the vendor functions the binding depends on.
func Exports() []string {
	out := make([]string, len(exports))
	copy(out, exports)
	return out
}

func torrToPa(torr float32) float64 {
	return float64(torr) * evactron.TorrToPa
}

func paToTorr(pa float64) float32 {
	return float32(pa / evactron.TorrToPa)
}

// timerFields splits a phase duration for the vendor setters. The unit only
// keeps seconds in steps of ten, anything else is rounded down.
func timerFields(d time.Duration) (hour, minute, second int) {
	hour, minute, second = evactron.SplitDuration(d)
	return hour, minute, (second / 10) * 10
}

// clockFields splits t for evbSetDate and evbSetTime. The unit keeps local
// wall clock time, the same zone Clock reads it back in.
func clockFields(t time.Time) (year, month, day, hour, minute, second int) {
	t = t.In(time.Local)
	y, m, d := t.Date()
	return y, int(m), d, t.Hour(), t.Minute(), t.Second()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
