//go:build windows

package vendordll

import (
	"fmt"
	"math"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"evactron-service/pkg/evactron"
)

// Library calls into the vendor DLL.
type Library struct {
	dll   *windows.LazyDLL
	procs map[string]*windows.LazyProc
}

// Load loads the vendor DLL at path and resolves every export the binding
// uses, so a missing function fails here rather than mid-session.
func Load(path string) (evactron.Library, error) {
	if path == "" {
		path = DefaultPath
	}

	dll := windows.NewLazyDLL(path)
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	lib := &Library{
		dll:   dll,
		procs: make(map[string]*windows.LazyProc, len(exports)),
	}
	for _, name := range exports {
		proc := dll.NewProc(name)
		if err := proc.Find(); err != nil {
			return nil, fmt.Errorf("failed to resolve %s in %s: %w", name, path, err)
		}
		lib.procs[name] = proc
	}

	return lib, nil
}

// call invokes a vendor function and returns its 32-bit result. Pointer
// arguments must be converted in the argument list of call or check.
//
//go:uintptrescapes
func (l *Library) call(name string, args ...uintptr) int {
	r, _, _ := l.procs[name].Call(args...)
	return int(int32(r))
}

//go:uintptrescapes
func (l *Library) check(name string, args ...uintptr) error {
	return evactron.CheckCode(name, l.call(name, args...))
}

func h(handle evactron.Handle) uintptr {
	return uintptr(handle)
}

func i(v int) uintptr {
	return uintptr(int32(v))
}

func f(v float32) uintptr {
	return uintptr(math.Float32bits(v))
}

//- Session

func (l *Library) Connect(port int) (evactron.Handle, error) {
	var retval int32
	handle := l.call("evbConnect", i(port), uintptr(unsafe.Pointer(&retval)))
	if err := evactron.CheckCode("evbConnect", int(retval)); err != nil {
		return 0, err
	}
	return evactron.Handle(handle), nil
}

func (l *Library) Disconnect(handle evactron.Handle) error {
	return l.check("evbDisconnect", h(handle))
}

func (l *Library) IsConnected(handle evactron.Handle) (bool, error) {
	var retval int32
	connected := l.call("evbIsConnected", h(handle), uintptr(unsafe.Pointer(&retval)))
	if err := evactron.CheckCode("evbIsConnected", int(retval)); err != nil {
		return false, err
	}
	return connected != 0, nil
}

func (l *Library) EnableUnit(handle evactron.Handle, enable bool) error {
	return l.check("evbEnableUnit", h(handle), i(boolToInt(enable)))
}

//- Faults

func (l *Library) Faults(handle evactron.Handle) (int, int, error) {
	var latched, dynamic int32
	if err := l.check("evbGetFaults", h(handle), uintptr(unsafe.Pointer(&latched)), uintptr(unsafe.Pointer(&dynamic))); err != nil {
		return 0, 0, err
	}
	return int(latched), int(dynamic), nil
}

func (l *Library) ClearFaults(handle evactron.Handle) error {
	return l.check("evbClearFaults", h(handle))
}

//- Read only

func (l *Library) StatusEx(handle evactron.Handle) (evactron.Status, error) {
	var state, cycle, hour, minute, second, units, flags int32
	err := l.check("evbGetStatusEx", h(handle),
		uintptr(unsafe.Pointer(&state)), uintptr(unsafe.Pointer(&cycle)), uintptr(unsafe.Pointer(&hour)), uintptr(unsafe.Pointer(&minute)), uintptr(unsafe.Pointer(&second)),
		uintptr(unsafe.Pointer(&units)), uintptr(unsafe.Pointer(&flags)))
	if err != nil {
		return evactron.Status{}, err
	}

	return evactron.Status{
		State: evactron.State(state),
		Cycle: int(cycle),
		Timer: evactron.JoinDuration(int(hour), int(minute), int(second)),
		Units: evactron.PressureUnit(units),
		Flags: flags,
	}, nil
}

func (l *Library) DLLVersion() (evactron.Version, error) {
	var major, minor int32
	if err := l.check("evbGetDLLVersion", uintptr(unsafe.Pointer(&major)), uintptr(unsafe.Pointer(&minor))); err != nil {
		return evactron.Version{}, err
	}
	return evactron.Version{Major: int(major), Minor: int(minor)}, nil
}

func (l *Library) version(name string, handle evactron.Handle) (evactron.Version, error) {
	var major, minor int32
	if err := l.check(name, h(handle), uintptr(unsafe.Pointer(&major)), uintptr(unsafe.Pointer(&minor))); err != nil {
		return evactron.Version{}, err
	}
	return evactron.Version{Major: int(major), Minor: int(minor)}, nil
}

func (l *Library) FirmwareVersion(handle evactron.Handle) (evactron.Version, error) {
	return l.version("evbGetFirmwareVersion", handle)
}

func (l *Library) ApplicationVersion(handle evactron.Handle) (evactron.Version, error) {
	return l.version("evbGetApplicationVersion", handle)
}

func (l *Library) LastCleanTime(handle evactron.Handle) (time.Time, error) {
	var month, day, year, hour, minute, second int32
	err := l.check("evbGetLastCleanTime", h(handle),
		uintptr(unsafe.Pointer(&month)), uintptr(unsafe.Pointer(&day)), uintptr(unsafe.Pointer(&year)), uintptr(unsafe.Pointer(&hour)), uintptr(unsafe.Pointer(&minute)), uintptr(unsafe.Pointer(&second)))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(int(year), time.Month(month), int(day),
		int(hour), int(minute), int(second), 0, time.Local), nil
}

func (l *Library) float(name string, handle evactron.Handle) (float32, error) {
	var v float32
	if err := l.check(name, h(handle), uintptr(unsafe.Pointer(&v))); err != nil {
		return 0, err
	}
	return v, nil
}

func (l *Library) pressure(name string, handle evactron.Handle) (float64, error) {
	torr, err := l.float(name, handle)
	if err != nil {
		return 0, err
	}
	return torrToPa(torr), nil
}

func (l *Library) Pressure(handle evactron.Handle) (float64, error) {
	return l.pressure("evbGetPressure", handle)
}

func (l *Library) ForwardPower(handle evactron.Handle) (float64, error) {
	v, err := l.float("evbGetForwardPower", handle)
	return float64(v), err
}

func (l *Library) ReversePower(handle evactron.Handle) (float64, error) {
	v, err := l.float("evbGetReversePower", handle)
	return float64(v), err
}

func (l *Library) MeteringValveVoltage(handle evactron.Handle) (float64, error) {
	v, err := l.float("evbGetMeteringValveVoltage", handle)
	return float64(v), err
}

func (l *Library) timer(name string, handle evactron.Handle) (time.Duration, error) {
	var hour, minute, second int32
	if err := l.check(name, h(handle), uintptr(unsafe.Pointer(&hour)), uintptr(unsafe.Pointer(&minute)), uintptr(unsafe.Pointer(&second))); err != nil {
		return 0, err
	}
	return evactron.JoinDuration(int(hour), int(minute), int(second)), nil
}

func (l *Library) setTimer(name string, handle evactron.Handle, d time.Duration) error {
	hour, minute, second := timerFields(d)
	return l.check(name, h(handle), i(hour), i(minute), i(second))
}

func (l *Library) RunTimer(handle evactron.Handle) (time.Duration, error) {
	return l.timer("evbGetRunTimer", handle)
}

//- General configuration

func (l *Library) Clock(handle evactron.Handle) (time.Time, error) {
	var month, day, year, hour, minute, second int32
	if err := l.check("evbGetDate", h(handle), uintptr(unsafe.Pointer(&month)), uintptr(unsafe.Pointer(&day)), uintptr(unsafe.Pointer(&year))); err != nil {
		return time.Time{}, err
	}
	if err := l.check("evbGetTime", h(handle), uintptr(unsafe.Pointer(&hour)), uintptr(unsafe.Pointer(&minute)), uintptr(unsafe.Pointer(&second))); err != nil {
		return time.Time{}, err
	}
	return time.Date(int(year), time.Month(month), int(day),
		int(hour), int(minute), int(second), 0, time.Local), nil
}

func (l *Library) SetClock(handle evactron.Handle, t time.Time) error {
	year, month, day, hour, minute, second := clockFields(t)
	if err := l.check("evbSetDate", h(handle), i(month), i(day), i(year)); err != nil {
		return err
	}
	return l.check("evbSetTime", h(handle), i(hour), i(minute), i(second))
}

//- Plasma configuration

func (l *Library) CycleCount(handle evactron.Handle) (int, error) {
	var cycles int32
	if err := l.check("evbGetCycleCount", h(handle), uintptr(unsafe.Pointer(&cycles))); err != nil {
		return 0, err
	}
	return int(cycles), nil
}

func (l *Library) SetCycleCount(handle evactron.Handle, cycles int) error {
	return l.check("evbSetCycleCount", h(handle), i(cycles))
}

func (l *Library) IgnitePressureSetpoint(handle evactron.Handle) (float64, error) {
	return l.pressure("evbGetIgnitePressureSetpoint", handle)
}

func (l *Library) SetIgnitePressureSetpoint(handle evactron.Handle, pa float64) error {
	return l.check("evbSetIgnitePressureSetpoint", h(handle), f(paToTorr(pa)))
}

func (l *Library) PlasmaPressureSetpoint(handle evactron.Handle) (float64, error) {
	return l.pressure("evbGetPlasmaPressureSetpoint", handle)
}

func (l *Library) SetPlasmaPressureSetpoint(handle evactron.Handle, pa float64) error {
	return l.check("evbSetPlasmaPressureSetpoint", h(handle), f(paToTorr(pa)))
}

func (l *Library) PlasmaPowerSetpoint(handle evactron.Handle) (float64, error) {
	v, err := l.float("evbGetPlasmaPowerSetpoint", handle)
	return float64(v), err
}

func (l *Library) SetPlasmaPowerSetpoint(handle evactron.Handle, watts float64) error {
	return l.check("evbSetPlasmaPowerSetpoint", h(handle), f(float32(watts)))
}

func (l *Library) PlasmaTime(handle evactron.Handle) (time.Duration, error) {
	return l.timer("evbGetPlasmaTime", handle)
}

func (l *Library) SetPlasmaTime(handle evactron.Handle, d time.Duration) error {
	return l.setTimer("evbSetPlasmaTime", handle, d)
}

func (l *Library) PurgeEnabled(handle evactron.Handle) (bool, error) {
	var enabled int32
	if err := l.check("evbGetPurgeEnable", h(handle), uintptr(unsafe.Pointer(&enabled))); err != nil {
		return false, err
	}
	return enabled != 0, nil
}

func (l *Library) EnablePurge(handle evactron.Handle, enable bool) error {
	return l.check("evbEnablePurge", h(handle), i(boolToInt(enable)))
}

func (l *Library) PurgePressureSetpoint(handle evactron.Handle) (float64, error) {
	return l.pressure("evbGetPurgePressureSetpoint", handle)
}

func (l *Library) SetPurgePressureSetpoint(handle evactron.Handle, pa float64) error {
	return l.check("evbSetPurgePressureSetpoint", h(handle), f(paToTorr(pa)))
}

func (l *Library) PurgeTime(handle evactron.Handle) (time.Duration, error) {
	return l.timer("evbGetPurgeTime", handle)
}

func (l *Library) SetPurgeTime(handle evactron.Handle, d time.Duration) error {
	return l.setTimer("evbSetPurgeTime", handle, d)
}

var _ evactron.Library = (*Library)(nil)
