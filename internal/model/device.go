// internal/model/device.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"evactron-service/pkg/evactron"
)

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONObject source type %T", value)
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// SessionInfo describes the service's long-lived connection to the unit
type SessionInfo struct {
	Connected   bool       `json:"connected"`
	Port        int        `json:"port,omitempty"`
	Library     string     `json:"library"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// Settings is the plasma and purge configuration of the unit
type Settings struct {
	Cycles                   int     `json:"cycles"`
	IgnitePressureSetpointPa float64 `json:"ignite_pressure_setpoint_pa"`
	PlasmaPressureSetpointPa float64 `json:"plasma_pressure_setpoint_pa"`
	PlasmaPowerSetpointW     float64 `json:"plasma_power_setpoint_w"`
	PlasmaTimeSeconds        int     `json:"plasma_time_seconds"`
	PurgeEnabled             bool    `json:"purge_enabled"`
	PurgePressureSetpointPa  float64 `json:"purge_pressure_setpoint_pa"`
	PurgeTimeSeconds         int     `json:"purge_time_seconds"`
}

// SettingsUpdate carries a partial settings change. Nil fields are left as they are.
type SettingsUpdate struct {
	Cycles                   *int     `json:"cycles,omitempty"`
	IgnitePressureSetpointPa *float64 `json:"ignite_pressure_setpoint_pa,omitempty"`
	PlasmaPressureSetpointPa *float64 `json:"plasma_pressure_setpoint_pa,omitempty"`
	PlasmaPowerSetpointW     *float64 `json:"plasma_power_setpoint_w,omitempty"`
	PlasmaTimeSeconds        *int     `json:"plasma_time_seconds,omitempty"`
	PurgeEnabled             *bool    `json:"purge_enabled,omitempty"`
	PurgePressureSetpointPa  *float64 `json:"purge_pressure_setpoint_pa,omitempty"`
	PurgeTimeSeconds         *int     `json:"purge_time_seconds,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u *SettingsUpdate) Empty() bool {
	return u.Cycles == nil &&
		u.IgnitePressureSetpointPa == nil &&
		u.PlasmaPressureSetpointPa == nil &&
		u.PlasmaPowerSetpointW == nil &&
		u.PlasmaTimeSeconds == nil &&
		u.PurgeEnabled == nil &&
		u.PurgePressureSetpointPa == nil &&
		u.PurgeTimeSeconds == nil
}

// Apply writes the set fields to dev, one vendor call per field.
func (u *SettingsUpdate) Apply(dev *evactron.Device) error {
	if u.Cycles != nil {
		if err := dev.SetCycles(*u.Cycles); err != nil {
			return fmt.Errorf("failed to set cycles: %w", err)
		}
	}
	if u.IgnitePressureSetpointPa != nil {
		if err := dev.SetIgnitePressureSetpointPa(*u.IgnitePressureSetpointPa); err != nil {
			return fmt.Errorf("failed to set ignite pressure: %w", err)
		}
	}
	if u.PlasmaPressureSetpointPa != nil {
		if err := dev.SetPlasmaPressureSetpointPa(*u.PlasmaPressureSetpointPa); err != nil {
			return fmt.Errorf("failed to set plasma pressure: %w", err)
		}
	}
	if u.PlasmaPowerSetpointW != nil {
		if err := dev.SetPlasmaPowerSetpointW(*u.PlasmaPowerSetpointW); err != nil {
			return fmt.Errorf("failed to set plasma power: %w", err)
		}
	}
	if u.PlasmaTimeSeconds != nil {
		if err := dev.SetPlasmaTime(seconds(*u.PlasmaTimeSeconds)); err != nil {
			return fmt.Errorf("failed to set plasma time: %w", err)
		}
	}
	if u.PurgeEnabled != nil {
		if err := dev.SetPurgeEnabled(*u.PurgeEnabled); err != nil {
			return fmt.Errorf("failed to set purge enable: %w", err)
		}
	}
	if u.PurgePressureSetpointPa != nil {
		if err := dev.SetPurgePressureSetpointPa(*u.PurgePressureSetpointPa); err != nil {
			return fmt.Errorf("failed to set purge pressure: %w", err)
		}
	}
	if u.PurgeTimeSeconds != nil {
		if err := dev.SetPurgeTime(seconds(*u.PurgeTimeSeconds)); err != nil {
			return fmt.Errorf("failed to set purge time: %w", err)
		}
	}
	return nil
}

// Fields returns the set fields keyed by their JSON names, for auditing.
func (u *SettingsUpdate) Fields() JSONObject {
	fields := JSONObject{}
	if u.Cycles != nil {
		fields["cycles"] = *u.Cycles
	}
	if u.IgnitePressureSetpointPa != nil {
		fields["ignite_pressure_setpoint_pa"] = *u.IgnitePressureSetpointPa
	}
	if u.PlasmaPressureSetpointPa != nil {
		fields["plasma_pressure_setpoint_pa"] = *u.PlasmaPressureSetpointPa
	}
	if u.PlasmaPowerSetpointW != nil {
		fields["plasma_power_setpoint_w"] = *u.PlasmaPowerSetpointW
	}
	if u.PlasmaTimeSeconds != nil {
		fields["plasma_time_seconds"] = *u.PlasmaTimeSeconds
	}
	if u.PurgeEnabled != nil {
		fields["purge_enabled"] = *u.PurgeEnabled
	}
	if u.PurgePressureSetpointPa != nil {
		fields["purge_pressure_setpoint_pa"] = *u.PurgePressureSetpointPa
	}
	if u.PurgeTimeSeconds != nil {
		fields["purge_time_seconds"] = *u.PurgeTimeSeconds
	}
	return fields
}

// ReadSettings reads every configuration value from dev.
func ReadSettings(dev *evactron.Device) (*Settings, error) {
	var (
		s   Settings
		err error
	)
	if s.Cycles, err = dev.Cycles(); err != nil {
		return nil, fmt.Errorf("failed to read cycles: %w", err)
	}
	if s.IgnitePressureSetpointPa, err = dev.IgnitePressureSetpointPa(); err != nil {
		return nil, fmt.Errorf("failed to read ignite pressure: %w", err)
	}
	if s.PlasmaPressureSetpointPa, err = dev.PlasmaPressureSetpointPa(); err != nil {
		return nil, fmt.Errorf("failed to read plasma pressure: %w", err)
	}
	if s.PlasmaPowerSetpointW, err = dev.PlasmaPowerSetpointW(); err != nil {
		return nil, fmt.Errorf("failed to read plasma power: %w", err)
	}
	plasmaTime, err := dev.PlasmaTime()
	if err != nil {
		return nil, fmt.Errorf("failed to read plasma time: %w", err)
	}
	s.PlasmaTimeSeconds = int(plasmaTime / time.Second)
	if s.PurgeEnabled, err = dev.PurgeEnabled(); err != nil {
		return nil, fmt.Errorf("failed to read purge enable: %w", err)
	}
	if s.PurgePressureSetpointPa, err = dev.PurgePressureSetpointPa(); err != nil {
		return nil, fmt.Errorf("failed to read purge pressure: %w", err)
	}
	purgeTime, err := dev.PurgeTime()
	if err != nil {
		return nil, fmt.Errorf("failed to read purge time: %w", err)
	}
	s.PurgeTimeSeconds = int(purgeTime / time.Second)
	return &s, nil
}

// Versions lists the software versions of the vendor library and the unit
type Versions struct {
	DLL         string     `json:"dll"`
	Firmware    string     `json:"firmware"`
	Application string     `json:"application"`
	LastClean   *time.Time `json:"last_clean,omitempty"`
}

// ReadVersions reads the versions and last clean time from dev.
func ReadVersions(dev *evactron.Device) (*Versions, error) {
	dll, err := dev.DLLVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLL version: %w", err)
	}
	fw, err := dev.FirmwareVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware version: %w", err)
	}
	app, err := dev.ApplicationVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to read application version: %w", err)
	}
	lastClean, err := dev.LastClean()
	if err != nil {
		return nil, fmt.Errorf("failed to read last clean time: %w", err)
	}

	v := &Versions{
		DLL:         dll.String(),
		Firmware:    fw.String(),
		Application: app.String(),
	}
	if !lastClean.IsZero() {
		v.LastClean = &lastClean
	}
	return v, nil
}

// FaultInfo is the JSON form of a vendor fault
type FaultInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewFaultInfo converts f, returning nil for no fault.
func NewFaultInfo(f *evactron.Fault) *FaultInfo {
	if f == nil {
		return nil
	}
	return &FaultInfo{Code: f.Code, Message: f.Message}
}

// FaultStatus is the pair of fault registers
type FaultStatus struct {
	Dynamic *FaultInfo `json:"dynamic,omitempty"`
	Latched *FaultInfo `json:"latched,omitempty"`
	Active  bool       `json:"active"`
}

// NewFaultStatus converts a vendor fault report.
func NewFaultStatus(r evactron.FaultReport) *FaultStatus {
	return &FaultStatus{
		Dynamic: NewFaultInfo(r.Dynamic),
		Latched: NewFaultInfo(r.Latched),
		Active:  r.Any(),
	}
}

// ClockInfo is the unit's clock
type ClockInfo struct {
	Time time.Time `json:"time"`
}

// ProbeResult is what a one-shot probe of a port found
type ProbeResult struct {
	Port      int       `json:"port"`
	Connected bool      `json:"connected"`
	Versions  *Versions `json:"versions,omitempty"`
	State     string    `json:"state,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}

// PortInfo describes a communication port present on the host
type PortInfo struct {
	Name         string `json:"name"`
	Number       int    `json:"number"`
	InUse        bool   `json:"in_use"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
