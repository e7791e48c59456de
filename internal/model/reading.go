// internal/model/reading.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"evactron-service/pkg/evactron"
)

// Precision of stored analog values
const (
	PressurePlaces = 4
	PowerPlaces    = 1
	VoltagePlaces  = 2
)

// Reading is one telemetry snapshot of the unit
type Reading struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Port             int             `json:"port" db:"port"`
	State            int             `json:"state" db:"state"`
	StateName        string          `json:"state_name" db:"state_name"`
	Cycle            int             `json:"cycle" db:"cycle"`
	Units            string          `json:"units" db:"units"`
	PressurePa       decimal.Decimal `json:"pressure_pa" db:"pressure_pa"`
	ForwardPowerW    decimal.Decimal `json:"forward_power_w" db:"forward_power_w"`
	ReversePowerW    decimal.Decimal `json:"reverse_power_w" db:"reverse_power_w"`
	ValveVoltageV    decimal.Decimal `json:"valve_voltage_v" db:"valve_voltage_v"`
	RemainingSeconds int             `json:"remaining_seconds" db:"remaining_seconds"`
	ElapsedSeconds   int             `json:"elapsed_seconds" db:"elapsed_seconds"`
	LatchedFault     *int            `json:"latched_fault,omitempty" db:"latched_fault"`
	DynamicFault     *int            `json:"dynamic_fault,omitempty" db:"dynamic_fault"`
	TakenAt          time.Time       `json:"taken_at" db:"taken_at"`
}

// TakeReading reads a full snapshot from dev.
func TakeReading(dev *evactron.Device, now time.Time) (*Reading, error) {
	status, err := dev.Status()
	if err != nil {
		return nil, err
	}
	pressure, err := dev.PressurePa()
	if err != nil {
		return nil, err
	}
	forward, err := dev.ForwardPowerW()
	if err != nil {
		return nil, err
	}
	reverse, err := dev.ReversePowerW()
	if err != nil {
		return nil, err
	}
	valve, err := dev.MeteringValveVoltageV()
	if err != nil {
		return nil, err
	}
	elapsed, err := dev.Elapsed()
	if err != nil {
		return nil, err
	}
	faults, err := dev.Faults()
	if err != nil {
		return nil, err
	}

	r := &Reading{
		ID:               uuid.New(),
		Port:             dev.Port(),
		State:            int(status.State),
		StateName:        status.State.String(),
		Cycle:            status.Cycle,
		Units:            status.Units.String(),
		PressurePa:       decimal.NewFromFloat(pressure).Round(PressurePlaces),
		ForwardPowerW:    decimal.NewFromFloat(forward).Round(PowerPlaces),
		ReversePowerW:    decimal.NewFromFloat(reverse).Round(PowerPlaces),
		ValveVoltageV:    decimal.NewFromFloat(valve).Round(VoltagePlaces),
		RemainingSeconds: int(status.Timer / time.Second),
		ElapsedSeconds:   int(elapsed / time.Second),
		TakenAt:          now,
	}
	r.LatchedFault = faultCode(faults.Latched)
	r.DynamicFault = faultCode(faults.Dynamic)
	return r, nil
}

func faultCode(f *evactron.Fault) *int {
	if f == nil {
		return nil
	}
	code := f.Code
	return &code
}

// ReadingFilter selects stored readings
type ReadingFilter struct {
	Port  *int       `json:"port,omitempty"`
	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`
	Limit int        `json:"limit"`
}
