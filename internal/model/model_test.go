package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evactron-service/internal/simulator"
	"evactron-service/pkg/evactron"
)

func openSim(t *testing.T, sim *simulator.Simulator) *evactron.Device {
	t.Helper()
	dev, err := evactron.Open(sim, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func TestSettingsUpdate_ApplyOnlySetFields(t *testing.T) {
	sim := simulator.New()
	dev := openSim(t, sim)

	cycles := 3
	plasmaTime := 90
	purge := false
	update := &SettingsUpdate{
		Cycles:            &cycles,
		PlasmaTimeSeconds: &plasmaTime,
		PurgeEnabled:      &purge,
	}
	require.False(t, update.Empty())
	require.NoError(t, update.Apply(dev))

	assert.Equal(t, 1, sim.Calls("evbSetCycleCount"))
	assert.Equal(t, 1, sim.Calls("evbSetPlasmaTime"))
	assert.Equal(t, 1, sim.Calls("evbEnablePurge"))
	assert.Zero(t, sim.Calls("evbSetPlasmaPressureSetpoint"))

	settings, err := ReadSettings(dev)
	require.NoError(t, err)
	assert.Equal(t, 3, settings.Cycles)
	assert.Equal(t, 90, settings.PlasmaTimeSeconds)
	assert.False(t, settings.PurgeEnabled)
	assert.Equal(t, simulator.DefaultUnit().PlasmaPower, settings.PlasmaPowerSetpointW)

	assert.Equal(t, JSONObject{
		"cycles":              3,
		"plasma_time_seconds": 90,
		"purge_enabled":       false,
	}, update.Fields())
}

func TestSettingsUpdate_ApplyStopsAtFirstFailure(t *testing.T) {
	sim := simulator.New()
	dev := openSim(t, sim)
	boom := errors.New("bus error")
	sim.FailOn("evbSetPlasmaPowerSetpoint", boom)

	power := 20.0
	plasmaTime := 60
	update := &SettingsUpdate{PlasmaPowerSetpointW: &power, PlasmaTimeSeconds: &plasmaTime}

	err := update.Apply(dev)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, sim.Calls("evbSetPlasmaTime"))
}

func TestSettingsUpdate_Empty(t *testing.T) {
	assert.True(t, (&SettingsUpdate{}).Empty())
	assert.Empty(t, (&SettingsUpdate{}).Fields())
}

func TestTakeReading(t *testing.T) {
	sim := simulator.New()
	sim.Update(func(u *simulator.Unit) {
		u.State = evactron.StateCleaning
		u.Cycle = 2
		u.Timer = 30 * time.Second
		u.PlasmaTime = 2 * time.Minute
		u.Pressure = 53.32881
		u.ForwardPower = 14.04
		u.ReversePower = 0.56
		u.ValveVoltage = 3.256
		u.LatchedFault = 3
	})
	dev := openSim(t, sim)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r, err := TakeReading(dev, now)
	require.NoError(t, err)

	assert.Equal(t, 3, r.Port)
	assert.Equal(t, int(evactron.StateCleaning), r.State)
	assert.Equal(t, "Cleaning", r.StateName)
	assert.Equal(t, 2, r.Cycle)
	assert.Equal(t, "Pa", r.Units)
	assert.True(t, decimal.RequireFromString("53.3288").Equal(r.PressurePa), r.PressurePa.String())
	assert.True(t, decimal.RequireFromString("14").Equal(r.ForwardPowerW), r.ForwardPowerW.String())
	assert.True(t, decimal.RequireFromString("3.26").Equal(r.ValveVoltageV), r.ValveVoltageV.String())
	assert.Equal(t, 30, r.RemainingSeconds)
	assert.Equal(t, 90, r.ElapsedSeconds)
	require.NotNil(t, r.LatchedFault)
	assert.Equal(t, 3, *r.LatchedFault)
	assert.Nil(t, r.DynamicFault)
	assert.Equal(t, now, r.TakenAt)
}

func TestTakeReading_PropagatesVendorError(t *testing.T) {
	sim := simulator.New()
	dev := openSim(t, sim)
	boom := &evactron.CallError{Op: "evbGetForwardPower", Code: 7}
	sim.FailOn("evbGetForwardPower", boom)

	_, err := TakeReading(dev, time.Now())
	assert.Same(t, boom, err)
}

func TestReadVersions(t *testing.T) {
	dev := openSim(t, simulator.New())

	v, err := ReadVersions(dev)
	require.NoError(t, err)
	assert.Equal(t, "1.5", v.DLL)
	assert.Equal(t, "2.3", v.Firmware)
	assert.Equal(t, "3.1", v.Application)
	require.NotNil(t, v.LastClean)
}

func TestNewFaultStatus(t *testing.T) {
	fs := NewFaultStatus(evactron.FaultReport{Latched: evactron.CableFault})
	assert.True(t, fs.Active)
	assert.Nil(t, fs.Dynamic)
	require.NotNil(t, fs.Latched)
	assert.Equal(t, evactron.CableFault.Code, fs.Latched.Code)

	assert.False(t, NewFaultStatus(evactron.FaultReport{}).Active)
}

func TestOperation_Complete(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status OperationStatus
	}{
		{"success", nil, OperationStatusSuccess},
		{"failure", errors.New("boom"), OperationStatusFailed},
		{"timeout", fmt.Errorf("wait: %w", context.DeadlineExceeded), OperationStatusTimeout},
		{"cancelled", context.Canceled, OperationStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(1, OperationTypeEnable, nil)
			assert.False(t, op.IsCompleted())

			op.Complete(tt.err, op.StartedAt.Add(250*time.Millisecond))
			assert.True(t, op.IsCompleted())
			assert.Equal(t, tt.status, op.Status)
			require.NotNil(t, op.DurationMs)
			assert.Equal(t, 250, *op.DurationMs)
			if tt.err == nil {
				assert.Nil(t, op.ErrorMessage)
			} else {
				require.NotNil(t, op.ErrorMessage)
				assert.Equal(t, tt.err.Error(), *op.ErrorMessage)
			}
		})
	}
}

func TestJSONObject_ScanValue(t *testing.T) {
	in := JSONObject{"cycles": float64(2)}
	v, err := in.Value()
	require.NoError(t, err)

	var out JSONObject
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
	assert.Error(t, out.Scan(42))
}
