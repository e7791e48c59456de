package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evactron-service/pkg/evactron"
)

func TestSimulator_Handles(t *testing.T) {
	sim := New()

	h1, err := sim.Connect(1)
	require.NoError(t, err)
	h2, err := sim.Connect(1)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, sim.OpenHandles())

	require.NoError(t, sim.Disconnect(h1))
	assert.Equal(t, 1, sim.OpenHandles())

	_, err = sim.Pressure(h1)
	var ce *evactron.CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeInvalidHandle, ce.Code)
	assert.Equal(t, "evbGetPressure", ce.Op)

	err = sim.Disconnect(h1)
	assert.ErrorAs(t, err, &ce)
}

func TestSimulator_FailOn(t *testing.T) {
	sim := New()
	h, err := sim.Connect(1)
	require.NoError(t, err)

	boom := errors.New("boom")
	sim.FailOn("evbGetForwardPower", boom)
	_, err = sim.ForwardPower(h)
	assert.Same(t, boom, err)
	assert.Equal(t, 1, sim.Calls("evbGetForwardPower"))

	sim.FailOn("evbGetForwardPower", nil)
	_, err = sim.ForwardPower(h)
	assert.NoError(t, err)
	assert.Equal(t, 2, sim.Calls("evbGetForwardPower"))
}

func TestSimulator_ClockUsesDateAndTimeExports(t *testing.T) {
	sim := New()
	h, err := sim.Connect(1)
	require.NoError(t, err)

	_, err = sim.Clock(h)
	require.NoError(t, err)
	assert.Equal(t, 1, sim.Calls("evbGetDate"))
	assert.Equal(t, 1, sim.Calls("evbGetTime"))

	boom := errors.New("boom")
	sim.FailOn("evbGetTime", boom)
	_, err = sim.Clock(h)
	assert.Same(t, boom, err)
	sim.FailOn("evbGetTime", nil)

	before := sim.Snapshot().Clock
	want := time.Date(2025, time.June, 2, 14, 5, 30, 0, time.Local)
	sim.FailOn("evbSetTime", boom)
	err = sim.SetClock(h, want)
	assert.Same(t, boom, err)
	got := sim.Snapshot().Clock
	assert.Equal(t, want.Day(), got.Day())
	assert.Equal(t, before.Hour(), got.Hour())
	assert.Equal(t, before.Minute(), got.Minute())

	sim.FailOn("evbSetTime", nil)
	require.NoError(t, sim.SetClock(h, want.UTC()))
	got, err = sim.Clock(h)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
	assert.Equal(t, want.Hour(), got.Hour())
}

func TestSimulator_TimersRoundDownToTenSeconds(t *testing.T) {
	sim := New()
	h, err := sim.Connect(1)
	require.NoError(t, err)

	require.NoError(t, sim.SetPlasmaTime(h, 45*time.Second))
	plasma, err := sim.PlasmaTime(h)
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, plasma)

	require.NoError(t, sim.SetPurgeTime(h, 2*time.Minute+9*time.Second))
	purge, err := sim.PurgeTime(h)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, purge)
}

func TestSimulator_ClearFaults(t *testing.T) {
	sim := New()
	h, err := sim.Connect(1)
	require.NoError(t, err)

	err = sim.ClearFaults(h)
	assert.True(t, evactron.IsCommandIgnored(err))

	sim.Update(func(u *Unit) {
		u.LatchedFault = 7
		u.DynamicFault = 7
	})
	err = sim.ClearFaults(h)
	assert.True(t, evactron.IsCommandIgnored(err), "condition still present")

	sim.Update(func(u *Unit) { u.DynamicFault = 0 })
	require.NoError(t, sim.ClearFaults(h))
	assert.Zero(t, sim.Snapshot().LatchedFault)
}

func TestSimulator_Process(t *testing.T) {
	sim := New()
	sim.Update(func(u *Unit) {
		u.Cycles = 1
		u.PlasmaTime = time.Minute
		u.PurgeEnabled = true
		u.PurgeTime = 30 * time.Second
	})

	require.True(t, sim.Start())
	assert.Equal(t, evactron.StatePumpDown, sim.Snapshot().State)
	assert.False(t, sim.Start(), "already running")

	sim.Advance(PumpDownDuration)
	assert.Equal(t, evactron.StateStabilizingPressure, sim.Snapshot().State)

	sim.Advance(StabilizingDuration + IgnitionDuration)
	u := sim.Snapshot()
	assert.Equal(t, evactron.StateCleaning, u.State)
	assert.Equal(t, time.Minute, u.Timer)
	assert.Equal(t, u.PlasmaPressure, u.Pressure)
	assert.Equal(t, u.PlasmaPower, u.ForwardPower)

	sim.Advance(20 * time.Second)
	assert.Equal(t, 40*time.Second, sim.Snapshot().Timer)

	sim.Advance(40 * time.Second)
	u = sim.Snapshot()
	assert.Equal(t, evactron.StatePurging, u.State)
	assert.Equal(t, 30*time.Second, u.Timer)
	assert.Zero(t, u.ForwardPower)

	sim.Advance(time.Hour)
	u = sim.Snapshot()
	assert.Equal(t, evactron.StateReady, u.State)
	assert.Zero(t, u.Cycle)
}

func TestSimulator_MultipleCycles(t *testing.T) {
	sim := New()
	sim.Update(func(u *Unit) {
		u.Cycles = 2
		u.PlasmaTime = 10 * time.Second
		u.PurgeEnabled = false
	})

	require.True(t, sim.Start())
	sim.Advance(PumpDownDuration + StabilizingDuration + IgnitionDuration + 10*time.Second)
	u := sim.Snapshot()
	assert.Equal(t, evactron.StatePumpDown, u.State)
	assert.Equal(t, 2, u.Cycle)
}

func TestSimulator_DisabledUnitHolds(t *testing.T) {
	sim := New()
	require.True(t, sim.Start())
	sim.Update(func(u *Unit) { u.Enabled = false })

	before := sim.Snapshot()
	sim.Advance(time.Minute)
	after := sim.Snapshot()

	assert.Equal(t, evactron.StatePumpDown, after.State)
	assert.Equal(t, before.Clock.Add(time.Minute), after.Clock)
}

func TestSimulator_RunAdvancesClock(t *testing.T) {
	sim := New()
	start := sim.Snapshot().Clock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return sim.Snapshot().Clock.After(start)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
