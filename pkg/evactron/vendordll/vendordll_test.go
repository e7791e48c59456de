package vendordll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPressureConversion(t *testing.T) {
	assert.InDelta(t, 133.322, torrToPa(1), 1e-4)
	assert.InDelta(t, 0.4, float64(paToTorr(53.3288)), 1e-6)
	assert.InDelta(t, 53.3288, torrToPa(paToTorr(53.3288)), 1e-4)
}

func TestTimerFields_RoundsSecondsDownToTen(t *testing.T) {
	hour, minute, second := timerFields(time.Hour + 2*time.Minute + 37*time.Second)
	assert.Equal(t, 1, hour)
	assert.Equal(t, 2, minute)
	assert.Equal(t, 30, second)

	_, _, second = timerFields(9 * time.Second)
	assert.Equal(t, 0, second)
}

func TestClockFields_UseLocalWallClock(t *testing.T) {
	want := time.Date(2025, time.March, 14, 9, 26, 53, 0, time.Local)

	year, month, day, hour, minute, second := clockFields(want.UTC())
	got := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	assert.True(t, want.Equal(got))
	assert.Equal(t, 9, hour)
	assert.Equal(t, 26, minute)
	assert.Equal(t, 53, second)
}

func TestExports(t *testing.T) {
	names := Exports()
	assert.Contains(t, names, "evbConnect")
	assert.Contains(t, names, "evbGetStatusEx")

	names[0] = "changed"
	assert.Equal(t, "evbConnect", Exports()[0])
}
