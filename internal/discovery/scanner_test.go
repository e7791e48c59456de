package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

func TestPortNumber(t *testing.T) {
	tests := []struct {
		name   string
		number int
		ok     bool
	}{
		{"COM1", 1, true},
		{"com12", 12, true},
		{`\\.\COM27`, 27, true},
		{"COM0", 0, false},
		{"COM", 0, false},
		{"COMX", 0, false},
		{"/dev/ttyUSB0", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := PortNumber(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.number, n)
		})
	}
	assert.Equal(t, "COM4", PortName(4))
}

func TestScanner_Scan(t *testing.T) {
	lister := func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "COM10"},
			{Name: "COM2", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "EVB123"},
		}, nil
	}
	scanner := NewScannerWithLister(lister, zap.NewNop())

	ports, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 3)

	assert.Equal(t, "COM2", ports[0].Name)
	assert.Equal(t, 2, ports[0].Number)
	assert.True(t, ports[0].IsUSB)
	assert.Equal(t, "EVB123", ports[0].SerialNumber)
	assert.Equal(t, "COM10", ports[1].Name)
	assert.Equal(t, "/dev/ttyS0", ports[2].Name)
	assert.Zero(t, ports[2].Number)
}

func TestScanner_ScanErrors(t *testing.T) {
	boom := errors.New("enumeration failed")
	scanner := NewScannerWithLister(func() ([]*enumerator.PortDetails, error) {
		return nil, boom
	}, zap.NewNop())

	_, err := scanner.Scan(context.Background())
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = scanner.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
