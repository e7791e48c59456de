// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"evactron-service/internal/model"
)

// PortLister enumerates the serial ports of the host
type PortLister func() ([]*enumerator.PortDetails, error)

// Scanner lists communication ports the vendor library can address
type Scanner struct {
	list   PortLister
	logger *zap.Logger
}

// NewScanner creates a scanner backed by the OS port enumerator
func NewScanner(logger *zap.Logger) *Scanner {
	return NewScannerWithLister(enumerator.GetDetailedPortsList, logger)
}

// NewScannerWithLister creates a scanner over a custom enumerator
func NewScannerWithLister(list PortLister, logger *zap.Logger) *Scanner {
	return &Scanner{
		list:   list,
		logger: logger.With(zap.String("scanner", "serial")),
	}
}

// Scan returns the ports present on the host, addressable ports first in
// ascending number order.
func (s *Scanner) Scan(ctx context.Context) ([]*model.PortInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	ports := make([]*model.PortInfo, 0, len(details))
	for _, d := range details {
		number, _ := PortNumber(d.Name)
		ports = append(ports, &model.PortInfo{
			Name:         d.Name,
			Number:       number,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}

	sort.SliceStable(ports, func(i, j int) bool {
		a, b := ports[i].Number, ports[j].Number
		if (a == 0) != (b == 0) {
			return a != 0
		}
		if a != b {
			return a < b
		}
		return ports[i].Name < ports[j].Name
	})

	s.logger.Debug("Serial scan completed", zap.Int("ports_found", len(ports)))
	return ports, nil
}

// PortNumber extracts the number the vendor library expects from a port
// name such as "COM3" or `\\.\COM12`.
func PortNumber(name string) (int, bool) {
	name = strings.TrimPrefix(name, `\\.\`)
	if len(name) < 4 || !strings.EqualFold(name[:3], "COM") {
		return 0, false
	}
	n, err := strconv.Atoi(name[3:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// PortName is the inverse of PortNumber.
func PortName(number int) string {
	return fmt.Sprintf("COM%d", number)
}
