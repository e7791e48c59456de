// pkg/evactron/errors.go
package evactron

import (
	"errors"
	"fmt"
)

// Vendor return codes
const (
	CodeOK             = 0
	CodeCommandIgnored = 1403
)

// ErrNotConnected is returned by every Device method once the handle has been
// released, or before it was ever acquired.
var ErrNotConnected = errors.New("evactron: device not connected")

// CallError is a non-OK return code from a vendor library function.
type CallError struct {
	Op   string
	Code int
}

func (e *CallError) Error() string {
	return fmt.Sprintf("evactron: %s returned code %d", e.Op, e.Code)
}

// ConnectError reports a failure to acquire a handle on a communication port.
type ConnectError struct {
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("evactron: cannot connect to device on port %d: %v", e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// CheckCode converts a vendor return code into an error.
func CheckCode(op string, code int) error {
	if code == CodeOK {
		return nil
	}
	return &CallError{Op: op, Code: code}
}

// IsCommandIgnored reports whether err carries the "command ignored" code.
func IsCommandIgnored(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Code == CodeCommandIgnored
}
