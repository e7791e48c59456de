// internal/service/errors.go
package service

import "errors"

var (
	// ErrAlreadyConnected is returned when a session is open on another port
	ErrAlreadyConnected = errors.New("a session is already open on another port")
	// ErrPortInUse is returned when probing the port of the open session
	ErrPortInUse = errors.New("port is in use by the open session")
	// ErrInvalidPort is returned for port numbers the vendor library cannot address
	ErrInvalidPort = errors.New("invalid communication port")
	// ErrNothingToUpdate is returned for an empty settings update
	ErrNothingToUpdate = errors.New("no settings to update")
)
