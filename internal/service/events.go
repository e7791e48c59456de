// internal/service/events.go
package service

import (
	"errors"
	"time"

	"evactron-service/internal/model"
	"evactron-service/pkg/evactron"
)

// EventPublisher receives device events for live distribution
type EventPublisher interface {
	Publish(event model.DeviceEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.DeviceEvent) {}

func deviceErrorEvent(port int, operation string, err error) model.DeviceEvent {
	data := &model.DeviceErrorEventData{
		Operation:    operation,
		ErrorMessage: err.Error(),
		ErrorTime:    time.Now(),
	}

	var callErr *evactron.CallError
	if errors.As(err, &callErr) {
		code := callErr.Code
		data.ErrorCode = &code
	}
	var fault *evactron.Fault
	if errors.As(err, &fault) {
		code := fault.Code
		data.ErrorCode = &code
	}

	return model.NewDeviceEvent(model.EventDeviceError, port, model.SeverityError, data)
}
