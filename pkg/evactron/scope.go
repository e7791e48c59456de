// pkg/evactron/scope.go
package evactron

import "context"

// WithDevice opens the device on port, runs fn and always releases the
// handle, whether fn returns normally, returns an error, panics or ctx is
// canceled while it runs.
//
// fn's error is returned unchanged. The release error is returned only when
// fn succeeded.
func WithDevice(ctx context.Context, lib Library, port int, fn func(context.Context, *Device) error, opts ...Option) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	dev, err := Open(lib, port, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dev.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, dev)
}
