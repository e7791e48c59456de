//go:build !windows

package vendordll

import "evactron-service/pkg/evactron"

// Load always fails outside Windows.
func Load(path string) (evactron.Library, error) {
	return nil, ErrUnsupportedPlatform
}
