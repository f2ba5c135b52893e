//go:build !linux && !(darwin && cgo)

package platform

import (
	"fmt"
	"runtime"
)

// New opens the backend for the current platform. Only linux (X11) and
// darwin built with cgo have an accessibility backend.
func New() (Backend, error) {
	if runtime.GOOS == "darwin" {
		return nil, fmt.Errorf("%w: the macOS backend requires cgo, rebuild with CGO_ENABLED=1", ErrUnsupported)
	}
	return nil, fmt.Errorf("%w (%s)", ErrUnsupported, runtime.GOOS)
}

// Trusted always reports false where no backend exists.
func Trusted(prompt bool) bool {
	return false
}
