package render

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateExtension is returned when a capability key is registered twice.
	ErrDuplicateExtension = errors.New("render: extension already registered")
	// ErrUnsupported is returned by drivers when a requested layer, extension
	// or feature is not available on the device.
	ErrUnsupported = errors.New("render: capability not supported")
	// ErrInvalidConfig reports frame counts or sizes that cannot be honoured.
	ErrInvalidConfig = errors.New("render: invalid configuration")
	// ErrOutOfDate is reported by a swapchain that no longer matches its surface.
	ErrOutOfDate = errors.New("render: surface out of date")
	// ErrSuboptimal is reported by a swapchain that still works but should be rebuilt.
	ErrSuboptimal = errors.New("render: surface suboptimal")
	// ErrNoSurface is returned when a Window is requested from a device that
	// cannot present.
	ErrNoSurface = errors.New("render: device cannot create surfaces")
)

// FatalError wraps a failed wait or submission. CPU and GPU state can no
// longer be synchronized once one is returned; the only way out is teardown.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("render: fatal %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether err came from a failed wait or submission.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
