package stage

import "errors"

// Sentinel errors returned by sessions, passes, devices and the
// backend registry. Callers match them with errors.Is; wrapped forms
// add the failing operation.
var (
	// ErrSessionNotOpen is returned by Submit or when a session method
	// requires an open begin/end span and none is active.
	ErrSessionNotOpen = errors.New("stage: batch session is not open")

	// ErrSessionOpen is returned by Begin when the session already has
	// an open begin/end span.
	ErrSessionOpen = errors.New("stage: batch session already open")

	// ErrNoCamera is returned when a pass or session is asked to render
	// without a camera. The current target binding is left untouched.
	ErrNoCamera = errors.New("stage: no camera assigned")

	// ErrNoDevice is returned when a pass or session has no device.
	ErrNoDevice = errors.New("stage: no device")

	// ErrSurfaceUnloaded is returned when an unloaded surface is bound
	// or drawn from.
	ErrSurfaceUnloaded = errors.New("stage: surface has been unloaded")

	// ErrIncompatibleSurface is returned by Device.SetTarget when the
	// surface was not created for that device family.
	ErrIncompatibleSurface = errors.New("stage: surface not supported by this device")

	// ErrBatchOpen is returned by Device.BeginBatch when a batch is
	// already accumulating.
	ErrBatchOpen = errors.New("stage: device batch already open")

	// ErrBatchNotOpen is returned by Device.EndBatch without a
	// matching BeginBatch.
	ErrBatchNotOpen = errors.New("stage: no device batch open")

	// ErrBackendNotAvailable is returned when no device backend is
	// registered or none could be created.
	ErrBackendNotAvailable = errors.New("stage: no device backend available")
)
