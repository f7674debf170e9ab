package device

import "errors"

// Domain errors for the device package, checked with errors.Is().
var (
	// ErrNotFound is returned when a device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when adding a device with an ID that already exists.
	ErrExists = errors.New("device: already exists")

	// ErrUnknownEntity is returned when an entity key does not exist on a device.
	ErrUnknownEntity = errors.New("device: unknown entity")

	// ErrUnknownProperty is returned when an entity has no mapping for a
	// canonical property name.
	ErrUnknownProperty = errors.New("device: unknown property")
)
