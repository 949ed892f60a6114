// Package camera defines the video input abstraction the scanner reads
// frames from, and device selection by facing-mode preference.
package camera

import (
	"image"
	"time"
)

// Source is a live video input, for example a webcam.
type Source interface {
	// Frames returns a channel from which Frames can be read, each
	// containing one video frame.
	Frames() chan Frame

	// Close releases the underlying device. No further Frames will be
	// sent.
	Close() error
}

// Frame is a single video frame (or error) coming from a Source.
type Frame struct {
	// If set, an error occurred.
	Err error

	// Frame read from the source. If Err is set, Image is not valid.
	Image image.Image
}

// Facing is a camera selection preference: which way the sensor points.
type Facing string

const (
	FacingAny   Facing = ""
	FacingFront Facing = "front"
	FacingRear  Facing = "rear"
)

// Constraints describe the video input a caller wants opened.
type Constraints struct {
	// Explicit device, as returned by a backend's ListDevices. If empty,
	// the backend picks a device matching Facing.
	DeviceID string

	// Preferred sensor direction, used when DeviceID is empty.
	Facing Facing

	// How often to sample a frame. Backends use a default when zero.
	Interval time.Duration

	Verbose bool // Print verbose logging.
}
