package camera

import "strings"

// DeviceCap describes a capability of a device.
type DeviceCap struct {
	Type      string // "video/x-raw" or "image/jpeg"
	Width     int
	Height    int
	Framerate int
}

// Device is a camera device capable of producing video frames.
type Device struct {
	Name string
	ID   string
	Caps []DeviceCap
}

// Name fragments that indicate which way a sensor points. Device names come
// from the OS and are free-form, so matching is best effort.
var (
	frontHints = []string{"front", "facetime", "integrated", "built-in"}
	rearHints  = []string{"rear", "back", "world", "external", "usb"}
)

// PickDevice returns the device from devs best matching the facing
// preference, or the first device when nothing matches or no preference is
// given. devs must not be empty.
func PickDevice(devs []Device, facing Facing) Device {
	var hints []string
	switch facing {
	case FacingFront:
		hints = frontHints
	case FacingRear:
		hints = rearHints
	default:
		return devs[0]
	}
	for _, dev := range devs {
		name := strings.ToLower(dev.Name)
		for _, h := range hints {
			if strings.Contains(name, h) {
				return dev
			}
		}
	}
	return devs[0]
}
