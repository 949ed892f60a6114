package ffmpeg

import (
	"reflect"
	"testing"

	"github.com/soumya-jain123/libscan-go/camera"
)

func TestParseDevices(t *testing.T) {
	const v4l2 = `Integrated Camera: Integrated C (usb-0000:00:14.0-8):
	/dev/video0
	/dev/video1

Logitech Webcam C920 (usb-0000:00:14.0-2):
	/dev/video2

bcm2835-codec-decode (platform:bcm2835-codec):
	/dev/video10
`

	devs, err := parseDevices(v4l2)
	if err != nil {
		t.Fatalf("parsing v4l2-ctl output: %v", err)
	}
	exp := []camera.Device{
		{Name: "Integrated Camera: Integrated C (usb-0000:00:14.0-8): (/dev/video0)", ID: "/dev/video0"},
		{Name: "Integrated Camera: Integrated C (usb-0000:00:14.0-8): (/dev/video1)", ID: "/dev/video1"},
		{Name: "Logitech Webcam C920 (usb-0000:00:14.0-2): (/dev/video2)", ID: "/dev/video2"},
	}
	if !reflect.DeepEqual(devs, exp) {
		t.Fatalf("v4l2 devices, got %v, expected %v", devs, exp)
	}

	if _, err := parseDevices("bcm2835-codec-decode (platform:bcm2835-codec):\n\t/dev/video10\n"); err == nil {
		t.Fatalf("missing error for output without usable devices")
	}
}
