// Package decode turns video frames into QR payload strings. The scanner
// takes a Func, so decoders are swappable and tests run without a real
// decoder.
package decode

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoCode is returned by a Func when the frame contains no decodable
// code. The scanner treats it as routine and samples the next frame.
var ErrNoCode = errors.New("no code found in frame")

// Func decodes a single frame. It returns the payload text of the first
// code found, or ErrNoCode when the frame has none.
type Func func(img image.Image) (string, error)

// QR returns a Func that decodes QR codes in-process.
func QR() Func {
	reader := qrcode.NewQRCodeReader()
	return func(img image.Image) (string, error) {
		bmp, err := gozxing.NewBinaryBitmapFromImage(img)
		if err != nil {
			return "", fmt.Errorf("binarizing frame: %v", err)
		}
		result, err := reader.Decode(bmp, nil)
		if err != nil {
			// The reader reports "not found" for frames without a
			// code, which is the common case while aiming.
			return "", ErrNoCode
		}
		text := result.String()
		if text == "" {
			return "", ErrNoCode
		}
		return text, nil
	}
}
