// Package zbarimg implements a decoder that shells out to the zbarimg
// command, for hosts where the pure-Go decoder is too slow for the chosen
// sampling interval.
package zbarimg

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	libscan "github.com/soumya-jain123/libscan-go"
	"github.com/soumya-jain123/libscan-go/decode"
)

var errInstallHint = errors.New("executable not found, install with: sudo apt install -y zbar-tools")

// Opts are options for a new Decoder.
type Opts struct {
	Verbose bool
}

// Decoder writes each frame to temporary storage and runs zbarimg on it.
type Decoder struct {
	opts    Opts
	tempDir string
}

// New returns a new Decoder. Callers must call Close to remove the
// temporary directory frames are staged in.
func New(opts *Opts) (*Decoder, error) {
	if _, err := exec.LookPath("zbarimg"); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("looking up zbarimg: %v", err)
	}

	d := &Decoder{}
	if opts != nil {
		d.opts = *opts
	}

	tempDir, err := libscan.TempDir()
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %v", err)
	}
	d.tempDir = tempDir
	return d, nil
}

// Func returns the decode function backed by this Decoder.
func (d *Decoder) Func() decode.Func {
	path := filepath.Join(d.tempDir, "frame.png")
	return func(img image.Image) (string, error) {
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("staging frame: %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return "", fmt.Errorf("encoding frame: %v", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("staging frame: %v", err)
		}

		buf, err := exec.Command("zbarimg", "--raw", "-q", path).Output()
		if err != nil {
			// zbarimg exits non-zero when no symbol was found.
			var xerr *exec.ExitError
			if errors.As(err, &xerr) {
				return "", decode.ErrNoCode
			}
			return "", fmt.Errorf("running zbarimg: %v", err)
		}
		text := strings.TrimSpace(string(buf))
		if text == "" {
			return "", decode.ErrNoCode
		}
		if d.opts.Verbose {
			log.Printf("zbarimg decoded %q", text)
		}
		return text, nil
	}
}

// Close removes the temporary directory.
func (d *Decoder) Close() error {
	if d.tempDir != "" {
		os.RemoveAll(d.tempDir)
	}
	return nil
}
