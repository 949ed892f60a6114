// Package ffmpeg implements a camera source using the ffmpeg tools, for
// Linux webcams.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	libscan "github.com/soumya-jain123/libscan-go"
	"github.com/soumya-jain123/libscan-go/camera"
)

var errInstallHint = errors.New("executable not found, install with: sudo apt install -y ffmpeg v4l-utils")

const defaultInterval = 250 * time.Millisecond

// SourceOpts has options for a new ffmpeg source.
type SourceOpts struct {
	Verbose  bool
	Interval time.Duration // How often to sample a frame. Default 250ms.
	DeviceID string        // As retrieved from ListDevices. If empty, pick by Facing.
	Facing   camera.Facing // Preferred sensor direction when DeviceID is empty.
}

// Source is a camera source using ffmpeg. Ffmpeg writes frames to a
// temporary directory; they are picked up from there and sent over the
// channel returned by Frames.
type Source struct {
	opts    SourceOpts
	frames  chan camera.Frame
	tempDir string
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher
}

// Check that Source implements interface Source.
var _ camera.Source = (*Source)(nil)

// Frames returns the channel on which frames are delivered.
func (s *Source) Frames() chan camera.Frame {
	return s.frames
}

// Open acquires a source for the given constraints. Open is a
// libscan.OpenFunc.
func Open(c camera.Constraints) (camera.Source, error) {
	return NewSource(SourceOpts{
		Verbose:  c.Verbose,
		Interval: c.Interval,
		DeviceID: c.DeviceID,
		Facing:   c.Facing,
	})
}

// ListDevices returns a list of devices that can be used as a source.
// ListDevices returns an error if no devices are available.
func ListDevices() ([]camera.Device, error) {
	cmd := exec.Command("v4l2-ctl", "--list-devices")
	buf, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("listing devices using v4l2-ctl: %v", err)
	}
	return parseDevices(string(buf))
}

// parseDevices parses v4l2-ctl --list-devices output: a device name on its
// own line, followed by tab-indented /dev/video* paths.
func parseDevices(s string) ([]camera.Device, error) {
	var curName string
	devices := []camera.Device{}
	for _, line := range strings.Split(s, "\n") {
		if !strings.HasPrefix(line, "\t") {
			curName = strings.TrimSpace(line)
			continue
		}
		if curName == "" || strings.HasPrefix(curName, "bcm2835-") {
			continue
		}
		line = strings.TrimSpace(line)
		devices = append(devices, camera.Device{
			Name: fmt.Sprintf("%s (%s)", curName, line),
			ID:   line,
		})
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices available")
	}
	return devices, nil
}

// NewSource starts ffmpeg capturing from the chosen device into a temporary
// directory, and delivers the captured frames on the channel returned by
// Frames.
//
// Callers must call Close to release the device and clean up.
func NewSource(opts SourceOpts) (source *Source, rerr error) {
	s := &Source{}
	s.opts = opts
	if s.opts.Interval <= 0 {
		s.opts.Interval = defaultInterval
	}

	if s.opts.DeviceID == "" {
		devs, err := ListDevices()
		if err != nil {
			return nil, fmt.Errorf("listing devices: %v", err)
		}
		s.opts.DeviceID = camera.PickDevice(devs, s.opts.Facing).ID
	}

	// Ensure cleanup in case of failure.
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	tempDir, err := libscan.TempDir()
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %v", err)
	}
	s.tempDir = tempDir
	if s.opts.Verbose {
		log.Printf("ffmpeg source, writing frames to tempdir %s", s.tempDir)
	}

	args := []string{
		"-framerate", fmt.Sprintf("%d", int(time.Second/s.opts.Interval)),
		"-video_size", "640x480",
		"-c:v", "mjpeg",
		"-i", s.opts.DeviceID,
		"-f", "image2",
		"-c:v", "copy",
		"-bsf:v", "mjpeg2jpeg",
		"-qscale:v", "2",
		"frame%d.jpg",
	}

	if s.opts.Verbose {
		log.Printf("starting ffmpeg with args %s", args)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	ffmpeg := exec.CommandContext(ctx, "ffmpeg", args...)
	ffmpeg.Dir = s.tempDir
	if s.opts.Verbose {
		ffmpeg.Stdout = os.Stdout
		ffmpeg.Stderr = os.Stderr
	}
	if err := ffmpeg.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("starting command ffmpeg: %v", err)
	}
	go ffmpeg.Wait()

	s.frames = make(chan camera.Frame)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %v", err)
	}
	s.watcher = watcher

	logf := func(format string, args ...interface{}) {
		if s.opts.Verbose {
			log.Printf(format, args...)
		}
	}

	go func() {
		var last time.Time
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op != fsnotify.Write || !strings.HasSuffix(ev.Name, ".jpg") {
					continue
				}
				now := time.Now()
				if now.Sub(last) < s.opts.Interval*9/10 {
					if err := os.Remove(ev.Name); err != nil && s.opts.Verbose {
						log.Printf("removing skipped frame %q: %v", ev.Name, err)
					}
					continue
				}
				f, err := os.Open(ev.Name)
				if err != nil {
					logf("open written file %q: %v", ev.Name, err)
					continue
				}
				img, err := jpeg.Decode(f)
				f.Close()
				if err != nil {
					logf("decoding jpeg %q: %v (may be partially written)", ev.Name, err)
					continue
				}
				if err := os.Remove(ev.Name); err != nil && s.opts.Verbose {
					log.Printf("removing frame %s: %v", ev.Name, err)
				}
				select {
				case s.frames <- camera.Frame{Image: img}:
					last = now
				default:
					logf("dropping frame, scanner still busy")
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.frames <- camera.Frame{Err: fmt.Errorf("watching for changes: %v", err)}
			}
		}
	}()

	if err := watcher.Add(s.tempDir); err != nil {
		return nil, fmt.Errorf("registering file change watcher for temp dir: %v", err)
	}

	return s, nil
}

// Close releases the device, stopping ffmpeg and removing the temporary
// directory.
func (s *Source) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	return nil
}
