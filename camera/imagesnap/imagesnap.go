// Package imagesnap implements a camera source with the imagesnap command
// for macOS.
package imagesnap

import (
	"context"
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

const defaultInterval = 250 * time.Millisecond

// ListDevices returns all camera devices available to imagesnap.
// ListDevices returns an error if no devices are available.
func ListDevices() ([]camera.Device, error) {
	cmd := exec.Command("imagesnap", "-l")
	buf, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("listing devices with imagesnap -l: %v", err)
	}
	return parseDevices(string(buf))
}

func parseDevices(s string) ([]camera.Device, error) {
	devs := []camera.Device{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "=> ") {
			// Newer format, example: "=> FaceTime HD Camera (Built-in)"
			name := line[len("=> "):]
			devs = append(devs, camera.Device{Name: name, ID: name})
		} else if strings.HasPrefix(line, "<") {
			// Older format, example: "<AVCaptureDALDevice: 0x7fa2c7852fd0 [FaceTime HD Camera (Built-in)][0x8020000005ac8514]>"
			t := strings.Split(line, "[")
			if len(t) < 2 {
				continue
			}
			name := strings.Split(t[1], "]")[0]
			devs = append(devs, camera.Device{Name: name, ID: name})
		} else {
			continue
		}
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("no devices available")
	}
	return devs, nil
}

// SourceOpts has options for a new imagesnap source.
type SourceOpts struct {
	Verbose  bool
	Interval time.Duration // How often to sample a frame. Default 250ms.
	DeviceID string        // As returned by ListDevices. If empty, pick by Facing.
	Facing   camera.Facing // Preferred sensor direction when DeviceID is empty.
}

// Source captures frames by starting imagesnap and configuring it to write
// images to temporary storage.
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

// NewSource starts imagesnap writing frames to a temporary directory, and
// delivers the captured frames on the channel returned by Frames.
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
		log.Printf("imagesnap source, tempdir for frames: %s", s.tempDir)
	}

	args := []string{
		"-d", s.opts.DeviceID,
		"-t", fmt.Sprintf("%.2f", s.opts.Interval.Seconds()),
	}

	if s.opts.Verbose {
		log.Printf("starting imagesnap with args %s", args)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	cmd := exec.CommandContext(ctx, "imagesnap", args...)
	cmd.Dir = s.tempDir
	if s.opts.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting imagesnap: %v", err)
	}
	go cmd.Wait()

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
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op != fsnotify.Create || !strings.HasSuffix(ev.Name, ".jpg") {
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
					logf("decoding jpeg %q: %v (perhaps partially written?)", ev.Name, err)
					continue
				}
				if err := os.Remove(ev.Name); err != nil && s.opts.Verbose {
					log.Printf("removing frame %s: %v", ev.Name, err)
				}
				select {
				case s.frames <- camera.Frame{Image: img}:
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

// Close releases the device, stopping the imagesnap process and removing
// the temporary directory.
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
