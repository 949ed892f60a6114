// Command libscan scans QR codes with a camera (eg webcam) and prints the
// decoded payloads, one per line.
//
// Examples:
//
//	# List available devices and quit.
//	libscan -listdevices
//
//	# Scan until interrupted, printing every code.
//	libscan
//
//	# Scan one code from an explicit device, sampling every 250ms, with ffmpeg.
//	libscan -once -backend ffmpeg -device /dev/video0 -verbose -interval 250ms
//
//	# Prefer the rear-facing camera and give up after 30s without a code.
//	libscan -facing rear -timeout 30s
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	libscan "github.com/soumya-jain123/libscan-go"
	"github.com/soumya-jain123/libscan-go/camera"
	"github.com/soumya-jain123/libscan-go/camera/ffmpeg"
	"github.com/soumya-jain123/libscan-go/camera/imagesnap"
	"github.com/soumya-jain123/libscan-go/decode"
	"github.com/soumya-jain123/libscan-go/decode/zbarimg"
)

var (
	listDevices bool
	backendType string
	deviceID    string
	facing      string
	interval    time.Duration
	timeout     time.Duration
	confirm     int
	useZbar     bool
	once        bool
	verbose     bool
)

func init() {
	if runtime.GOOS == "darwin" {
		backendType = "imagesnap"
	} else {
		backendType = "ffmpeg"
	}

	flag.BoolVar(&listDevices, "listdevices", false, "if set, lists devices and exits")
	flag.StringVar(&backendType, "backend", backendType, "camera backend to use, imagesnap on macOS, ffmpeg on linux")
	flag.StringVar(&deviceID, "device", "", "device ID to use, by default, chosen by facing preference from the listed devices")
	flag.StringVar(&facing, "facing", "", "preferred sensor direction when no device is given: front or rear")
	flag.DurationVar(&interval, "interval", 250*time.Millisecond, "how often to sample a frame and attempt a decode")
	flag.DurationVar(&timeout, "timeout", 0, "if set, give up on a scan after this long without a code")
	flag.IntVar(&confirm, "confirm", 1, "how many consecutive frames must decode the same payload before it is reported")
	flag.BoolVar(&useZbar, "zbar", false, "decode with the zbarimg command instead of the built-in decoder")
	flag.BoolVar(&once, "once", false, "exit after the first code instead of rescanning")
	flag.BoolVar(&verbose, "verbose", false, "print verbose output")
}

func usage() {
	log.Println("usage: libscan [flags]")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	if len(flag.Args()) != 0 {
		usage()
	}
	os.Exit(main0())
}

func main0() int {
	var open libscan.OpenFunc
	var listFn func() ([]camera.Device, error)
	switch backendType {
	case "imagesnap":
		open = imagesnap.Open
		listFn = imagesnap.ListDevices
	case "ffmpeg":
		open = ffmpeg.Open
		listFn = ffmpeg.ListDevices
	default:
		log.Fatalf("unknown backend type %q", backendType)
	}

	if listDevices {
		devs, err := listFn()
		if err != nil {
			log.Fatalf("listing devices: %v", err)
		}
		for _, dev := range devs {
			caps := ""
			if len(dev.Caps) > 0 {
				l := []string{}
				for _, c := range dev.Caps {
					l = append(l, fmt.Sprintf("%dx%d@%dfps", c.Width, c.Height, c.Framerate))
				}
				caps = fmt.Sprintf(" (caps: %s)", strings.Join(l, " "))
			}
			fmt.Printf("%s: %s%s\n", dev.ID, dev.Name, caps)
		}
		return 0
	}

	dec := decode.QR()
	if useZbar {
		zd, err := zbarimg.New(&zbarimg.Opts{Verbose: verbose})
		if err != nil {
			log.Printf("new zbarimg decoder: %v", err)
			return 1
		}
		defer zd.Close()
		dec = zd.Func()
	}

	opts := &libscan.Opts{
		DeviceID:      deviceID,
		Facing:        camera.Facing(facing),
		Interval:      interval,
		Confirmations: confirm,
		Timeout:       timeout,
		Verbose:       verbose,
	}
	scanner, err := libscan.New(open, dec, opts)
	if err != nil {
		log.Printf("new scanner: %v", err)
		return 1
	}
	defer scanner.Close()

	results := make(chan string, 1)
	if err := scanner.Open(func(payload string) {
		results <- payload
	}); err != nil {
		log.Printf("open scanner: %v", err)
		return 1
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-signals:
			return 1
		case payload := <-results:
			fmt.Printf("%s\n", payload)
			if ref, err := libscan.ParseRef(payload); err == nil {
				log.Printf("ref: %s", ref)
			}
			if once {
				return 0
			}
			scanner.Rescan()
		case <-ticker.C:
			// Camera errors are terminal for the session, no auto-retry.
			if scanner.State() != libscan.StateError {
				continue
			}
			log.Printf("scan failed: %v", scanner.Err())
			return 1
		}
	}
}
