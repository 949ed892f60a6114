// Command libreturn scans one QR code and records it as a book return at
// the dashboard backend.
//
// Example:
//
//	# Scan a borrowing slip and submit it with the given API key.
//	libreturn -station desk-2 your_api_key
//
//	# Submit to an explicit backend URL.
//	libreturn -baseurl http://localhost:8080 your_api_key
//
// The scanned code must carry the dashboard payload convention, e.g.
// {"type":"borrowing","id":17}.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"runtime"
	"time"

	libscan "github.com/soumya-jain123/libscan-go"
	"github.com/soumya-jain123/libscan-go/camera"
	"github.com/soumya-jain123/libscan-go/camera/ffmpeg"
	"github.com/soumya-jain123/libscan-go/camera/imagesnap"
	"github.com/soumya-jain123/libscan-go/circulation"
	"github.com/soumya-jain123/libscan-go/decode"
)

var (
	baseURL  = flag.String("baseurl", "", "base URL to which submissions are sent")
	station  = flag.String("station", "", "desk or terminal name recorded with the submission")
	deviceID = flag.String("device", "", "device ID to use, by default the first listed device")
	facing   = flag.String("facing", "", "preferred sensor direction when no device is given: front or rear")
	timeout  = flag.Duration("timeout", 30*time.Second, "give up scanning after this long without a code")
	verbose  = flag.Bool("verbose", false, "print verbose output")
)

func usage() {
	log.Println("usage: libreturn [-baseurl http://...] [-station name] apikey")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		usage()
	}

	c, err := circulation.NewClient(args[0])
	if err != nil {
		log.Fatalf("new client: %v", err)
	}
	if *baseURL != "" {
		c.BaseURL = *baseURL
	}

	open := libscan.OpenFunc(ffmpeg.Open)
	if runtime.GOOS == "darwin" {
		open = imagesnap.Open
	}
	opts := &libscan.Opts{
		DeviceID: *deviceID,
		Facing:   camera.Facing(*facing),
		Timeout:  *timeout,
		Verbose:  *verbose,
	}
	scanner, err := libscan.New(open, decode.QR(), opts)
	if err != nil {
		log.Fatalf("new scanner: %v", err)
	}
	defer scanner.Close()

	results := make(chan string, 1)
	if err := scanner.Open(func(payload string) {
		results <- payload
	}); err != nil {
		log.Fatalf("open scanner: %v", err)
	}

	var payload string
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case payload = <-results:
			break wait
		case <-ticker.C:
			if scanner.State() == libscan.StateError {
				log.Fatalf("scan failed: %v", scanner.Err())
			}
		}
	}

	ref, err := libscan.ParseRef(payload)
	if err != nil {
		log.Fatalf("scanned %q: %v", payload, err)
	}

	sub := circulation.Submission{
		SessionID: scanner.SessionID().String(),
		Ref:       ref,
		Station:   *station,
	}
	msg, err := c.SubmitReturn(context.Background(), sub)
	if err != nil {
		log.Fatalf("submit return for %s: %v", ref, err)
	}
	log.Printf("returned %s: %s", ref, msg)
}
