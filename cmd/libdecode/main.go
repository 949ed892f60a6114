// Command libdecode reads image files named on the command line and prints
// the QR payload found in each, for checking printed codes without a
// camera.
//
// Example:
//
//	libdecode slip1.png slip2.jpg
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	libscan "github.com/soumya-jain123/libscan-go"
	"github.com/soumya-jain123/libscan-go/decode"
	"github.com/soumya-jain123/libscan-go/decode/zbarimg"
)

var useZbar = flag.Bool("zbar", false, "decode with the zbarimg command instead of the built-in decoder")

func usage() {
	log.Println("usage: libdecode [-zbar] imagefile ...")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		usage()
	}

	dec := decode.QR()
	if *useZbar {
		zd, err := zbarimg.New(nil)
		if err != nil {
			log.Fatalf("new zbarimg decoder: %v", err)
		}
		defer zd.Close()
		dec = zd.Func()
	}

	exit := 0
	for _, path := range args {
		payload, err := decodeFile(dec, path)
		if err != nil {
			log.Printf("%s: %v", path, err)
			exit = 1
			continue
		}
		fmt.Printf("%s: %s\n", path, payload)
		if ref, err := libscan.ParseRef(payload); err == nil {
			log.Printf("%s: ref %s", path, ref)
		}
	}
	os.Exit(exit)
}

func decodeFile(dec decode.Func, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decoding image: %v", err)
	}
	return dec(img)
}
