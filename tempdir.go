package libscan

import (
	"os"
)

// TempDir returns either a temporary directory in /dev/shm (if it exists),
// or otherwise in the OS default temporary directory. Capture backends and
// decoders stage frames there; /dev/shm keeps the per-tick file churn off
// disk.
func TempDir() (string, error) {
	// Check that /dev/shm exists first. Don't want to accidentally create
	// a directory in /dev (if someone runs this as root).
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		dir, err := os.MkdirTemp("/dev/shm", "libscan")
		if err == nil {
			return dir, nil
		}
	}
	return os.MkdirTemp("", "libscan")
}
