//go:build !windows

package installer

import "os"

// IsElevated reports whether the engine runs as root.
func IsElevated() (bool, error) {
	return os.Geteuid() == 0, nil
}
