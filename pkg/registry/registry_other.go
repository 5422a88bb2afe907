//go:build !windows

package registry

// Default returns the registry the executor should use on this platform.
// There is no host registry off Windows, so state lives in memory for the run.
func Default() Registry { return NewMemory() }
