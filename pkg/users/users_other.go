//go:build !windows

package users

// Default returns a resolver with no profiles and no console user; there is
// no Windows profile store on this platform.
func Default() Resolver { return Static{} }
