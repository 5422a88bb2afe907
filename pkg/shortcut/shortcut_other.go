//go:build !windows

package shortcut

import "github.com/spf13/afero"

// Default returns the shortcut writer for this platform.
func Default(fs afero.Fs) Creator { return FileCreator{Fs: fs} }
