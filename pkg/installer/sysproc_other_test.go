//go:build !windows

package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitArgs(t *testing.T) {
	assert.Equal(t, []string{"/S", "/D=C:\\Program Files\\App", "-v"}, splitArgs(`/S "/D=C:\Program Files\App"  -v`))
	assert.Equal(t, []string{""}, splitArgs(`""`))
	assert.Empty(t, splitArgs("   "))
}
