//go:build windows

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/windows"
)

func TestConsoleHandleIsStderr(t *testing.T) {
	h := consoleHandle()
	assert.NotEqual(t, windows.Handle(windows.STD_ERROR_HANDLE), h)

	std, err := windows.GetStdHandle(windows.STD_ERROR_HANDLE)
	if err == nil {
		assert.Equal(t, std, h)
	}
}
