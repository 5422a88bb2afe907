//go:build !windows

package status

import "github.com/windowsadmins/appdeploy/pkg/logging"

// ShowFatalError has no desktop to draw on outside Windows; the error is logged instead.
func ShowFatalError(title, message string) {
	logging.Error(title, "detail", message)
}
