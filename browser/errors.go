package browser

import (
	"errors"
	"syscall"
)

var (
	ErrLaunch            = errors.New("chrome launch failed")
	ErrConnectionRefused = errors.New("chrome connection refused")
	ErrUnavailable       = errors.New("chrome session unavailable")
)

// IsConnectionRefused reports whether err means nothing is listening on the
// debugging port.
func IsConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConnectionRefused) || errors.Is(err, syscall.ECONNREFUSED)
}

// Hint returns a remediation message for launch and reachability failures.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrLaunch):
		return "Chrome could not be started. Install Chrome or Chromium, or point chrome.exec_path at the binary."
	case IsConnectionRefused(err):
		return "Unable to connect to Chrome. Start it with --remote-debugging-port matching chrome.port, or let page-audit launch it."
	default:
		return ""
	}
}
