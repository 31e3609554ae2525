package runner

import (
	"context"
	"errors"

	"page-audit/browser"
)

// Status is how a run ended.
type Status int

const (
	Succeeded Status = iota
	Interrupted
	Unreachable
	LaunchFailed
	RuntimeError
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Interrupted:
		return "interrupted"
	case Unreachable:
		return "unreachable"
	case LaunchFailed:
		return "launch-failed"
	case RuntimeError:
		return "runtime-error"
	}
	return "unknown"
}

// ExitCode is the process exit code for the status.
func (s Status) ExitCode() int {
	switch s {
	case Succeeded:
		return 0
	case Interrupted:
		return 130
	case Unreachable:
		return 2
	case LaunchFailed:
		return 3
	}
	return 1
}

// Classify maps a run error to a status. Launch failures win over the
// context errors they may wrap.
func Classify(err error) Status {
	switch {
	case err == nil:
		return Succeeded
	case errors.Is(err, browser.ErrLaunch):
		return LaunchFailed
	case browser.IsConnectionRefused(err):
		return Unreachable
	case errors.Is(err, context.Canceled):
		return Interrupted
	}
	return RuntimeError
}
