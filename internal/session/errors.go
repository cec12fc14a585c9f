package session

import (
	"errors"
	"fmt"
)

// ErrEmptyScript is the only synchronous start failure; everything else
// surfaces through the event stream.
var ErrEmptyScript = errors.New("launch spec has no entry-point script")

// ErrUnknownSession is returned for a session id the manager does not
// hold.
var ErrUnknownSession = errors.New("unknown session")

// LaunchError wraps the reason a child process could not be created.
// It is reported through a FinishedEvent with a synthetic exit code.
type LaunchError struct {
	Reason string
	Err    error
}

func (e *LaunchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("launch failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("launch failed: %s", e.Reason)
}

func (e *LaunchError) Unwrap() error { return e.Err }
