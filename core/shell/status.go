package shell

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Status is how a child process finished.
type Status struct {
	// Code is the exit code, or the signal number if Signaled is set.
	Code     int
	Signaled bool
}

func (s Status) String() string {
	if s.Signaled {
		return fmt.Sprintf("terminated by signal %d", s.Code)
	}
	return fmt.Sprintf("exit value %d", s.Code)
}

// statusFailed is reported for commands whose child could not be set up.
var statusFailed = Status{Code: 1}

func statusFromWait(ws unix.WaitStatus) Status {
	switch {
	case ws.Signaled():
		return Status{Code: int(ws.Signal()), Signaled: true}
	case ws.Exited():
		return Status{Code: ws.ExitStatus() & 0xff}
	default:
		return Status{}
	}
}

// Report formats the status the way the status builtin prints it.
func (s Status) Report() string {
	if s.Signaled {
		return s.String()
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// ExitCode converts the status to a process exit code, 128+N for signals.
func (s Status) ExitCode() int {
	if s.Signaled {
		return 128 + s.Code
	}
	return s.Code
}
