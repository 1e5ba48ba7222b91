package shell

import (
	"fmt"
	"io"

	"github.com/josephlewis42/smallsh/core/logger"
	"golang.org/x/sys/unix"
)

// Reaper collects finished background children without blocking.
type Reaper struct {
	Out    io.Writer
	Events *logger.SessionLogger
}

// Reap announces every child that has finished and returns how many there
// were. It must not run while a foreground child is being waited for.
func (r *Reaper) Reap() int {
	reaped := 0
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err == unix.EINTR {
			continue
		}
		// ECHILD: no children left, 0: none finished yet.
		if err != nil || pid <= 0 {
			return reaped
		}

		status := statusFromWait(ws)
		fmt.Fprintf(r.Out, "background pid %d is done: %s\n", pid, status)
		recordEvent(r.Events, logger.EventBackgroundDone, logger.Fields{
			"pid":    pid,
			"status": status.String(),
		})
		reaped++
	}
}
