package shell

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"syscall"

	"github.com/josephlewis42/smallsh/core/logger"
	"golang.org/x/sys/unix"
)

// ErrFork is wrapped by errors returned when no child could be created.
var ErrFork = errors.New("fork")

// LaunchError is a failure to set up a child, reported as "name: error" the
// way the child would have. It never affects the interpreter.
type LaunchError struct {
	// Name is the file or program that could not be opened.
	Name string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, errnoText(e.Err))
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// errnoText strips the operation and path wrappers so only the system error
// text remains, like perror.
func errnoText(err error) string {
	for {
		switch e := err.(type) {
		case *exec.Error:
			err = e.Err
		case *fs.PathError:
			err = e.Err
		case *os.SyscallError:
			err = e.Err
		default:
			return err.Error()
		}
	}
}

// Stdio holds the descriptors children inherit. The interpreter writes its
// own messages to the same files.
type Stdio struct {
	In  *os.File
	Out *os.File
	Err *os.File
}

// StandardStdio returns the process's standard descriptors.
func StandardStdio() Stdio {
	return Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Launcher runs external programs.
type Launcher struct {
	Stdio   Stdio
	Signals *Controller
	Events  *logger.SessionLogger

	// Perm is used for files created by output redirection.
	Perm os.FileMode
	// NullDevice replaces stdin and stdout of background commands that don't
	// redirect them.
	NullDevice string

	last Status
}

// LastStatus returns how the last foreground command finished.
func (l *Launcher) LastStatus() Status {
	return l.last
}

// Execute runs cmd as a child process. Foreground commands are waited for,
// background commands are announced and left for the Reaper.
//
// A *LaunchError means a foreground command failed before it could run.
// Errors wrapping ErrFork mean no child was created at all.
func (l *Launcher) Execute(cmd *Command) error {
	files, err := l.openFiles(cmd)
	if err != nil {
		return l.failed(cmd, err)
	}
	defer files.Close()

	path, err := exec.LookPath(cmd.Name())
	if err != nil {
		return l.failed(cmd, &LaunchError{Name: cmd.Name(), Err: err})
	}

	attr := &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: files.fds(),
	}
	pid, err := l.Signals.SpawnChild(cmd.Background, func() (int, error) {
		return syscall.ForkExec(path, cmd.Args, attr)
	})
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.ENOMEM):
		return fmt.Errorf("%w: %v", ErrFork, err)
	case err != nil:
		return l.failed(cmd, &LaunchError{Name: cmd.Name(), Err: err})
	}
	files.Close()

	if cmd.Background {
		l.announce(cmd, pid)
		return nil
	}

	status, err := l.wait(pid)
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	if status.Signaled {
		fmt.Fprintln(l.Stdio.Out, status)
	}
	l.last = status
	l.record(logger.EventForegroundDone, logger.Fields{
		"command": cmd.Args,
		"pid":     pid,
		"status":  status.String(),
	})
	return nil
}

// failed handles a command whose child could not start. Foreground commands
// report err and get status 1. Background commands still get a child, which
// prints err and exits with status 1 for the Reaper to collect.
func (l *Launcher) failed(cmd *Command, err error) error {
	if !cmd.Background {
		l.last = statusFailed
		return err
	}

	pid, spawnErr := l.spawnFailed(cmd, err)
	if spawnErr != nil {
		return err
	}
	l.announce(cmd, pid)
	return nil
}

// spawnFailed re-executes the interpreter as a child that only reports err,
// see RunFailedChild.
func (l *Launcher) spawnFailed(cmd *Command, err error) (int, error) {
	self, execErr := os.Executable()
	if execErr != nil {
		return 0, execErr
	}

	attr := &syscall.ProcAttr{
		Env:   append(os.Environ(), EnvFailedChild+"="+err.Error()),
		Files: []uintptr{l.Stdio.In.Fd(), l.Stdio.Out.Fd(), l.Stdio.Err.Fd()},
	}
	return l.Signals.SpawnChild(true, func() (int, error) {
		return syscall.ForkExec(self, []string{cmd.Name()}, attr)
	})
}

func (l *Launcher) announce(cmd *Command, pid int) {
	fmt.Fprintf(l.Stdio.Out, "background process started with pid %d\n", pid)
	l.record(logger.EventBackgroundStart, logger.Fields{
		"command": cmd.Args,
		"pid":     pid,
	})
}

// EnvFailedChild holds the message of a background child that could not
// start.
const EnvFailedChild = "SMALLSH_FAILED_CHILD"

// RunFailedChild must be called at the start of main. In a child started for
// a failed background command it prints the message to stderr and exits with
// status 1, otherwise it returns.
func RunFailedChild() {
	msg, ok := os.LookupEnv(EnvFailedChild)
	if !ok {
		return
	}
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func (l *Launcher) wait(pid int) (Status, error) {
	l.Signals.Hold()
	defer l.Signals.Release()

	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return Status{}, err
		}
		return statusFromWait(ws), nil
	}
}

// childFiles are the descriptors a child starts with.
type childFiles struct {
	std [3]*os.File
	// opened holds the redirection targets, owned by the interpreter until
	// the fork returns.
	opened []*os.File
}

func (c *childFiles) fds() []uintptr {
	return []uintptr{c.std[0].Fd(), c.std[1].Fd(), c.std[2].Fd()}
}

// Close releases the redirection targets. It is safe to call more than once.
func (c *childFiles) Close() {
	for _, fd := range c.opened {
		fd.Close()
	}
	c.opened = nil
}

func (l *Launcher) openFiles(cmd *Command) (*childFiles, error) {
	files := &childFiles{std: [3]*os.File{l.Stdio.In, l.Stdio.Out, l.Stdio.Err}}

	inPath, outPath := cmd.InputPath, cmd.OutputPath
	if cmd.Background {
		if inPath == "" {
			inPath = l.NullDevice
		}
		if outPath == "" {
			outPath = l.NullDevice
		}
	}

	if inPath != "" {
		fd, err := os.OpenFile(inPath, os.O_RDONLY, 0)
		if err != nil {
			return nil, &LaunchError{Name: inPath, Err: err}
		}
		files.std[0] = fd
		files.opened = append(files.opened, fd)
	}

	if outPath != "" {
		fd, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, l.Perm)
		if err != nil {
			files.Close()
			return nil, &LaunchError{Name: outPath, Err: err}
		}
		files.std[1] = fd
		files.opened = append(files.opened, fd)
	}

	return files, nil
}

func (l *Launcher) record(event logger.EventType, fields logger.Fields) {
	recordEvent(l.Events, event, fields)
}

func recordEvent(events *logger.SessionLogger, event logger.EventType, fields logger.Fields) {
	if events == nil {
		return
	}
	if err := events.Record(event, fields); err != nil {
		log.Printf("Error recording %s: %v", event, err)
	}
}
