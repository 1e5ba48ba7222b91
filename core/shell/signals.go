package shell

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const (
	interruptNotice           = "\n"
	enterForegroundOnlyNotice = "\nEntering foreground-only mode (& is now ignored)\n"
	exitForegroundOnlyNotice  = "\nExiting foreground-only mode\n"
)

// caughtSignals are handled by the interpreter itself.
var caughtSignals = []os.Signal{unix.SIGINT, unix.SIGTSTP}

// Controller owns the interpreter's signal dispositions and the
// background-allowed flag.
//
// SIGINT never terminates the interpreter, it only echoes a newline. SIGTSTP
// flips between background-allowed and foreground-only mode. Notices are
// written with a single Write call on the notice writer, which should be
// unbuffered.
type Controller struct {
	notices io.Writer

	backgroundAllowed atomic.Bool

	// mu guards everything below and serializes handlers.
	mu      sync.Mutex
	held    bool
	pending []os.Signal
	onStop  func()
	// reprompt is written after a notice while input is being read.
	reprompt string

	sigs   chan os.Signal
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller in background-allowed mode. No handlers
// are installed until Start is called.
func NewController(notices io.Writer) *Controller {
	c := &Controller{notices: notices}
	c.backgroundAllowed.Store(true)
	c.onStop = c.enterForegroundOnly
	return c
}

// BackgroundAllowed reports whether a trailing & currently takes effect.
func (c *Controller) BackgroundAllowed() bool {
	return c.backgroundAllowed.Load()
}

// Start installs the interpreter's handlers and dispatches signals until ctx
// is done or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sigs != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.sigs = make(chan os.Signal, len(caughtSignals)*2)
	c.done = make(chan struct{})
	signal.Notify(c.sigs, caughtSignals...)

	go c.dispatch(ctx, c.sigs, c.done)
}

func (c *Controller) dispatch(ctx context.Context, sigs <-chan os.Signal, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			c.Deliver(sig)
		}
	}
}

// Stop removes the handlers installed by Start and waits for the dispatcher
// to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	sigs, cancel, done := c.sigs, c.cancel, c.done
	c.sigs, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if sigs == nil {
		return
	}
	signal.Stop(sigs)
	cancel()
	<-done
}

// Deliver handles sig as if the interpreter had received it. While the
// controller is held the signal is queued instead.
func (c *Controller) Deliver(sig os.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held {
		for _, p := range c.pending {
			if p == sig {
				return
			}
		}
		c.pending = append(c.pending, sig)
		return
	}
	c.handle(sig)
}

// Hold defers signal handling until Release, like blocking the signals
// around a foreground wait.
func (c *Controller) Hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = true
}

// Release resumes handling and runs any signals that arrived while held, in
// arrival order.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.held = false
	for _, sig := range c.pending {
		c.handle(sig)
	}
	c.pending = c.pending[:0]
}

// SetPrompt sets the prompt to redraw after a notice. It should be set while
// the interpreter waits for input and cleared otherwise.
func (c *Controller) SetPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reprompt = prompt
}

// handle must be called with mu held.
func (c *Controller) handle(sig os.Signal) {
	switch sig {
	case unix.SIGINT:
		c.notify(interruptNotice)
	case unix.SIGTSTP:
		c.onStop()
	}
}

func (c *Controller) enterForegroundOnly() {
	c.notify(enterForegroundOnlyNotice)
	c.onStop = c.exitForegroundOnly
	c.backgroundAllowed.Store(false)
}

func (c *Controller) exitForegroundOnly() {
	c.notify(exitForegroundOnlyNotice)
	c.onStop = c.enterForegroundOnly
	c.backgroundAllowed.Store(true)
}

func (c *Controller) notify(msg string) {
	_, _ = io.WriteString(c.notices, msg+c.reprompt)
}

// childIgnored lists the signals a child starts with ignored. Every child
// ignores SIGTSTP, background children also ignore SIGINT.
func childIgnored(background bool) []os.Signal {
	if background {
		return []os.Signal{unix.SIGINT, unix.SIGTSTP}
	}
	return []os.Signal{unix.SIGTSTP}
}

// SpawnChild calls fork with the child's signal dispositions in place.
//
// Ignored dispositions survive exec while caught ones are reset to the
// default, so the signals the child must ignore are set to ignored in the
// interpreter for the duration of fork and caught again afterwards. SIGINT
// stays caught for foreground children, which therefore start with the
// default action.
func (c *Controller) SpawnChild(background bool, fork func() (int, error)) (int, error) {
	var toRestore []os.Signal
	for _, sig := range childIgnored(background) {
		if !signal.Ignored(sig) {
			toRestore = append(toRestore, sig)
		}
	}

	// Ignore with no arguments would ignore every signal.
	if len(toRestore) > 0 {
		signal.Ignore(toRestore...)
		defer c.restore(toRestore)
	}

	return fork()
}

func (c *Controller) restore(sigs []os.Signal) {
	if len(sigs) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sigs != nil {
		signal.Notify(c.sigs, sigs...)
		return
	}
	signal.Reset(sigs...)
}
