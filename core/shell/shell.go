package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/josephlewis42/smallsh/core/config"
	"github.com/josephlewis42/smallsh/core/logger"
)

// Name prefixes the interpreter's own error messages.
const Name = "smallsh"

// Shell is one interactive interpreter. Everything it needs between commands
// lives here so independent shells can coexist in tests.
type Shell struct {
	Stdio    Stdio
	Signals  *Controller
	Launcher *Launcher
	Reaper   *Reaper
	Parser   *Parser
	Prompter *Prompter
	Input    *LineReader
	Events   *logger.SessionLogger

	// Set to true to quit the shell
	Quit bool

	// backgroundAllowed is the mode seen by the last cycle.
	backgroundAllowed bool
}

// New creates a shell reading commands from stdio.In. A nil events logger
// discards events.
func New(cfg *config.Configuration, stdio Stdio, events *logger.SessionLogger) *Shell {
	if events == nil {
		events = logger.NewNopLogger().Sessionless()
	}

	signals := NewController(stdio.Out)
	return &Shell{
		Stdio:   stdio,
		Signals: signals,
		Launcher: &Launcher{
			Stdio:      stdio,
			Signals:    signals,
			Events:     events,
			Perm:       cfg.FileMode(),
			NullDevice: cfg.NullDevice,
		},
		Reaper: &Reaper{
			Out:    stdio.Out,
			Events: events,
		},
		Parser: &Parser{
			Expander: NewExpander(os.Getpid()),
			MaxArgs:  cfg.MaxArgs,
		},
		Prompter: NewPrompter(cfg.Prompt, ColorEnabled(cfg.Color, stdio.Out)),
		Input:    NewLineReader(stdio.In, cfg.MaxLineLength),
		Events:   events,

		backgroundAllowed: signals.BackgroundAllowed(),
	}
}

// Run is the interactive loop. It returns the interpreter's exit code once
// exit is run, input ends or ctx is done.
func (s *Shell) Run(ctx context.Context) int {
	s.Signals.Start(ctx)
	defer s.Signals.Stop()

	for !s.Quit && ctx.Err() == nil {
		s.Reaper.Reap()
		s.checkMode()

		line, err := s.readLine()
		switch {
		case err == io.EOF:
			return 0 // Input closed, quit.
		case errors.Is(err, ErrLineTooLong):
			fmt.Fprintln(s.Stdio.Err, err)
			continue
		case err != nil:
			fmt.Fprintf(s.Stdio.Err, "%s: %v\n", Name, err)
			return 1
		}

		s.RunLine(line)
	}
	return 0
}

// readLine prompts and waits for a line. The prompt is redrawn if a signal
// notice interrupts it.
func (s *Shell) readLine() (string, error) {
	prompt := s.Prompter.Render()
	io.WriteString(s.Stdio.Out, prompt)

	s.Signals.SetPrompt(prompt)
	defer s.Signals.SetPrompt("")
	return s.Input.ReadLine()
}

// RunCommand runs a single line without prompting and returns the exit code
// of the command.
func (s *Shell) RunCommand(ctx context.Context, line string) int {
	s.Signals.Start(ctx)
	defer s.Signals.Stop()

	s.RunLine(line)
	s.Reaper.Reap()
	return s.Launcher.LastStatus().ExitCode()
}

// RunLine parses and executes one line of input.
func (s *Shell) RunLine(line string) {
	cmd, err := s.Parser.Parse(line, s.Signals.BackgroundAllowed())
	switch {
	case errors.Is(err, ErrNoop):
		return
	case err != nil:
		fmt.Fprintf(s.Stdio.Err, "%s: %v\n", Name, err)
		recordEvent(s.Events, logger.EventParseError, logger.Fields{
			"line":  line,
			"error": err.Error(),
		})
		return
	}

	if builtin, ok := AllBuiltins[cmd.Name()]; ok {
		ret := builtin.Main(s, cmd.Args)
		recordEvent(s.Events, logger.EventBuiltin, logger.Fields{
			"command": cmd.Args,
			"status":  ret,
		})
		return
	}

	recordEvent(s.Events, logger.EventRunCommand, logger.Fields{
		"command":    cmd.Args,
		"input":      cmd.InputPath,
		"output":     cmd.OutputPath,
		"background": cmd.Background,
	})

	err = s.Launcher.Execute(cmd)
	var launchErr *LaunchError
	switch {
	case err == nil:
		return
	case errors.As(err, &launchErr):
		fmt.Fprintln(s.Stdio.Err, err)
	default:
		fmt.Fprintf(s.Stdio.Err, "%s: %v\n", Name, err)
	}
	recordEvent(s.Events, logger.EventLaunchError, logger.Fields{
		"command": cmd.Args,
		"error":   err.Error(),
	})
}

// checkMode records changes made by the stop signal since the last cycle.
func (s *Shell) checkMode() {
	allowed := s.Signals.BackgroundAllowed()
	if allowed == s.backgroundAllowed {
		return
	}
	s.backgroundAllowed = allowed
	recordEvent(s.Events, logger.EventModeChange, logger.Fields{
		"background_allowed": allowed,
	})
}
