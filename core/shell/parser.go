package shell

import (
	"errors"
	"fmt"
	"strings"
)

const (
	commentMarker = '#'

	opInput      = "<"
	opOutput     = ">"
	opBackground = "&"
)

// ErrNoop is returned by Parse for blank lines and comments. Callers should
// prompt again without reporting anything.
var ErrNoop = errors.New("nothing to execute")

// ParseError is a syntax error in an input line.
type ParseError struct {
	// Op is the operator the error is about, if any.
	Op  string
	Msg string
}

func (e *ParseError) Error() string {
	return e.Msg
}

// Command is a single parsed line.
type Command struct {
	// Args holds the program name followed by its arguments. It is never empty.
	Args []string
	// InputPath, if set, replaces stdin.
	InputPath string
	// OutputPath, if set, is truncated or created and replaces stdout.
	OutputPath string
	// Background is set if the line ended with & while background execution
	// was allowed.
	Background bool
}

// Name returns the program name.
func (c *Command) Name() string {
	return c.Args[0]
}

// Parser turns input lines into commands.
type Parser struct {
	Expander Expander
	// MaxArgs limits the number of arguments, zero means unlimited.
	MaxArgs int
}

// Parse splits line on whitespace and extracts redirections and the trailing
// background operator. Redirection targets are taken literally, arguments are
// expanded.
func (p *Parser) Parse(line string, backgroundAllowed bool) (*Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" || line[0] == commentMarker {
		return nil, ErrNoop
	}

	tokens := strings.Fields(line)
	cmd := &Command{}
	for i := 0; i < len(tokens); i++ {
		switch tok := tokens[i]; tok {
		case opInput, opOutput:
			if i+1 >= len(tokens) {
				return nil, &ParseError{Op: tok, Msg: fmt.Sprintf("no file name after %s", tok)}
			}
			i++
			if tok == opInput {
				cmd.InputPath = tokens[i]
			} else {
				cmd.OutputPath = tokens[i]
			}
		default:
			cmd.Args = append(cmd.Args, p.Expander.Expand(tok))
		}
	}

	// Only the last argument can request background execution.
	if n := len(cmd.Args); n > 0 && cmd.Args[n-1] == opBackground {
		cmd.Args = cmd.Args[:n-1]
		cmd.Background = backgroundAllowed
	}

	switch {
	case len(cmd.Args) == 0:
		return nil, &ParseError{Msg: "empty command"}
	case p.MaxArgs > 0 && len(cmd.Args) > p.MaxArgs:
		return nil, &ParseError{Msg: fmt.Sprintf("too many arguments (max %d)", p.MaxArgs)}
	}

	return cmd, nil
}
