package shell

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pborman/getopt/v2"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// BuiltinNames returns the names of all builtins in sorted order.
func BuiltinNames() []string {
	var names []string
	for name := range AllBuiltins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseFlags handles the options common to every builtin. If ok is false
// the builtin must return ret right away.
func parseFlags(s *Shell, args []string, use, short string) (rest []string, ret int, ok bool) {
	opts := getopt.New()
	opts.SetProgram(args[0])
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	err := opts.Getopt(args, nil)
	switch {
	case err != nil:
		fmt.Fprintln(s.Stdio.Err, err)
		printUsage(s.Stdio.Err, opts, use, short)
		return nil, 1, false
	case *helpOpt:
		printUsage(s.Stdio.Out, opts, use, short)
		return nil, 0, false
	}
	return opts.Args(), 0, true
}

func printUsage(w io.Writer, opts *getopt.Set, use, short string) {
	fmt.Fprintf(w, "usage: %s\n", use)
	fmt.Fprintln(w, short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	opts.PrintOptions(w)
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	rest, ret, ok := parseFlags(s, args, "cd [DIR]", "Change the shell working directory, $HOME by default.")
	if !ok {
		return ret
	}

	var dir string
	switch len(rest) {
	case 0:
		if dir = os.Getenv(EnvHome); dir == "" {
			fmt.Fprintf(s.Stdio.Err, "%s: HOME not set\n", args[0])
			return 1
		}
	case 1:
		dir = rest[0]
	default:
		fmt.Fprintf(s.Stdio.Err, "%s: too many arguments\n", args[0])
		return 1
	}

	if err := os.Chdir(dir); err != nil {
		fmt.Fprintf(s.Stdio.Err, "%s: %s: %s\n", args[0], dir, errnoText(err))
		return 1
	}
	if wd, err := os.Getwd(); err == nil {
		os.Setenv(EnvPWD, wd)
	}
	return 0
}

// Exit quits the shell
func Exit(s *Shell, args []string) int {
	if _, ret, ok := parseFlags(s, args, "exit", "Exit the shell."); !ok {
		return ret
	}
	s.Quit = true
	return 0
}

// ShowStatus prints how the last foreground command finished.
func ShowStatus(s *Shell, args []string) int {
	if _, ret, ok := parseFlags(s, args, "status", "Show the status of the last foreground command."); !ok {
		return ret
	}
	fmt.Fprintln(s.Stdio.Out, s.Launcher.LastStatus().Report())
	return 0
}

func init() {
	AllBuiltins["cd"] = ShellBuiltinFunc(Cd)
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["status"] = ShellBuiltinFunc(ShowStatus)
}
