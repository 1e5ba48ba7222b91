package shell

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/josephlewis42/smallsh/core/config"
)

const (
	EnvHome     = "HOME"
	EnvPWD      = "PWD"
	EnvHostname = "HOSTNAME"
	EnvUser     = "USER"
)

// Prompter renders the prompt template. It supports the escapes \u (user),
// \h (host), \w (working directory, ~ for $HOME) and \$ (# for root).
type Prompter struct {
	Template string
	// Color highlights the user, host and directory.
	Color bool

	// Overridable for testing.
	getwd    func() (string, error)
	hostname func() (string, error)
	geteuid  func() int
}

// NewPrompter creates a prompter for the template.
func NewPrompter(template string, colorize bool) *Prompter {
	return &Prompter{
		Template: template,
		Color:    colorize,
		getwd:    os.Getwd,
		hostname: os.Hostname,
		geteuid:  os.Geteuid,
	}
}

// ColorEnabled resolves a configured color mode against the output file.
func ColorEnabled(mode string, out *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorAuto:
		return out != nil && term.IsTerminal(int(out.Fd()))
	default:
		return false
	}
}

func (p *Prompter) paint(s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if p.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

// Render returns the prompt for the current process state.
func (p *Prompter) Render() string {
	host := os.Getenv(EnvHostname)
	if host == "" {
		host, _ = p.hostname()
	}

	pwd, err := p.getwd()
	if err != nil {
		pwd = os.Getenv(EnvPWD)
	}
	home := os.Getenv(EnvHome)
	if home != "" && (pwd == home || strings.HasPrefix(pwd, home+"/")) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	dollar := "$"
	if p.geteuid() == 0 {
		dollar = "#"
	}

	replacer := strings.NewReplacer(
		`\u`, p.paint(os.Getenv(EnvUser), color.FgGreen, color.Bold),
		`\h`, p.paint(host, color.FgGreen, color.Bold),
		`\w`, p.paint(pwd, color.FgBlue, color.Bold),
		`\$`, dollar,
	)
	return replacer.Replace(p.Template)
}
