package shell

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephlewis42/smallsh/core/config"
)

func newTestPrompter(template, wd string, euid int) *Prompter {
	p := NewPrompter(template, false)
	p.getwd = func() (string, error) { return wd, nil }
	p.hostname = func() (string, error) { return "fallback", nil }
	p.geteuid = func() int { return euid }
	return p
}

func TestPrompterRender(t *testing.T) {
	t.Setenv(EnvUser, "alice")
	t.Setenv(EnvHostname, "box")
	t.Setenv(EnvHome, "/home/alice")

	cases := map[string]struct {
		template string
		wd       string
		euid     int
		want     string
	}{
		"default": {
			template: config.Default().Prompt,
			wd:       "/tmp",
			euid:     1000,
			want:     "alice@box:/tmp$ ",
		},
		"home": {
			template: `\w\$ `,
			wd:       "/home/alice",
			euid:     1000,
			want:     "~$ ",
		},
		"under-home": {
			template: `\w\$ `,
			wd:       "/home/alice/src",
			euid:     1000,
			want:     "~/src$ ",
		},
		"home-prefix": {
			template: `\w\$ `,
			wd:       "/home/alice2",
			euid:     1000,
			want:     "/home/alice2$ ",
		},
		"root": {
			template: `\u\$ `,
			wd:       "/",
			euid:     0,
			want:     "alice# ",
		},
		"literal": {
			template: ": ",
			wd:       "/",
			euid:     1000,
			want:     ": ",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			p := newTestPrompter(tc.template, tc.wd, tc.euid)
			assert.Equal(t, tc.want, p.Render())
		})
	}
}

func TestPrompterHostnameFallback(t *testing.T) {
	t.Setenv(EnvHostname, "")
	p := newTestPrompter(`\h`, "/", 1000)
	assert.Equal(t, "fallback", p.Render())
}

func TestPrompterColor(t *testing.T) {
	t.Setenv(EnvUser, "alice")
	t.Setenv(EnvHostname, "box")
	t.Setenv(EnvHome, "/home/alice")

	p := newTestPrompter(`\u@\h:\w\$ `, "/home/alice", 1000)
	p.Color = true
	assert.Equal(t, "\x1b[32;1malice\x1b[0m@\x1b[32;1mbox\x1b[0m:\x1b[34;1m~\x1b[0m$ ", p.Render())
}

func TestColorEnabled(t *testing.T) {
	fd, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.Nil(t, err)
	defer fd.Close()

	assert.True(t, ColorEnabled(config.ColorAlways, fd))
	assert.False(t, ColorEnabled(config.ColorNever, fd))
	assert.False(t, ColorEnabled(config.ColorAuto, fd))
	assert.False(t, ColorEnabled(config.ColorAuto, nil))
}
