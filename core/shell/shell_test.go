package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/josephlewis42/smallsh/core/config"
	"github.com/josephlewis42/smallsh/core/logger"
)

func testConfig() *config.Configuration {
	cfg := config.Default()
	cfg.Prompt = ": "
	cfg.Color = config.ColorNever
	return cfg
}

func newTestShell(t *testing.T, input string) *Shell {
	t.Helper()
	return New(testConfig(), newTestStdio(t, input), nil)
}

type transcriptTest struct {
	// Files are created in the working directory before the shell starts.
	Files map[string]string
	Input string
	// Before runs against the shell before the first prompt.
	Before func(s *Shell)
}

type transcriptSuite map[string]transcriptTest

func (ts transcriptSuite) Run(t *testing.T) {
	t.Helper()

	fixtures, err := filepath.Abs(filepath.Join("testdata", "golden"))
	require.Nil(t, err)

	g := goldie.New(
		t,
		goldie.WithFixtureDir(fixtures),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range ts {
		t.Run(tn, func(t *testing.T) {
			keepWorkingDir(t)
			dir := t.TempDir()
			require.Nil(t, os.Chdir(dir))
			for name, contents := range tc.Files {
				require.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0600))
			}

			s := newTestShell(t, tc.Input)
			if tc.Before != nil {
				tc.Before(s)
			}
			assert.Equal(t, 0, s.Run(context.Background()))

			g.Assert(t, tn+".stdout", []byte(readFile(t, s.Stdio.Out)))
			g.Assert(t, tn+".stderr", []byte(readFile(t, s.Stdio.Err)))
		})
	}
}

func TestShellTranscripts(t *testing.T) {
	transcriptSuite{
		"builtins": {
			Input: "# a comment\n\necho hello\nstatus\nsmallsh-no-such-command\nstatus\ncd /\npwd\nexit\necho unreachable\n",
		},
		"redirect": {
			Input: "echo one two > out.txt\ncat < out.txt\ncat < missing.txt\nstatus\necho >\n&\n",
		},
		"signaled": {
			Files: map[string]string{"die.sh": "kill -9 $$\n"},
			Input: "sh die.sh\nstatus\n",
		},
		"foreground-only": {
			Input: "echo hi &\n",
			Before: func(s *Shell) {
				s.Signals.Deliver(unix.SIGTSTP)
			},
		},
		"too-long": {
			Input: "echo " + string(bytes.Repeat([]byte("x"), 3000)) + "\necho ok\n",
		},
	}.Run(t)
}

func TestShellBackground(t *testing.T) {
	s := newTestShell(t, "")

	s.RunLine("sleep 0 &")
	assert.Contains(t, readFile(t, s.Stdio.Out), "background process started with pid ")

	assert.Eventually(t, func() bool {
		return s.Reaper.Reap() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, readFile(t, s.Stdio.Out), "is done: exit value 0\n")
}

func TestShellExpandsPID(t *testing.T) {
	s := newTestShell(t, "")
	s.Parser.Expander = Expander{PID: "4242"}

	assert.Equal(t, 0, s.RunCommand(context.Background(), "echo $$ pid$$"))
	assert.Equal(t, "4242 pid4242\n", readFile(t, s.Stdio.Out))
}

func TestShellRunCommand(t *testing.T) {
	cases := map[string]struct {
		line string
		want int
	}{
		"success":   {line: "true", want: 0},
		"exit-code": {line: "false", want: 1},
		"not-found": {line: "smallsh-no-such-command", want: 1},
		"builtin":   {line: "status", want: 0},
		"empty":     {line: "", want: 0},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s := newTestShell(t, "")
			assert.Equal(t, tc.want, s.RunCommand(context.Background(), tc.line))
		})
	}
}

func TestShellBackgroundFailure(t *testing.T) {
	s := newTestShell(t, "")

	s.RunLine("smallsh-no-such-command &")
	s.RunLine("cat < /smallsh/does/not/exist &")
	assert.Equal(t, 2, strings.Count(readFile(t, s.Stdio.Out), "background process started with pid "))

	done := 0
	assert.Eventually(t, func() bool {
		done += s.Reaper.Reap()
		return done == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, strings.Count(readFile(t, s.Stdio.Out), "is done: exit value 1\n"))
	assert.Equal(t, Status{}, s.Launcher.LastStatus())
}

func TestShellRunCommandCatchesInterrupt(t *testing.T) {
	keepWorkingDir(t)
	dir := t.TempDir()
	require.Nil(t, os.Chdir(dir))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "int.sh"), []byte("kill -INT $PPID\n"), 0600))

	s := newTestShell(t, "")
	assert.Equal(t, 0, s.RunCommand(context.Background(), "sh int.sh"))
	assert.Equal(t, "", readFile(t, s.Stdio.Err))
}

func TestShellEvents(t *testing.T) {
	buf := &bytes.Buffer{}
	events := logger.NewJsonLinesLogRecorder(buf).NewSession()

	s := New(testConfig(), newTestStdio(t, "true\nstatus\n>\nsmallsh-no-such-command\n"), events)
	s.Signals.Deliver(unix.SIGTSTP)
	assert.Equal(t, 0, s.Run(context.Background()))

	var got []logger.EventType
	require.Nil(t, logger.ReadJSONLinesLog(buf, func(le *structpb.Struct) {
		got = append(got, logger.Event(le))
	}))

	assert.Equal(t, []logger.EventType{
		logger.EventModeChange,
		logger.EventRunCommand,
		logger.EventForegroundDone,
		logger.EventBuiltin,
		logger.EventParseError,
		logger.EventRunCommand,
		logger.EventLaunchError,
	}, got)
}
