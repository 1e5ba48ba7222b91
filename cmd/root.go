package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/josephlewis42/smallsh/core/config"
	"github.com/josephlewis42/smallsh/core/logger"
	"github.com/josephlewis42/smallsh/core/shell"
	"github.com/spf13/cobra"
)

var (
	cfgPath     string
	commandLine string

	// exitCode is returned to the OS once the command finishes.
	exitCode int
)

// loadConfig loads the configuration from --config, or the built-in defaults
// if no directory was given.
func loadConfig(diagnostics *log.Logger) (*config.Configuration, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}

	configuration, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		diagnostics.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// openEvents opens the event log named in the configuration. The returned
// func must be called once the shell exits.
func openEvents(cfg *config.Configuration) (*logger.SessionLogger, func() error, error) {
	fd, err := cfg.OpenEventLog()
	switch {
	case errors.Is(err, config.ErrNoEventLog):
		return logger.NewNopLogger().NewSession(), func() error { return nil }, nil
	case err != nil:
		return nil, nil, fmt.Errorf("opening event log: %w", err)
	}

	return logger.NewJsonLinesLogRecorder(fd).NewSession(), fd.Close, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "smallsh",
	Short: "A small interactive command interpreter",
	Long: `smallsh runs commands with optional < and > redirection and a trailing &
for background execution. $$ expands to the shell's PID. SIGTSTP toggles
foreground-only mode.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		diagnostics := log.New(cmd.ErrOrStderr(), "[smallsh] ", 0)

		cfg, err := loadConfig(diagnostics)
		if err != nil {
			return err
		}

		events, closeEvents, err := openEvents(cfg)
		if err != nil {
			return err
		}
		defer closeEvents()

		sh := shell.New(cfg, shell.StandardStdio(), events)
		if cmd.Flags().Changed("command") {
			exitCode = sh.RunCommand(context.Background(), commandLine)
			return nil
		}

		exitCode = sh.Run(context.Background())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config directory, built-in defaults if empty")
	rootCmd.Flags().StringVarP(&commandLine, "command", "c", "", "run a single command line and exit with its status")
}
