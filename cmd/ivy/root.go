package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/eed3si9n/ivy"
)

const (
	defaultSettingsFile   = "ivysettings.yaml"
	defaultDescriptorFile = "ivy.star"
)

// app holds the state shared by every subcommand.
type app struct {
	out    io.Writer
	errOut io.Writer

	settingsPath string
	verbose      bool
	logger       *slog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}
	cmd := &cobra.Command{
		Use:           "ivy",
		Short:         "Resolve and retrieve module dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.settingsPath, "settings", "s", defaultSettingsFile, "settings file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	cmd.AddCommand(
		newResolveCmd(a),
		newRetrieveCmd(a),
		newInstallCmd(a),
		newSearchCmd(a),
		newSortCmd(a),
	)
	return cmd
}

func (a *app) settings() (*ivy.Settings, error) {
	return ivy.LoadSettingsFile(a.settingsPath)
}

// options returns the library options every command starts from.
func (a *app) options(s *ivy.Settings, extra ...ivy.Option) []ivy.Option {
	return append([]ivy.Option{ivy.WithSettings(s), ivy.WithLogger(a.logger)}, extra...)
}

func descriptorArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultDescriptorFile
}
