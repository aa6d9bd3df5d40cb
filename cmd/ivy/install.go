package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eed3si9n/ivy"
)

func newInstallCmd(a *app) *cobra.Command {
	var iopts ivy.InstallOptions
	cmd := &cobra.Command{
		Use:   "install ORG#NAME;REV",
		Short: "Copy module revisions from one resolver to another",
		Long: `Copy module revisions from one resolver to another.

The argument is a revision id whose parts are patterns for --matcher, for
example "org.apache#*;2.+" with --matcher glob.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := parsePattern(args[0])
			if err != nil {
				return err
			}
			s, err := a.settings()
			if err != nil {
				return err
			}
			report, err := ivy.Install(cmd.Context(), pattern, iopts, a.options(s)...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range report.Installed {
				fmt.Fprintf(out, "installed %s\n", id)
			}
			for _, id := range report.Skipped {
				fmt.Fprintf(out, "skipped %s (already in %s)\n", id, iopts.To)
			}
			fmt.Fprintf(out, "%d modules, %d artifacts installed to %s\n", len(report.Installed), report.Artifacts, iopts.To)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&iopts.From, "from", "", "source resolver")
	flags.StringVar(&iopts.To, "to", "", "destination resolver")
	flags.StringVarP(&iopts.Matcher, "matcher", "m", "", "pattern matcher for the revision id (default exact)")
	flags.BoolVarP(&iopts.Transitive, "transitive", "t", false, "also install dependencies")
	flags.BoolVar(&iopts.Overwrite, "overwrite", false, "republish revisions the destination already has")
	flags.StringSliceVarP(&iopts.Confs, "conf", "c", nil, "configurations to install (default all)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
