package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eed3si9n/ivy"
)

func newRetrieveCmd(a *app) *cobra.Command {
	var (
		rf      resolveFlags
		pattern string
	)
	cmd := &cobra.Command{
		Use:   "retrieve [descriptor]",
		Short: "Resolve, download and copy artifacts to a destination pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.resolve(cmd, args, &rf, ivy.WithDownload(true))
			if err != nil {
				return err
			}
			if report.HasErrors() {
				printReport(cmd.OutOrStdout(), report)
				return fmt.Errorf("resolution of %s has errors", report.Root)
			}
			copied, err := ivy.Retrieve(report, pattern, rf.confs, ivy.WithLogger(a.logger))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d artifacts copied\n", copied)
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&pattern, "pattern", "p", ivy.DefaultRetrievePattern, "destination pattern")
	return cmd
}
