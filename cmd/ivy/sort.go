package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eed3si9n/ivy"
	"github.com/eed3si9n/ivy/descriptor"
	"github.com/eed3si9n/ivy/module"
)

func newSortCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sort DESCRIPTOR...",
		Short: "Print descriptors so that each comes after its dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mds := make([]*module.Descriptor, 0, len(args))
			paths := make(map[*module.Descriptor]string, len(args))
			for _, path := range args {
				md, err := descriptor.ParseFile(path)
				if err != nil {
					return err
				}
				mds = append(mds, md)
				paths[md] = path
			}
			opts := []ivy.Option{ivy.WithLogger(a.logger)}
			if s, err := a.settings(); err == nil {
				opts = append(opts, ivy.WithSettings(s))
			} else {
				a.logger.Debug("sorting without settings", "error", err)
			}
			sorted, err := ivy.SortModuleDescriptors(mds, opts...)
			if err != nil {
				return err
			}
			for _, md := range sorted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", md.ResolvedRevisionID(), paths[md])
			}
			return nil
		},
	}
}
