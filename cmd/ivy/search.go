package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eed3si9n/ivy/module"
)

func newSearchCmd(a *app) *cobra.Command {
	var resolver, matcherName string
	cmd := &cobra.Command{
		Use:   "search ORG[#NAME[;REV]]",
		Short: "List the revisions a resolver knows that match a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := parsePattern(args[0])
			if err != nil {
				return err
			}
			s, err := a.settings()
			if err != nil {
				return err
			}
			if resolver == "" {
				resolver = s.DefaultResolver()
			}
			ids, err := s.Search(cmd.Context(), resolver, matcherName, pattern)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&resolver, "resolver", "r", "", "resolver to search (default from settings)")
	cmd.Flags().StringVarP(&matcherName, "matcher", "m", "glob", "pattern matcher")
	return cmd
}

// parsePattern reads "org#name;rev" where the name and revision may be
// omitted.
func parsePattern(s string) (module.RevisionID, error) {
	org, rest, _ := strings.Cut(s, "#")
	name, rev, _ := strings.Cut(rest, ";")
	if org == "" {
		return module.RevisionID{}, fmt.Errorf("invalid pattern %q: missing organisation", s)
	}
	return module.NewRevisionID(org, name, rev), nil
}
