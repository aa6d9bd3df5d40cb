package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eed3si9n/ivy"
)

// resolveFlags are shared by resolve and retrieve.
type resolveFlags struct {
	confs    []string
	cacheDir string
	revision string
	date     string
}

func (f *resolveFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVarP(&f.confs, "conf", "c", nil, "configurations to resolve (default all)")
	flags.StringVar(&f.cacheDir, "cache", "", "artifact cache directory (default from settings)")
	flags.StringVar(&f.revision, "revision", "", "revision to resolve the module as")
	flags.StringVar(&f.date, "date", "", "ignore revisions published after this RFC 3339 time")
}

func (f *resolveFlags) options() ([]ivy.Option, error) {
	var opts []ivy.Option
	if f.cacheDir != "" {
		opts = append(opts, ivy.WithCacheDir(f.cacheDir))
	}
	if f.revision != "" {
		opts = append(opts, ivy.WithRevision(f.revision))
	}
	if f.date != "" {
		d, err := time.Parse(time.RFC3339, f.date)
		if err != nil {
			return nil, fmt.Errorf("invalid --date: %w", err)
		}
		opts = append(opts, ivy.WithDate(d))
	}
	return opts, nil
}

func (a *app) resolve(cmd *cobra.Command, args []string, f *resolveFlags, extra ...ivy.Option) (*ivy.Report, error) {
	s, err := a.settings()
	if err != nil {
		return nil, err
	}
	opts, err := f.options()
	if err != nil {
		return nil, err
	}
	return ivy.ResolveFile(cmd.Context(), descriptorArg(args), f.confs, a.options(s, append(opts, extra...)...)...)
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		rf         resolveFlags
		download   bool
		lockPath   string
		graphFmt   string
		yamlOut    bool
		resolvedTo string
	)
	cmd := &cobra.Command{
		Use:   "resolve [descriptor]",
		Short: "Resolve the dependencies of a module descriptor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []ivy.Option
			if download {
				extra = append(extra, ivy.WithDownload(true))
			}
			report, err := a.resolve(cmd, args, &rf, extra...)
			if err != nil {
				return err
			}

			if lockPath != "" {
				if err := report.WriteResolvedRevisions(lockPath); err != nil {
					return fmt.Errorf("write resolved revisions: %w", err)
				}
			}
			if resolvedTo != "" {
				if err := os.WriteFile(resolvedTo, report.ResolvedDescriptor(), 0o644); err != nil {
					return fmt.Errorf("write resolved descriptor: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			switch {
			case graphFmt != "":
				if err := writeGraph(out, report, graphConf(rf.confs), graphFmt); err != nil {
					return err
				}
			case yamlOut:
				if err := report.WriteYAML(out); err != nil {
					return err
				}
			default:
				printReport(out, report)
			}

			if report.HasErrors() {
				return fmt.Errorf("resolution of %s has errors", report.Root)
			}
			return nil
		},
	}
	rf.register(cmd)
	flags := cmd.Flags()
	flags.BoolVarP(&download, "download", "d", false, "download artifacts into the cache")
	flags.StringVar(&lockPath, "lockfile", "", "write resolved revisions to this file (.json or .properties)")
	flags.StringVar(&resolvedTo, "resolved-descriptor", "", "write the descriptor pinned to resolved revisions to this file")
	flags.StringVar(&graphFmt, "graph", "", "print the dependency graph as json, dot or text")
	flags.BoolVar(&yamlOut, "yaml", false, "print the full report as YAML")
	return cmd
}

func graphConf(confs []string) string {
	if len(confs) == 1 {
		return confs[0]
	}
	return ""
}

func writeGraph(w io.Writer, report *ivy.Report, conf, format string) error {
	g := report.Graph(conf)
	switch format {
	case "json":
		data, err := g.ToJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "dot":
		_, err := fmt.Fprint(w, g.ToDOT())
		return err
	case "text":
		_, err := fmt.Fprint(w, g.ToText())
		return err
	}
	return fmt.Errorf("unknown graph format %q (known: json, dot, text)", format)
}

func printReport(w io.Writer, report *ivy.Report) {
	fmt.Fprintf(w, "%s\n", report.Root)
	for _, cr := range report.Configurations {
		if cr.Err != nil {
			fmt.Fprintf(w, "  %s: %v\n", cr.Name, cr.Err)
			continue
		}
		fmt.Fprintf(w, "  %s: %d modules, %d evicted, %d artifacts\n", cr.Name, len(cr.Modules), len(cr.Evicted), len(cr.Artifacts))
		for _, m := range cr.Modules {
			fmt.Fprintf(w, "    %s\n", m.ID)
		}
		for _, e := range cr.Evicted {
			fmt.Fprintf(w, "    %s (evicted by %s)\n", e.ID, e.Manager)
		}
		for _, p := range cr.Problems {
			fmt.Fprintf(w, "    %s: %v\n", p.ID, p.Err)
		}
	}
	for _, ar := range report.FailedArtifacts() {
		fmt.Fprintf(w, "  failed %s: %v\n", ar.Artifact, ar.Err)
	}
}
