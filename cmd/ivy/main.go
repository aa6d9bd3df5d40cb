// Command ivy resolves, retrieves and installs module dependencies
// described by ivy.star or ivy.yaml descriptors.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "ivy:", err)
		os.Exit(1)
	}
}

// run executes the command line args, writing results to out and logs to
// errOut.
func run(args []string, out, errOut io.Writer) error {
	cmd := newRootCmd(out, errOut)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}
