package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/systems"
	"github.com/spf13/cobra"
)

type inspectOptions struct {
	quiet bool
}

func newInspectCommand() *cobra.Command {
	var opts inspectOptions

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the header and the entries of a warmup cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only show the header")
	return cmd
}

func runInspect(out io.Writer, path string, opts inspectOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	header, err := systems.ReadCacheFileHeader(data)
	if err != nil {
		return err
	}
	// Inspection accepts any application.
	payload, err := systems.DecodeCacheFile(header.ApplicationID, data)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Version:        %d\n", header.Version)
	fmt.Fprintf(out, "Application ID: %s\n", header.ApplicationID)
	fmt.Fprintf(out, "Compressed:     %t\n", header.Compressed())
	fmt.Fprintf(out, "File size:      %d\n", len(data))
	fmt.Fprintf(out, "Record size:    %d\n", len(payload))
	if opts.quiet {
		return nil
	}

	entries, err := cache.ReadEntries(payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Entries:        %d\n\n", len(entries))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tINDEX\tOFFSET\tSIZE\tREFERENCES\tSUMMARY")
	for _, e := range entries {
		refs := make([]string, 0, len(e.References))
		for _, r := range e.References {
			refs = append(refs, fmt.Sprintf("%s#%d", r.Kind, r.Index))
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n", e.Kind, e.Index, e.Offset, e.Size, strings.Join(refs, ","), e.Summary)
	}
	return w.Flush()
}
