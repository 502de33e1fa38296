package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sincaw/chred/pkg/archive"
)

type listOptions struct {
	*rootOptions
	typ           string
	offset, limit int
}

func NewListCmd(root *rootOptions) *cobra.Command {
	opt := &listOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "list [options]",
		Short: "list archived entities, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCmdFunc(cmd, opt)
		},
	}

	cmd.Flags().StringVar(&opt.typ, "type", "", "Only list entities of type, e.g. CHR")
	cmd.Flags().IntVar(&opt.offset, "offset", 0, "Skip first n entities")
	cmd.Flags().IntVar(&opt.limit, "limit", 0, "List at most n entities, 0 for all")

	return cmd
}

func listCmdFunc(cmd *cobra.Command, opt *listOptions) error {
	a, closeFn, err := opt.openArchive()
	if err != nil {
		return err
	}
	defer closeFn()

	var (
		recs  []*archive.Record
		total int
	)
	if opt.typ != "" {
		recs, total, err = a.FindType(opt.typ, opt.offset, opt.limit)
	} else {
		recs, total, err = a.List(opt.offset, opt.limit)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIZE\tDIGEST\tCREATED")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.ID, r.Size, r.Digest, r.CreatedAt.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "total %d\n", total)
	return w.Flush()
}
