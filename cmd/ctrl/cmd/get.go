package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

type getOptions struct {
	*rootOptions
	outputJson bool
	output     string
}

func NewGetCmd(root *rootOptions) *cobra.Command {
	opt := &getOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "get [options] <id>",
		Short: "get archived entity data by id, e.g. CHR:HELLO",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getCmdFunc(cmd, opt, args[0])
		},
	}

	cmd.Flags().BoolVar(&opt.outputJson, "json", false, "Output record as json string")
	cmd.Flags().StringVarP(&opt.output, "output", "o", "", "Write data to file instead of stdout")

	return cmd
}

func getCmdFunc(cmd *cobra.Command, opt *getOptions, id string) error {
	a, closeFn, err := opt.openArchive()
	if err != nil {
		return err
	}
	defer closeFn()

	if opt.outputJson {
		doc, err := a.Doc(id)
		if err != nil {
			return fmt.Errorf("get %q fail: %w", id, err)
		}
		content, err := bson.MarshalExtJSON(doc, false, false)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(content))
		return nil
	}

	e, err := a.Get(id)
	if err != nil {
		return fmt.Errorf("get %q fail: %w", id, err)
	}
	if opt.output != "" {
		return os.WriteFile(opt.output, e.Data, 0o644)
	}
	_, err = cmd.OutOrStdout().Write(e.Data)
	return err
}
