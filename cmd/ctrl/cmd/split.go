package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sincaw/chred/pkg/scan"
)

const defaultChunkSize = 600

type splitOptions struct {
	typ, name string
	size      int
	outDir    string
}

func NewSplitCmd() *cobra.Command {
	opt := &splitOptions{}
	cmd := &cobra.Command{
		Use:   "split [options] <file>",
		Short: "split a file into chunk files, each one fits a QR code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return splitCmdFunc(cmd, opt, args[0])
		},
	}

	cmd.Flags().StringVar(&opt.typ, "type", "", "Entity type, up to 3 chars, defaults to the file extension")
	cmd.Flags().StringVar(&opt.name, "name", "", "Entity name, up to 8 chars, defaults to the file name")
	cmd.Flags().IntVar(&opt.size, "size", defaultChunkSize, "Payload bytes per chunk")
	cmd.Flags().StringVarP(&opt.outDir, "output", "o", ".", "Output directory")

	return cmd
}

// defaultNames derives "HELLO" and "CHR" from "hello.chr"
func defaultNames(file string) (name, typ string) {
	base := filepath.Base(file)
	ext := filepath.Ext(base)
	name = strings.ToUpper(strings.TrimSuffix(base, ext))
	typ = strings.ToUpper(strings.TrimPrefix(ext, "."))
	if len(name) > 8 {
		name = name[:8]
	}
	if len(typ) > 3 {
		typ = typ[:3]
	}
	return
}

func splitCmdFunc(cmd *cobra.Command, opt *splitOptions, file string) error {
	body, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	name, typ := defaultNames(file)
	if opt.name != "" {
		name = opt.name
	}
	if opt.typ != "" {
		typ = opt.typ
	}

	msg, err := scan.EncodeMessage(typ, name, body)
	if err != nil {
		return err
	}
	chunks, err := scan.Split(msg, opt.size)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(opt.outDir, 0o755); err != nil {
		return err
	}
	for i, c := range chunks {
		p := filepath.Join(opt.outDir, fmt.Sprintf("%s.%s.%03d.bin", name, typ, i+1))
		if err = os.WriteFile(p, c, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	logger.Infof("split %s:%s into %d chunks", typ, name, len(chunks))
	return nil
}
