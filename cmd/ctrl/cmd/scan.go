package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sincaw/chred/cmd/dashboard/server/common"
	"github.com/sincaw/chred/pkg/scan"
)

type scanOptions struct {
	*rootOptions
	output    string
	save      bool
	server    string
	maxLength int
}

func NewScanCmd(root *rootOptions) *cobra.Command {
	opt := &scanOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "scan [options] <chunk file>...",
		Short: "reassemble decoded QR code chunks, files may be given in any order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return scanCmdFunc(cmd, opt, args)
		},
	}

	cmd.Flags().StringVarP(&opt.output, "output", "o", "", "Write assembled data to file")
	cmd.Flags().BoolVar(&opt.save, "save", false, "Save assembled entity to the archive")
	cmd.Flags().StringVar(&opt.server, "server", "", "Push chunks to a running dashboard instead, e.g. http://127.0.0.1:8080")
	cmd.Flags().IntVar(&opt.maxLength, "max-length", scan.DefaultMaxLength, "Largest message accepted")

	return cmd
}

type chunkFile struct {
	path string
	raw  []byte
}

// loadChunks reads all files concurrently, the result keeps the order of paths
func loadChunks(paths []string) ([]chunkFile, error) {
	var (
		ret = make([]chunkFile, len(paths))
		eg  errgroup.Group
	)
	for i, p := range paths {
		i, p := i, p
		eg.Go(func() error {
			raw, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			ret[i] = chunkFile{path: p, raw: raw}
			return nil
		})
	}
	return ret, eg.Wait()
}

func scanCmdFunc(cmd *cobra.Command, opt *scanOptions, paths []string) error {
	files, err := loadChunks(paths)
	if err != nil {
		return err
	}
	if opt.server != "" {
		return push(cmd, opt.server, files)
	}

	s := scan.NewSession(scan.WithMaxLength(opt.maxLength))
	e, err := assemble(s, files)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "completed %s, %d bytes\n", e.ID(), len(e.Data))

	if opt.output != "" {
		if err = os.WriteFile(opt.output, e.Data, 0o644); err != nil {
			return err
		}
	}
	if opt.save {
		a, closeFn, err := opt.openArchive()
		if err != nil {
			return err
		}
		defer closeFn()
		rec, created, err := a.Save(e)
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already archived\n", rec.ID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", rec.ID)
		}
	}
	return nil
}

// retryable chunks may be accepted later, once the chunks in front of them are in
func retryable(err error) bool {
	return errors.Is(err, scan.ErrOrderViolation) || errors.Is(err, scan.ErrFirstChunkSequence)
}

// assemble feeds files into s the way a user keeps scanning codes: chunks that
// arrive too early are tried again on the next pass until one pass makes no progress
func assemble(s *scan.Session, files []chunkFile) (*scan.Entity, error) {
	pending := files
	for len(pending) > 0 {
		var (
			next     []chunkFile
			progress bool
		)
		for _, f := range pending {
			l := logger.With("file", f.path)
			out, err := s.ProcessChunk(f.raw)
			if err != nil {
				kind := scan.KindOf(err)
				if kind.Fatal() || kind == scan.KindInactive {
					return nil, fmt.Errorf("%s: %w", f.path, err)
				}
				if retryable(err) {
					next = append(next, f)
				} else {
					l.Warnf("skip chunk: %v", err)
				}
				continue
			}
			progress = true
			l.Debugf("accepted %d/%d", s.ReceivedCount(), s.TotalCount())
			if out.Status == scan.StatusCompleted {
				return out.Entity, nil
			}
		}
		if !progress {
			break
		}
		pending = next
	}
	return nil, fmt.Errorf("incomplete data, %d of %d chunks received", s.ReceivedCount(), s.TotalCount())
}

// push sends files ordered by their sequence number to a dashboard
func push(cmd *cobra.Command, server string, files []chunkFile) error {
	cli, err := common.NewWithHeader(server, nil)
	if err != nil {
		return err
	}
	sort.SliceStable(files, func(i, j int) bool {
		a, _ := scan.SequenceOf(files[i].raw)
		b, _ := scan.SequenceOf(files[j].raw)
		return a < b
	})

	for _, f := range files {
		ret, err := cli.PostChunk(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.path, err)
		}
		switch ret.Status {
		case common.StatusCompleted:
			fmt.Fprintf(cmd.OutOrStdout(), "completed %s\n", ret.Entity)
			return nil
		case common.StatusRejected:
			if ret.Fatal {
				return fmt.Errorf("%s: %s", f.path, ret.Error)
			}
			logger.With("file", f.path).Warnf("chunk rejected: %s", ret.Error)
		}
	}
	state, err := cli.Session()
	if err != nil {
		return err
	}
	return fmt.Errorf("incomplete data, %d of %d chunks received", state.ReceivedCount, state.TotalCount)
}
