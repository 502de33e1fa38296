package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sincaw/chred/cmd/dashboard/server/utils"
	"github.com/sincaw/chred/pkg/archive"
)

var (
	logger = utils.Logger()
)

type rootOptions struct {
	dbPath   string
	logLevel string
}

// NewRootCmd returns the chred command with all sub commands
func NewRootCmd() *cobra.Command {
	opt := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "chred",
		Short:         "reassemble character and palette data from scanned QR codes",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lv, err := utils.ParseLevel(opt.logLevel)
			if err != nil {
				return err
			}
			utils.SetLevel(lv)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opt.dbPath, "db", ".data", "Archive database path")
	cmd.PersistentFlags().StringVar(&opt.logLevel, "log-level", "warn", "Log level")

	cmd.AddCommand(
		NewSplitCmd(),
		NewScanCmd(opt),
		NewListCmd(opt),
		NewGetCmd(opt),
	)
	return cmd
}

// openArchive opens the archive and returns a func releasing it
func (o *rootOptions) openArchive() (*archive.Archive, func(), error) {
	db, err := archive.New(o.dbPath, archive.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	a, err := archive.Open(db, archive.DefaultNamespace)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return a, func() { db.Close() }, nil
}
