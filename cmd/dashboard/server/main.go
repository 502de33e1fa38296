package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/sincaw/chred/cmd/dashboard/server/api"
	"github.com/sincaw/chred/cmd/dashboard/server/common"
	"github.com/sincaw/chred/cmd/dashboard/server/maintain"
	"github.com/sincaw/chred/cmd/dashboard/server/utils"
	"github.com/sincaw/chred/pkg/archive"
)

const (
	configFile = ".config.yaml"
)

var (
	flagConfig   = flag.String("c", "", "config file, defaults to "+configFile+" next to the binary")
	flagLogLevel = flag.String("l", "debug", "log level")
)

func main() {
	flag.Parse()
	logger := utils.Logger()

	lv, err := utils.ParseLevel(*flagLogLevel)
	if err != nil {
		logger.Fatalf("invalid log level %q", *flagLogLevel)
	}
	utils.SetLevel(lv)

	dir, err := utils.SelfDir()
	if err != nil {
		logger.Fatalf("get binary dir fail %v", err)
	}
	configPath := *flagConfig
	if configPath == "" {
		configPath = utils.Resolve(dir, configFile)
	}
	config, err := common.LoadConfig(configPath)
	if err != nil {
		logger.Fatalf("load config file fail %v", err)
	}

	dbPath := utils.Resolve(dir, config.DatabasePath)
	db, err := archive.New(dbPath, archive.WithLogger(logger))
	if err != nil {
		logger.Fatalf("open db fail, path %q, err %v", dbPath, err)
	}
	defer db.Close()
	store, err := archive.Open(db, archive.DefaultNamespace)
	if err != nil {
		logger.Fatalf("open archive fail %v", err)
	}

	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		ctx, reload := context.WithCancel(root)
		config.OnChange(func(conf common.Config) error {
			if err := common.SaveConfig(configPath, conf); err != nil {
				return err
			}
			reload()
			return nil
		})

		err = run(ctx, db, store, config)
		reload()
		if err != nil {
			logger.Errorf("server stopped %v", err)
			return
		}
		if root.Err() != nil {
			logger.Info("bye")
			return
		}
		logger.Info("reloading, scan session is reset")
	}
}

func run(ctx context.Context, db archive.DB, store *archive.Archive, config *common.Config) error {
	eg, ctx := errgroup.WithContext(ctx)
	a := api.New(ctx, store, config)
	m, err := maintain.New(ctx, db, a, config)
	if err != nil {
		return err
	}
	eg.Go(a.Serve)
	eg.Go(func() error {
		m.Start()
		return nil
	})
	return eg.Wait()
}
