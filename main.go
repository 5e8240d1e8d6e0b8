package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library-lending/internal/config"
	"library-lending/internal/logger"
	"library-lending/library"
)

// app holds what every command needs. The manager is opened once per process
// and shared by all commands run from the shell.
type app struct {
	cfgPath string
	dbPath  string

	cfg *config.Config
	log *zap.Logger
	reg *prometheus.Registry
	mgr *library.LibraryManager

	in  io.Reader
	now func() time.Time
}

func main() {
	a := &app{in: os.Stdin, now: time.Now}
	defer a.close()

	root := newRootCmd(a)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.close()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Manage a small library's catalog, members and lendings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", a.cfgPath, "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", a.dbPath, "SQLite database path (overrides config)")

	root.AddCommand(
		newBookCmd(a),
		newMemberCmd(a),
		newLendCmd(a),
		newReturnCmd(a),
		newLendingsCmd(a),
		newOverdueCmd(a),
		newReportCmd(a),
		newMetricsCmd(a),
		newShellCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	if a.mgr != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.NewConfig(a.cfgPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	a.cfg = cfg
	a.log = logger.NewLogger(cfg.Log, "library")
	a.reg = prometheus.NewRegistry()

	mgr, err := library.NewLibraryManager(ctx, cfg.Database.Path,
		library.WithLogger(a.log),
		library.WithRegisterer(a.reg),
		library.WithSeed(cfg.Seed.Enabled),
		library.WithBusyTimeout(cfg.Database.BusyTimeout),
		library.WithClock(a.now),
	)
	if err != nil {
		return err
	}
	a.mgr = mgr
	return nil
}

func (a *app) close() {
	if a.mgr != nil {
		if err := a.mgr.Close(); err != nil {
			a.log.Warn("close database", zap.Error(err))
		}
		a.mgr = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}
