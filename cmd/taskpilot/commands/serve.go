package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marcus/taskpilot/internal/assist"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/recommend"
	"github.com/marcus/taskpilot/internal/scheduler"
	"github.com/marcus/taskpilot/internal/server"
	"github.com/marcus/taskpilot/internal/stale"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the task and assistant API over HTTP.

When stale.schedule is set, a background job also checks for stale tasks on
that cron schedule and records each check (sqlite/postgres backends).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	log := logging.Component("serve")
	detector := stale.NewDetector(a.oracle,
		stale.WithThreshold(a.cfg.Stale.ThresholdDays),
		stale.WithLogger(logging.Component("stale")),
	)
	deps := server.Deps{
		Store:       a.store,
		Recommender: recommend.New(a.oracle, recommend.WithLogger(logging.Component("recommend"))),
		Detector:    detector,
		Assistant:   assist.New(a.oracle),
	}
	if client := newSearchClient(a.cfg.Search); client != nil {
		deps.Search = client
	}
	srv := server.New(deps, a.cfg.Server,
		server.WithLogger(logging.Component("api")),
		server.WithVersion(Version),
	)

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, addr)
	})

	if a.cfg.Stale.Schedule != "" {
		sched := scheduler.New(scheduler.WithLogger(logging.Component("scheduler")))
		if err := sched.SetCron(a.cfg.Stale.Schedule); err != nil {
			return err
		}
		var rec scheduler.Recorder
		if a.db != nil {
			rec = a.db
		}
		sched.AddJob(scheduler.StaleCheck(a.store, detector, rec, time.Now, logging.Component("stale-check")))
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		log.InfoCtx("stale checks scheduled", logging.Fields{"cron": a.cfg.Stale.Schedule, "next": sched.NextRun()})

		g.Go(func() error {
			<-gctx.Done()
			if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
				return err
			}
			return nil
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sListening%s on %s (Ctrl+C to stop)\n", colorGreen, colorReset, addr)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
