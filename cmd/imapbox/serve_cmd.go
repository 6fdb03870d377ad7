package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/imapbox/imapbox/pkgs/config"
	"github.com/imapbox/imapbox/pkgs/logger"
	"github.com/imapbox/imapbox/pkgs/metrics"
	"github.com/imapbox/imapbox/pkgs/scheduler"
)

type serveFlags struct {
	cron        string
	metricsAddr string
}

func parseServeFlags(args []string) serveFlags {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var f serveFlags
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	if err := fs.Parse(args); err != nil {
		fatal("serve: %v", err)
	}
	if fs.NArg() > 1 {
		fatal("serve: expected at most one cron expression")
	}
	f.cron = fs.Arg(0)
	return f
}

func (a *app) handleServe(ctx context.Context, f serveFlags) error {
	a.ov.Server = f.cron
	a.ov.MetricsAddr = f.metricsAddr
	opts := a.loadOptions(true)
	if opts.Server == "" {
		return errors.New("no cron expression given and no server option configured")
	}
	return a.serve(ctx, opts)
}

// serve runs the scheduler and, when configured, the metrics endpoint until
// ctx is cancelled.
func (a *app) serve(ctx context.Context, opts *config.Options) error {
	recorder := metrics.NewRecorder()
	syncer := newSyncer(opts, recorder)
	syncer.Progress = nil

	sched, err := scheduler.New(opts.Server, func(ctx context.Context) error {
		_, err := syncer.SyncAll(ctx)
		recorder.ObserveRun(time.Now(), err)
		return err
	}, logger.Get())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})

	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			logger.Info().Str("addr", opts.MetricsAddr).Msg("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
