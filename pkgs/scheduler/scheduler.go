// Package scheduler runs a backup job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/imapbox/imapbox/pkgs/logger"
)

// Job is one scheduled run. Its context is never cancelled by the
// scheduler; shutdown waits for it instead.
type Job func(ctx context.Context) error

// Scheduler triggers a Job at every due time of a cron expression. Runs
// never overlap: a due time reached while a run is still going is skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	job      Job
	log      *zerolog.Logger
}

// New validates spec, a standard five-field cron expression or a
// descriptor such as "@daily" or "@every 1h".
func New(spec string, job Job, log *zerolog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{spec: spec, schedule: schedule, job: job, log: log}, nil
}

// Next returns the first due time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is done, then waits for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx := context.WithoutCancel(ctx)
	cl := cronLogger{log: s.log}

	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		started := time.Now()
		s.log.Info().Msg("Starting scheduled backup")
		if err := s.job(runCtx); err != nil {
			s.log.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("Scheduled backup failed")
		}
		s.log.Info().Time("next", s.Next(time.Now())).Msg("Done. Waiting for next cron")
	}))

	s.log.Info().Str("cron", s.spec).Time("next", s.Next(time.Now())).Msg("Started server, waiting for first cron")
	c.Start()

	<-ctx.Done()
	s.log.Info().Msg("Stopping server")
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
