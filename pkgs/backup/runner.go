// Package backup drives the archive of one folder, one account or all
// configured accounts.
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/imapbox/imapbox/pkgs/archive"
	"github.com/imapbox/imapbox/pkgs/email"
	"github.com/imapbox/imapbox/pkgs/logger"
)

// Source is the part of an email.Session a run needs.
type Source interface {
	email.Searcher
	FetchRaw(ctx context.Context, seqNum uint32) (*email.RawMessage, error)
	Reconnect(ctx context.Context) error
	MaxRetries() int
	Folder() string
}

// Persister stores one raw message. *archive.Writer implements it.
type Persister interface {
	Persist(ctx context.Context, raw []byte) (archive.Result, error)
}

// Stats counts what a run did with each message.
type Stats struct {
	Saved    int
	Existing int
	Skipped  int
	// Empty is set when the folder had no matching message.
	Empty bool
}

// Add accumulates o into s. Empty stays set only if both are empty.
func (s *Stats) Add(o Stats) {
	s.Saved += o.Saved
	s.Existing += o.Existing
	s.Skipped += o.Skipped
	s.Empty = s.Empty && o.Empty
}

// Outcome is what happened to a single message.
type Outcome int

const (
	OutcomeSaved Outcome = iota
	OutcomeExisting
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeExisting:
		return "existing"
	default:
		return "skipped"
	}
}

// Observer receives run events, for metrics. Calls happen on the run's
// goroutine.
type Observer interface {
	ObserveMessage(account string, o Outcome)
	ObserveFolder(account, folder string, stats Stats, err error, elapsed time.Duration)
}

// RunOptions configures one folder run.
type RunOptions struct {
	// Days limits the run to messages sent in the last Days days. Zero
	// means all messages.
	Days      int
	BatchSize int
	Archive   Persister

	// Account labels log lines and observer events.
	Account string
	// Progress is called after each message with the number handled so far.
	Progress func(done, total int)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner archives the selected folder of a session.
type Runner struct {
	log      *zerolog.Logger
	observer Observer
}

// NewRunner returns a runner logging to log. Both arguments may be nil.
func NewRunner(log *zerolog.Logger, observer Observer) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{log: log, observer: observer}
}

// Run enumerates the selected folder and persists every message. Messages
// that fail are skipped, except that a retryable failure reconnects and
// tries the same message again, up to the session's retry budget. A spent
// budget, a failed reconnect or a cancelled context end the run with an
// error; the stats gathered so far are returned with it.
func (r *Runner) Run(ctx context.Context, src Source, opts RunOptions) (Stats, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	log := r.log.With().Str("folder", src.Folder()).Logger()

	crit := email.SinceCriterion(opts.Days, now())
	ids, err := email.Search(ctx, src, crit, opts.BatchSize)
	if err != nil {
		return Stats{}, err
	}
	if len(ids) == 0 {
		return Stats{Empty: true}, nil
	}

	log.Info().Int("messages", len(ids)).Stringer("criterion", crit).Msg("Copying emails")

	var stats Stats
	for i, seq := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		outcome, err := r.copyOne(ctx, &log, src, opts.Archive, seq)
		if err != nil {
			return stats, err
		}
		switch outcome {
		case OutcomeSaved:
			stats.Saved++
		case OutcomeExisting:
			stats.Existing++
		default:
			stats.Skipped++
		}
		if r.observer != nil {
			r.observer.ObserveMessage(opts.Account, outcome)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(ids))
		}
	}
	return stats, nil
}

// copyOne fetches and persists one message according to the failure class
// of the fetch error.
func (r *Runner) copyOne(ctx context.Context, log *zerolog.Logger, src Source, w Persister, seq uint32) (Outcome, error) {
	maxRetries := src.MaxRetries()

	for retries := 0; ; {
		msg, err := src.FetchRaw(ctx, seq)
		if err == nil {
			return r.persist(ctx, log, w, msg)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return OutcomeSkipped, ctxErr
		}

		switch email.Classify(err) {
		case email.KindRetryable:
			retries++
			if retries >= maxRetries {
				log.Error().Err(err).Uint32("seq", seq).Msg("Maximum retries reached")
				return OutcomeSkipped, fmt.Errorf("%w fetching message %d: %w", email.ErrRetriesExhausted, seq, err)
			}
			log.Warn().Err(err).Uint32("seq", seq).Int("retry", retries).Msg("Connection error while fetching email, retrying")
			if err := src.Reconnect(ctx); err != nil {
				return OutcomeSkipped, fmt.Errorf("reconnect: %w", err)
			}

		case email.KindAbort:
			log.Error().Err(err).Uint32("seq", seq).Msg("Abort error while fetching email, skipping")
			if err := src.Reconnect(ctx); err != nil {
				return OutcomeSkipped, fmt.Errorf("reconnect: %w", err)
			}
			return OutcomeSkipped, nil

		default:
			log.Error().Err(err).Uint32("seq", seq).Msg("Error while fetching email, skipping")
			return OutcomeSkipped, nil
		}
	}
}

func (r *Runner) persist(ctx context.Context, log *zerolog.Logger, w Persister, msg *email.RawMessage) (Outcome, error) {
	res, err := w.Persist(ctx, msg.Body)
	if err != nil {
		log.Error().Err(err).Uint32("seq", msg.SeqNum).Msg("Failed to save email")
		return OutcomeSkipped, nil
	}
	if res.Status == archive.AlreadyPresent {
		return OutcomeExisting, nil
	}
	log.Debug().Uint32("seq", msg.SeqNum).Str("dir", res.Dir).Msg("Saved email")
	return OutcomeSaved, nil
}
