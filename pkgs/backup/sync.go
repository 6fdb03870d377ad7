package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/imapbox/imapbox/pkgs/archive"
	"github.com/imapbox/imapbox/pkgs/config"
	"github.com/imapbox/imapbox/pkgs/email"
	"github.com/imapbox/imapbox/pkgs/logger"
	"github.com/imapbox/imapbox/pkgs/utf7"
)

// Syncer archives configured accounts, one after the other.
type Syncer struct {
	Options  *config.Options
	Renderer archive.Renderer
	Observer Observer
	Logger   *zerolog.Logger

	// Progress, when set, returns the progress callback for one folder.
	Progress func(account, folder string) func(done, total int)

	// Dial and Backoff override the session defaults.
	Dial    email.Dialer
	Backoff func(attempt int) time.Duration
}

// FolderResult is the outcome of one folder of an account.
type FolderResult struct {
	Folder string
	Dir    string
	Stats  Stats
	Err    error
}

// AccountResult is the outcome of one account.
type AccountResult struct {
	Account string
	Folders []FolderResult
	Total   Stats
}

func (s *Syncer) log() *zerolog.Logger {
	if s.Logger == nil {
		return logger.Nop()
	}
	return s.Logger
}

func (s *Syncer) sessionConfig(acc config.Account, log *zerolog.Logger) email.Config {
	cfg := acc.SessionConfig(s.Options)
	cfg.Dial = s.Dial
	cfg.Backoff = s.Backoff
	cfg.Logger = log
	return cfg
}

func (s *Syncer) exclusions(acc config.Account) email.Exclusions {
	return email.NewExclusions(acc.ExcludeFolders, s.Options.PseudoFolders)
}

// SyncAll archives every configured account. An account that fails does
// not stop the others; the returned error joins all account failures.
func (s *Syncer) SyncAll(ctx context.Context) ([]AccountResult, error) {
	var (
		results []AccountResult
		errs    []error
	)
	for _, acc := range s.Options.Accounts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := s.SyncAccount(ctx, acc)
		results = append(results, res)
		if err != nil {
			s.log().Error().Err(err).Str("account", acc.Name).Msg("FAILED")
			errs = append(errs, fmt.Errorf("account %s: %w", acc.Name, err))
		}
	}
	return results, errors.Join(errs...)
}

// target is one remote folder and the directory it is archived into.
type target struct {
	remote string
	local  string
}

// SyncAccount archives every folder of acc. A folder that cannot be
// selected or enumerated is logged and skipped. Fatal connection errors
// end the account.
func (s *Syncer) SyncAccount(ctx context.Context, acc config.Account) (AccountResult, error) {
	log := s.log().With().Str("account", acc.Name).Logger()
	res := AccountResult{Account: acc.Name, Total: Stats{Empty: true}}

	log.Info().Str("host", acc.Host).Strs("folders", acc.RemoteFolders).Msg("Backing up account")

	session, err := email.Open(ctx, s.sessionConfig(acc, &log))
	if err != nil {
		return res, err
	}
	defer session.Close(context.WithoutCancel(ctx))

	targets, err := s.targets(ctx, session, acc)
	if err != nil {
		return res, err
	}

	baseDir := s.Options.LocalFolder
	if s.Options.SpecificFolders {
		baseDir = filepath.Join(baseDir, utf7.LocalName(acc.Name, ""))
	}

	runner := NewRunner(&log, s.Observer)
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		fr := FolderResult{Folder: t.remote, Dir: filepath.Join(baseDir, t.local)}
		started := time.Now()
		fr.Stats, fr.Err = s.syncFolder(ctx, session, runner, acc, fr.Dir, t.remote)
		res.Folders = append(res.Folders, fr)
		res.Total.Add(fr.Stats)
		if s.Observer != nil {
			s.Observer.ObserveFolder(acc.Name, t.remote, fr.Stats, fr.Err, time.Since(started))
		}

		flog := log.With().Str("folder", t.remote).Logger()
		switch {
		case fr.Err == nil && fr.Stats.Empty:
			flog.Info().Msg("Done. Folder is empty")
		case fr.Err == nil:
			flog.Info().
				Int("saved", fr.Stats.Saved).
				Int("existing", fr.Stats.Existing).
				Int("skipped", fr.Stats.Skipped).
				Msgf("Done. %d emails created, %d emails already exists", fr.Stats.Saved, fr.Stats.Existing)
		case email.IsFatal(fr.Err) || ctx.Err() != nil:
			return res, fr.Err
		default:
			flog.Error().Err(fr.Err).Msg("Skipping folder")
		}
	}
	return res, nil
}

func (s *Syncer) syncFolder(ctx context.Context, session *email.Session, runner *Runner, acc config.Account, dir, remote string) (Stats, error) {
	err := session.Select(ctx, remote)
	if err != nil && email.Classify(err) != email.KindOther {
		// The connection broke while selecting; reconnect selects again.
		err = session.Reconnect(ctx)
	}
	if err != nil {
		return Stats{}, err
	}

	var progress func(done, total int)
	if s.Progress != nil {
		progress = s.Progress(acc.Name, remote)
	}
	log := s.log()
	return runner.Run(ctx, session, RunOptions{
		Days:     s.Options.Days,
		Account:  acc.Name,
		Progress: progress,
		Archive: archive.NewWriter(archive.Options{
			Root:     dir,
			Renderer: s.Renderer,
			Logger:   log,
		}),
	})
}

// targets resolves the folders of acc. AllFolders expands to the server's
// folder list minus exclusions; configured names are used as given, after
// decoding modified UTF-7 when they are well-formed.
func (s *Syncer) targets(ctx context.Context, session *email.Session, acc config.Account) ([]target, error) {
	if acc.All() {
		folders, err := session.ListFolders(ctx, s.exclusions(acc))
		if err != nil {
			return nil, err
		}
		targets := make([]target, 0, len(folders))
		for _, f := range folders {
			if f.NoSelect {
				continue
			}
			targets = append(targets, target{remote: f.Name, local: f.LocalName()})
		}
		return targets, nil
	}

	targets := make([]target, 0, len(acc.RemoteFolders))
	for _, name := range acc.RemoteFolders {
		decoded, err := utf7.Decode(name)
		if err != nil {
			decoded = name
		}
		targets = append(targets, target{remote: decoded, local: utf7.LocalName(decoded, "/")})
	}
	return targets, nil
}

// TestAccount logs in and lists the folders of acc, without archiving.
func (s *Syncer) TestAccount(ctx context.Context, acc config.Account) ([]email.Folder, error) {
	log := s.log().With().Str("account", acc.Name).Logger()

	session, err := email.Open(ctx, s.sessionConfig(acc, &log))
	if err != nil {
		return nil, err
	}
	defer session.Close(context.WithoutCancel(ctx))

	return session.ListFolders(ctx, s.exclusions(acc))
}
