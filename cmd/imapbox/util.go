package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/imapbox/imapbox/pkgs/archive"
	"github.com/imapbox/imapbox/pkgs/backup"
	"github.com/imapbox/imapbox/pkgs/config"
	"github.com/imapbox/imapbox/pkgs/credential"
	"github.com/imapbox/imapbox/pkgs/logger"
)

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadOptions reads the config files, applies command line overrides and
// sets up logging. With accounts, missing passwords are resolved and invalid
// accounts are reported and dropped; having none left is fatal.
func (a *app) loadOptions(accounts bool) *config.Options {
	opts, err := config.Load(a.configPath)
	if err != nil {
		fatal("%v", err)
	}
	if err := opts.Apply(a.ov); err != nil {
		fatal("%v", err)
	}
	if err := logger.Init(logger.Options{Level: opts.LogLevel, Format: opts.LogFormat}); err != nil {
		fatal("%v", err)
	}
	if !accounts {
		return opts
	}

	if err := opts.ResolvePasswords(a.passwordSources()...); err != nil {
		logger.Warn().Err(err).Msg("Could not resolve password")
	}
	if err := opts.Validate(); err != nil {
		if errors.Is(err, config.ErrNoAccounts) {
			fmt.Fprintln(os.Stderr, "Run 'imapbox help' for the configuration options.")
			fatal("%v", err)
		}
		logger.Error().Err(err).Msg("Invalid account")
	}
	return opts
}

func (a *app) passwordSources() []config.PasswordFunc {
	var sources []config.PasswordFunc
	if !a.noKeyring {
		if store, err := credential.Open(); err == nil {
			sources = append(sources, store.Password)
		} else {
			logger.Debug().Err(err).Msg("System keyring unavailable")
		}
	}
	return append(sources, promptPassword)
}

// promptPassword asks on the terminal. Without one it offers nothing.
func promptPassword(acc config.Account) (string, error) {
	if acc.Username == "" || acc.Host == "" {
		return "", nil
	}
	return readPassword(fmt.Sprintf("Password for %s:%s: ", acc.Username, acc.Host))
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("could not ask for password: %w", err)
	}
	return string(pw), nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// newSyncer wires the archive pipeline for opts.
func newSyncer(opts *config.Options, observer backup.Observer) *backup.Syncer {
	s := &backup.Syncer{
		Options:  opts,
		Observer: observer,
		Logger:   logger.Get(),
	}
	if opts.Wkhtmltopdf != "" {
		s.Renderer = archive.Wkhtmltopdf{Path: opts.Wkhtmltopdf}
	}
	if isTerminal(os.Stderr) {
		s.Progress = progressPrinter
	}
	return s
}

// progressPrinter shows the share of the folder done so far, overwriting
// one terminal line.
func progressPrinter(account, folder string) func(done, total int) {
	return func(done, total int) {
		fmt.Fprintf(os.Stderr, "\r%s/%s %.2f%%", account, folder, float64(done)*100/float64(total))
		if done == total {
			fmt.Fprint(os.Stderr, "\r\033[K")
		}
	}
}
