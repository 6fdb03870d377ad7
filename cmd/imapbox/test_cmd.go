package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/imapbox/imapbox/pkgs/config"
)

type testFlags struct {
	folders bool
}

func parseTestFlags(args []string) testFlags {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	var f testFlags
	fs.BoolVar(&f.folders, "folders", false, "Also print the folders found")
	if err := fs.Parse(args); err != nil {
		fatal("test: %v", err)
	}
	return f
}

func (a *app) handleTest(ctx context.Context, f testFlags) error {
	a.ov.TestOnly = config.TestLogin
	if f.folders {
		a.ov.TestOnly = config.TestFolders
	}
	return a.test(ctx, a.loadOptions(true))
}

// test checks login and folder retrieval of every account.
func (a *app) test(ctx context.Context, opts *config.Options) error {
	s := newSyncer(opts, nil)

	var errs []error
	for _, acc := range opts.Accounts {
		fmt.Printf("%s/%s (on %s)\n", acc.Name, strings.Join(acc.RemoteFolders, ","), acc.Host)

		folders, err := s.TestAccount(ctx, acc)
		if err != nil {
			fmt.Printf(" - FAILED: Login and folder retrieval: %v\n", err)
			errs = append(errs, fmt.Errorf("account %s: %w", acc.Name, err))
			continue
		}
		if opts.TestOnly == config.TestFolders {
			names := make([]string, len(folders))
			for i, f := range folders {
				names[i] = f.Name
			}
			fmt.Println(" - Folders:", strings.Join(names, ", "))
		}
		fmt.Println(" - SUCCESS: Login and folder retrieval")
	}
	return errors.Join(errs...)
}

func (a *app) handleFolders(ctx context.Context) error {
	opts := a.loadOptions(true)
	s := newSyncer(opts, nil)

	var errs []error
	for _, acc := range opts.Accounts {
		folders, err := s.TestAccount(ctx, acc)
		if err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", acc.Name, err))
			continue
		}
		fmt.Printf("%s (on %s):\n", acc.Name, acc.Host)
		for _, f := range folders {
			flags := ""
			if f.NoSelect {
				flags = " [no-select]"
			}
			fmt.Printf("  %-40s %-40s -> %s%s\n", f.Name, f.Remote, f.LocalName(), flags)
		}
	}
	return errors.Join(errs...)
}
