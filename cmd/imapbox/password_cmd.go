package main

import (
	"errors"
	"fmt"

	"github.com/imapbox/imapbox/pkgs/credential"
)

// handlePassword manages keyring entries of the configured accounts.
func (a *app) handlePassword(args []string) error {
	if len(args) != 1 || (args[0] != "set" && args[0] != "delete") {
		return errors.New("usage: imapbox password set|delete")
	}

	opts := a.loadOptions(false)
	if len(opts.Accounts) == 0 {
		return errors.New("no accounts configured")
	}
	store, err := credential.Open()
	if err != nil {
		return err
	}

	var errs []error
	for _, acc := range opts.Accounts {
		if acc.Host == "" || acc.Username == "" {
			errs = append(errs, fmt.Errorf("account %s: host and username are required", acc.Name))
			continue
		}

		if args[0] == "delete" {
			if err := store.Delete(acc.Username, acc.Host); err != nil {
				errs = append(errs, err)
				continue
			}
			fmt.Printf("Removed password of %s\n", credential.Key(acc.Username, acc.Host))
			continue
		}

		pw, err := readPassword(fmt.Sprintf("Password for %s:%s: ", acc.Username, acc.Host))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pw == "" {
			errs = append(errs, fmt.Errorf("account %s: no password given", acc.Name))
			continue
		}
		if err := store.Set(acc.Username, acc.Host, pw); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Printf("Stored password of %s\n", credential.Key(acc.Username, acc.Host))
	}
	return errors.Join(errs...)
}
