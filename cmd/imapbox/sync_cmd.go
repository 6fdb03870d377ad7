package main

import (
	"context"
	"fmt"

	"github.com/imapbox/imapbox/pkgs/config"
)

func (a *app) handleSync(ctx context.Context, opts *config.Options) error {
	results, err := newSyncer(opts, nil).SyncAll(ctx)
	for _, res := range results {
		for _, f := range res.Folders {
			switch {
			case f.Err != nil:
				fmt.Printf("%s/%s: FAILED: %v\n", res.Account, f.Folder, f.Err)
			case f.Stats.Empty:
				fmt.Printf("%s/%s: Folder is empty\n", res.Account, f.Folder)
			default:
				fmt.Printf("%s/%s: %d emails created, %d emails already exists", res.Account, f.Folder, f.Stats.Saved, f.Stats.Existing)
				if f.Stats.Skipped > 0 {
					fmt.Printf(", %d skipped", f.Stats.Skipped)
				}
				fmt.Println()
			}
		}
	}
	return err
}
