package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/imapbox/imapbox/pkgs/archive"
	"github.com/imapbox/imapbox/pkgs/logger"
)

type exportFlags struct {
	mbox string
}

func parseExportFlags(args []string) exportFlags {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var f exportFlags
	fs.StringVar(&f.mbox, "mbox", "", "Output file, \"-\" for stdout")
	if err := fs.Parse(args); err != nil {
		fatal("export: %v", err)
	}
	if f.mbox == "" {
		fatal("export: --mbox is required")
	}
	return f
}

func (a *app) handleExport(f exportFlags) error {
	opts := a.loadOptions(false)

	var out io.Writer = os.Stdout
	if f.mbox != "-" {
		file, err := os.Create(f.mbox)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	bw := bufio.NewWriter(out)
	n, err := archive.ExportMbox(opts.LocalFolder, bw)
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write mbox: %w", err)
	}
	logger.Info().Int("messages", n).Str("file", f.mbox).Msg("Exported archive")
	return nil
}
