package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/imapbox/imapbox/pkgs/archive"
)

type searchFlags struct {
	filter string
	output string
}

func parseSearchFlags(args []string) searchFlags {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	var f searchFlags
	fs.StringVarP(&f.output, "output", "o", "text", "Output format: text or json")
	if err := fs.Parse(args); err != nil {
		fatal("search: %v", err)
	}
	if fs.NArg() != 1 {
		fatal("search: expected one filter like 'Subject,\"*invoice*\"'")
	}
	f.filter = fs.Arg(0)
	if f.output != "text" && f.output != "json" {
		fatal("search: --output must be text or json")
	}
	return f
}

func (a *app) handleSearch(f searchFlags) error {
	opts := a.loadOptions(false)
	filter, err := archive.ParseFilter(f.filter)
	if err != nil {
		return err
	}
	return writeSearch(os.Stdout, opts.LocalFolder, filter, f.output)
}

// searchResult is the json output document.
type searchResult struct {
	Filter archive.Filter  `json:"filter"`
	Items  []archive.Match `json:"items"`
	Found  int             `json:"found"`
}

func writeSearch(w io.Writer, root string, filter archive.Filter, output string) error {
	if output == "json" {
		res := searchResult{Filter: filter, Items: []archive.Match{}}
		found, err := archive.Search(root, filter, func(m archive.Match) error {
			res.Items = append(res.Items, m)
			return nil
		})
		if err != nil {
			return err
		}
		res.Found = found
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "Searching for %s = %s\n", filter.Key, filter.Pattern)
	found, err := archive.Search(root, filter, func(m archive.Match) error {
		data, err := json.MarshalIndent(m.Content, "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "\n%s\n%s\n", m.Path, data)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nFound %d\n", found)
	return nil
}
