package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	flag "github.com/spf13/pflag"

	"github.com/imapbox/imapbox/pkgs/config"
	"github.com/imapbox/imapbox/pkgs/credential"
)

type dsnFlags struct {
	form    bool
	test    bool
	keyring bool
}

func parseDSNFlags(args []string) dsnFlags {
	fs := flag.NewFlagSet("dsn", flag.ExitOnError)
	var f dsnFlags
	fs.BoolVar(&f.form, "form", false, "Use an interactive form instead of line prompts")
	fs.BoolVar(&f.test, "test", false, "Test the connection of the new account")
	fs.BoolVar(&f.keyring, "keyring", false, "Store the password in the system keyring, not in the DSN")
	if err := fs.Parse(args); err != nil {
		fatal("dsn: %v", err)
	}
	return f
}

// dsnAnswers holds the raw answers of the DSN wizard.
type dsnAnswers struct {
	SSL          bool
	Host         string
	Port         string
	Username     string
	Password     string
	RemoteFolder string
}

func (d dsnAnswers) account() (config.Account, error) {
	acc := config.Account{
		Host:          strings.TrimSpace(d.Host),
		Port:          config.DefaultPort,
		Username:      strings.TrimSpace(d.Username),
		Password:      d.Password,
		SSL:           d.SSL,
		RemoteFolders: []string{config.DefaultRemoteFolder},
	}
	if err := validateRequired("host")(acc.Host); err != nil {
		return acc, err
	}
	if err := validateRequired("username")(acc.Username); err != nil {
		return acc, err
	}
	if p := strings.TrimSpace(d.Port); p != "" {
		if err := validatePort(p); err != nil {
			return acc, err
		}
		acc.Port, _ = strconv.Atoi(p)
	}
	if folders := splitFolders(d.RemoteFolder); len(folders) > 0 {
		acc.RemoteFolders = folders
	}
	acc.Name = acc.Username + "@" + acc.Host
	return acc, nil
}

func (a *app) handleDSN(ctx context.Context, f dsnFlags) error {
	var (
		answers dsnAnswers
		err     error
	)
	if f.form {
		answers, err = askDSNForm()
	} else {
		var hidden func(string) (string, error)
		if isTerminal(os.Stdin) {
			hidden = readPassword
		}
		answers, err = askDSN(bufio.NewReader(os.Stdin), os.Stdout, hidden)
	}
	if err != nil {
		return err
	}

	acc, err := answers.account()
	if err != nil {
		return err
	}

	printed := acc
	if f.keyring && acc.Password != "" {
		store, err := credential.Open()
		if err != nil {
			return err
		}
		if err := store.Set(acc.Username, acc.Host, acc.Password); err != nil {
			return err
		}
		printed.Password = ""
	}
	fmt.Printf("\nDSN:\n %s\n", printed.DSN())

	if !f.test {
		return nil
	}
	opts := a.loadOptions(false)
	opts.Accounts = []config.Account{acc}
	opts.TestOnly = config.TestFolders
	if err := opts.Validate(); err != nil {
		return err
	}
	return a.test(ctx, opts)
}

// askDSN asks the wizard questions one line at a time. hidden, when set,
// reads the password without echo.
func askDSN(r *bufio.Reader, w io.Writer, hidden func(prompt string) (string, error)) (dsnAnswers, error) {
	var d dsnAnswers
	ask := func(prompt string) (string, error) {
		fmt.Fprint(w, prompt)
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("reading answer: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	ssl, err := ask("Use SSL? [Y/n]: ")
	if err != nil {
		return d, err
	}
	d.SSL = !strings.EqualFold(ssl, "n")

	for _, q := range []struct {
		prompt string
		dst    *string
	}{
		{"Host: ", &d.Host},
		{"Port [993]: ", &d.Port},
		{"Username: ", &d.Username},
	} {
		if *q.dst, err = ask(q.prompt); err != nil {
			return d, err
		}
	}

	if hidden != nil {
		d.Password, err = hidden("Password: ")
	} else {
		d.Password, err = ask("Password: ")
	}
	if err != nil {
		return d, err
	}

	d.RemoteFolder, err = ask("Remote folder (use __ALL__ to fetch all) [INBOX]: ")
	return d, err
}

func askDSNForm() (dsnAnswers, error) {
	d := dsnAnswers{SSL: true, Port: strconv.Itoa(config.DefaultPort)}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Use SSL").
				Description("Connect with implicit TLS").
				Affirmative("Yes").
				Negative("No").
				Value(&d.SSL),
			huh.NewInput().
				Title("Host").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&d.Host).
				Validate(validateRequired("Host")),
			huh.NewInput().
				Title("Port").
				Placeholder("993").
				Value(&d.Port).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Placeholder("user@example.com").
				Value(&d.Username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&d.Password),
			huh.NewInput().
				Title("Remote folder").
				Description("Comma separated, __ALL__ fetches every folder").
				Placeholder(config.DefaultRemoteFolder).
				Value(&d.RemoteFolder),
		),
	)
	if err := form.Run(); err != nil {
		return d, err
	}
	return d, nil
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validatePort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", s)
	}
	return nil
}

func splitFolders(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
