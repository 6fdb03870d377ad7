package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-mbox"
	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

const unknownSender = "MAILER-DAEMON"

// ExportMbox writes every message.eml below root to w as one mbox stream,
// in lexical path order. It returns the number of messages written.
func ExportMbox(root string, w io.Writer) (int, error) {
	mw := mbox.NewWriter(w)

	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != RawFile {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		from, date := envelopeOf(raw)
		if date.IsZero() {
			if info, err := d.Info(); err == nil {
				date = info.ModTime()
			}
		}

		msgWriter, err := mw.CreateMessage(from, date)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if _, err := msgWriter.Write(raw); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, mw.Close()
}

// envelopeOf returns the sender address and date for the mbox "From " line.
func envelopeOf(raw []byte) (string, time.Time) {
	th, _ := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	h := mail.Header{Header: gomessage.Header{Header: th}}

	from := unknownSender
	for _, key := range []string{"Return-Path", "Sender", "From"} {
		if addrs, err := h.AddressList(key); err == nil && len(addrs) > 0 && addrs[0].Address != "" {
			from = addrs[0].Address
			break
		}
	}
	date, _ := h.Date()
	return from, date
}
