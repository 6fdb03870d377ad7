package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/k3a/html2text"
)

// Metadata is the content of metadata.json.
type Metadata struct {
	ID          string   `json:"Id"`
	Parent      string   `json:"Parent"`
	Subject     string   `json:"Subject"`
	From        []string `json:"From"`
	To          []string `json:"To"`
	Cc          []string `json:"Cc"`
	Date        string   `json:"Date"`
	Utc         string   `json:"Utc"`
	Attachments []string `json:"Attachments"`
	WithHtml    bool     `json:"WithHtml"`
	WithText    bool     `json:"WithText"`
	Body        string   `json:"Body"`
}

func newMetadata(msg *Message, attachments []string) Metadata {
	md := Metadata{
		ID:          msg.MessageID,
		Parent:      msg.InReplyTo,
		Subject:     msg.Subject,
		From:        msg.From,
		To:          msg.To,
		Cc:          msg.Cc,
		Date:        msg.Date,
		Attachments: attachments,
		WithHtml:    msg.HTMLBody != "",
		WithText:    msg.TextBody != "",
		Body:        plainText(msg),
	}
	if !msg.Time.IsZero() {
		md.Utc = msg.Time.UTC().Format(time.RFC3339)
	}
	if md.Attachments == nil {
		md.Attachments = []string{}
	}
	return md
}

func writeMetadata(path string, msg *Message, attachments []string) error {
	data, err := json.MarshalIndent(newMetadata(msg, attachments), "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// plainText is the text body, or the HTML body converted to text when the
// message has no text part.
func plainText(msg *Message) string {
	if msg.TextBody != "" {
		return msg.TextBody
	}
	if msg.HTMLBody != "" {
		return html2text.HTML2Text(msg.HTMLBody)
	}
	return ""
}

func writeBodies(dir string, msg *Message) error {
	var errs []error
	if text := plainText(msg); text != "" {
		errs = append(errs, os.WriteFile(filepath.Join(dir, TextFile), []byte(text), 0o644))
	}
	if msg.HTMLBody != "" {
		errs = append(errs, os.WriteFile(filepath.Join(dir, HTMLFile), []byte(msg.HTMLBody), 0o644))
	}
	return errors.Join(errs...)
}

// writeAttachments stores each attachment under dir and returns the file
// names used. Names are reduced to a single safe path element and made
// unique within the entry.
func writeAttachments(dir string, attachments []Attachment) ([]string, error) {
	if len(attachments) == 0 {
		return []string{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return []string{}, err
	}

	names := make([]string, 0, len(attachments))
	used := make(map[string]bool)
	var errs []error
	for i, a := range attachments {
		name := uniqueName(attachmentName(a, i), used)
		if err := os.WriteFile(filepath.Join(dir, name), a.Data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("attachment %q: %w", name, err))
			continue
		}
		names = append(names, name)
	}
	return names, errors.Join(errs...)
}

var unsafeNameChars = strings.NewReplacer("/", "_", `\`, "_", "\x00", "", ":", "_")

func attachmentName(a Attachment, i int) string {
	name := strings.TrimSpace(unsafeNameChars.Replace(a.Filename))
	switch name {
	case "", ".", "..":
		ext := ""
		if exts, _ := mime.ExtensionsByType(a.ContentType); len(exts) > 0 {
			ext = exts[0]
		}
		if ext == "" {
			ext = ".bin"
		}
		return fmt.Sprintf("attachment-%d%s", i+1, ext)
	}
	return name
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; used[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

// renderSource is the HTML handed to the PDF renderer.
func renderSource(msg *Message) string {
	if msg.HTMLBody != "" {
		return msg.HTMLBody
	}
	return "<html><head><meta charset=\"utf-8\"></head><body><pre>" +
		html.EscapeString(msg.TextBody) +
		"</pre></body></html>"
}
