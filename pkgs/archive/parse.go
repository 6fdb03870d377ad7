package archive

import (
	"bytes"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func init() {
	// Aliases seen in the wild that the default charset table misses.
	asciiEncoding := unicode.UTF8 // ASCII is compatible with UTF-8
	charset.RegisterEncoding("ascii", asciiEncoding)
	charset.RegisterEncoding("us-ascii", asciiEncoding)

	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("cp1252", charmap.Windows1252)
	charset.RegisterEncoding("cp-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("latin1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
	charset.RegisterEncoding("cp850", charmap.CodePage850)
}

// Message is the parsed form of a raw message used to build the artifacts
// of an archive entry.
type Message struct {
	MessageID string
	InReplyTo string
	Subject   string
	From      []string
	To        []string
	Cc        []string
	// Date is the raw Date header, Time its parsed value (zero when the
	// header is missing or unparsable).
	Date string
	Time time.Time

	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment is one non-body MIME part.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Data        []byte
}

// Text decodes b as UTF-8 when it is valid UTF-8 and as ISO-8859-1
// otherwise. Every string leaving the parser went through it once.
func Text(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(s)
}

func textString(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return Text([]byte(s))
}

// Parse reads the headers and MIME structure of raw. Parts in an unknown
// charset are kept undecoded rather than failing the whole message.
func Parse(raw []byte) (*Message, error) {
	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
		return nil, err
	}

	h := mail.Header{Header: entity.Header}
	msg := &Message{
		MessageID: textString(strings.TrimSpace(h.Get("Message-Id"))),
		InReplyTo: textString(strings.TrimSpace(h.Get("In-Reply-To"))),
		Date:      textString(strings.TrimSpace(h.Get("Date"))),
	}

	if subject, err := h.Subject(); err == nil {
		msg.Subject = textString(subject)
	} else {
		msg.Subject = textString(h.Get("Subject"))
	}
	msg.From = addressList(h, "From")
	msg.To = addressList(h, "To")
	msg.Cc = addressList(h, "Cc")
	if t, err := h.Date(); err == nil {
		msg.Time = t
	}

	parseEntityBody(msg, entity)
	return msg, nil
}

// addressList falls back to the raw header when it does not parse as an
// RFC 5322 address list.
func addressList(h mail.Header, key string) []string {
	if !h.Has(key) {
		return []string{}
	}
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		if raw := strings.TrimSpace(h.Get(key)); raw != "" {
			return []string{textString(raw)}
		}
		return []string{}
	}

	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			out = append(out, textString(a.Name)+" <"+a.Address+">")
		} else {
			out = append(out, a.Address)
		}
	}
	return out
}

// parseEntityBody fills the bodies and attachments of msg from a single part
// or a (possibly nested) multipart entity.
func parseEntityBody(msg *Message, entity *gomessage.Entity) {
	if mr := entity.MultipartReader(); mr != nil {
		parseMultipart(msg, mr)
	} else {
		parseSinglePart(msg, entity)
	}
}

func parseMultipart(msg *Message, mr gomessage.MultipartReader) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !gomessage.IsUnknownCharset(err) {
			break
		}

		ct, _, _ := part.Header.ContentType()
		if ct == "" {
			ct = "text/plain"
		}
		disp, _, _ := part.Header.ContentDisposition()
		inline := disp != "attachment"

		switch {
		case ct == "text/plain" && inline && msg.TextBody == "":
			if body, err := io.ReadAll(part.Body); err == nil {
				msg.TextBody = Text(body)
			}

		case ct == "text/html" && inline && msg.HTMLBody == "":
			if body, err := io.ReadAll(part.Body); err == nil {
				msg.HTMLBody = Text(body)
			}

		case strings.HasPrefix(ct, "multipart/"):
			if nested := part.MultipartReader(); nested != nil {
				parseMultipart(msg, nested)
			}

		default:
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			h := mail.AttachmentHeader{Header: part.Header}
			filename, _ := h.Filename()
			msg.Attachments = append(msg.Attachments, Attachment{
				Filename:    textString(filename),
				ContentType: ct,
				ContentID:   strings.Trim(part.Header.Get("Content-Id"), "<> "),
				Data:        body,
			})
		}
	}
}

func parseSinglePart(msg *Message, entity *gomessage.Entity) {
	ct, _, _ := entity.Header.ContentType()
	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return
	}
	if ct == "text/html" {
		msg.HTMLBody = Text(body)
	} else {
		msg.TextBody = Text(body)
	}
}
