package archive

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"unicode/utf8"

	"github.com/emersion/go-message/textproto"
)

// NoYear is the bucket for messages without a recognisable date.
const NoYear = "None"

// maxIDLength keeps entry names below common file name limits.
const maxIDLength = 255

var (
	unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9_\-.() ]+`)
	yearPattern   = regexp.MustCompile(`\d{1,2}\s\w{3}\s(\d{4})`)
)

// Key locates an archive entry below the archive root.
type Key struct {
	Year string
	ID   string
}

// Path returns the entry directory for root.
func (k Key) Path(root string) string {
	return filepath.Join(root, k.Year, k.ID)
}

// DeriveKey computes the key of a raw message. The same bytes always give
// the same key.
func DeriveKey(raw []byte) Key {
	h, _ := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))

	return Key{
		Year: yearOf(Text([]byte(h.Get("Date")))),
		ID:   stableID(Text([]byte(h.Get("Message-Id"))), raw),
	}
}

func stableID(messageID string, raw []byte) string {
	if messageID != "" && utf8.RuneCountInString(messageID) < maxIDLength {
		id := unsafeIDChars.ReplaceAllString(messageID, "")
		switch id {
		case "", ".", "..":
		default:
			return id
		}
	}
	sum := sha256.Sum224(raw)
	return hex.EncodeToString(sum[:])
}

func yearOf(date string) string {
	if m := yearPattern.FindStringSubmatch(date); m != nil {
		return m[1]
	}
	return NoYear
}
