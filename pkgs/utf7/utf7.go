// Package utf7 implements the modified UTF-7 encoding used for IMAP mailbox
// names (RFC 3501, section 5.1.3), plus the rule that turns a decoded mailbox
// name into a single local directory name.
package utf7

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	shift   = '&'
	unshift = '-'
)

// ErrMalformed is returned by Decode for input that is not valid modified
// UTF-7.
var ErrMalformed = errors.New("utf7: malformed mailbox name")

var b64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,").
	WithPadding(base64.NoPadding).
	Strict()

func printable(r rune) bool {
	return r >= 0x20 && r <= 0x7e
}

// Encode converts s to modified UTF-7.
func Encode(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	var pending []rune
	flush := func() {
		if len(pending) == 0 {
			return
		}
		units := utf16.Encode(pending)
		buf := make([]byte, 0, len(units)*2)
		for _, u := range units {
			buf = append(buf, byte(u>>8), byte(u))
		}
		sb.WriteByte(shift)
		sb.WriteString(b64.EncodeToString(buf))
		sb.WriteByte(unshift)
		pending = pending[:0]
	}

	for _, r := range s {
		if !printable(r) {
			pending = append(pending, r)
			continue
		}
		flush()
		if r == shift {
			sb.WriteString("&-")
			continue
		}
		sb.WriteRune(r)
	}
	flush()

	return sb.String()
}

// Decode converts a modified UTF-7 mailbox name back to UTF-8.
func Decode(s string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		if c != shift {
			if !printable(rune(c)) {
				return "", fmt.Errorf("%w: byte 0x%02x at offset %d", ErrMalformed, c, i)
			}
			sb.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(s[i+1:], unshift)
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated shift at offset %d", ErrMalformed, i)
		}
		chunk := s[i+1 : i+1+end]
		i += end + 2

		if chunk == "" {
			sb.WriteByte(shift)
			continue
		}

		text, err := decodeChunk(chunk)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
	}

	return sb.String(), nil
}

// MustDecode is like Decode but panics on malformed input.
func MustDecode(s string) string {
	out, err := Decode(s)
	if err != nil {
		panic(err)
	}
	return out
}

func decodeChunk(chunk string) (string, error) {
	buf, err := b64.DecodeString(chunk)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformed, chunk, err)
	}
	if len(buf)%2 != 0 {
		return "", fmt.Errorf("%w: %q: odd byte count", ErrMalformed, chunk)
	}

	units := make([]uint16, 0, len(buf)/2)
	for j := 0; j < len(buf); j += 2 {
		units = append(units, uint16(buf[j])<<8|uint16(buf[j+1]))
	}

	runes := utf16.Decode(units)
	for k, r := range runes {
		if r == utf8.RuneError && !isReplacementUnit(units, k) {
			return "", fmt.Errorf("%w: %q: invalid surrogate", ErrMalformed, chunk)
		}
	}
	return string(runes), nil
}

// isReplacementUnit reports whether an U+FFFD at rune index k was literally
// encoded rather than produced by utf16.Decode for a lone surrogate.
func isReplacementUnit(units []uint16, k int) bool {
	idx := 0
	for i := 0; i < len(units); i++ {
		u := units[i]
		if utf16.IsSurrogate(rune(u)) && i+1 < len(units) &&
			utf16.DecodeRune(rune(u), rune(units[i+1])) != utf8.RuneError {
			i++
		}
		if idx == k {
			return u == utf8.RuneError
		}
		idx++
	}
	return false
}

// LocalName maps a decoded mailbox name to a single path element. The
// hierarchy delimiter becomes ".", double quotes are dropped and any path
// separator left over is replaced with "_".
func LocalName(name, delim string) string {
	if delim != "" && delim != "." {
		name = strings.ReplaceAll(name, delim, ".")
	}
	name = strings.ReplaceAll(name, `"`, "")
	name = strings.NewReplacer("/", "_", `\`, "_", "\x00", "").Replace(name)
	name = strings.TrimSpace(name)

	switch name {
	case "", ".", "..":
		return "_"
	}
	return name
}
