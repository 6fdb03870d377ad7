package utf7

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vectors = []struct {
	decoded string
	encoded string
}{
	{"INBOX", "INBOX"},
	{"", ""},
	{"Tom & Jerry", "Tom &- Jerry"},
	{"Entwürfe", "Entw&APw-rfe"},
	{"~peter/mail/台北/日本語", "~peter/mail/&U,BTFw-/&ZeVnLIqe-"},
	{"[Gmail].Gesendet", "[Gmail].Gesendet"},
	{"Отправленные", "&BB4EQgQ,BEAEMAQyBDsENQQ9BD0ESwQ1-"},
	{"tab\there", "tab&AAk-here"},
	{"emoji 😀", "emoji &2D3eAA-"},
}

func TestEncode(t *testing.T) {
	for _, v := range vectors {
		assert.Equal(t, v.encoded, Encode(v.decoded), "Encode(%q)", v.decoded)
	}
}

func TestDecode(t *testing.T) {
	for _, v := range vectors {
		got, err := Decode(v.encoded)
		require.NoError(t, err, "Decode(%q)", v.encoded)
		assert.Equal(t, v.decoded, got)
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"a&b&&c",
		"ÄÖÜäöüß",
		"mixed ascii and 中文 and more ascii",
		"&",
		"-&-",
		" leading nbsp",
		"trailing ü",
		"replacement � char",
		"surrogates 𝄞𝄞 twice",
	}
	for _, in := range inputs {
		out, err := Decode(Encode(in))
		require.NoError(t, err, in)
		assert.Equal(t, in, out)
	}
}

func TestDecodeMalformed(t *testing.T) {
	bad := []string{
		"&ZeVnLIqe",   // no terminator
		"&A-",         // truncated base64
		"&AA-",        // odd byte count
		"caf\xc3\xa9", // raw 8-bit
		"&2D0-",       // lone high surrogate
		"&ZeV=nLIqe-", // padding is not part of the alphabet
		"tab\there",   // control character outside a shift
	}
	for _, in := range bad {
		_, err := Decode(in)
		assert.True(t, errors.Is(err, ErrMalformed), "Decode(%q) = %v", in, err)
	}
}

func TestMustDecodePanics(t *testing.T) {
	assert.Equal(t, "Entwürfe", MustDecode("Entw&APw-rfe"))
	assert.Panics(t, func() { MustDecode("&broken") })
}

func TestLocalName(t *testing.T) {
	cases := []struct {
		name, delim, want string
	}{
		{"INBOX", "/", "INBOX"},
		{"INBOX/Sub", "/", "INBOX.Sub"},
		{"INBOX.Sub", ".", "INBOX.Sub"},
		{`"[Gmail]/All Mail"`, "/", "[Gmail].All Mail"},
		{`a\b`, ".", "a_b"},
		{"a/b", ".", "a_b"},
		{"..", "/", "_"},
		{"", "", "_"},
		{"Entwürfe", "/", "Entwürfe"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, LocalName(c.name, c.delim), "LocalName(%q, %q)", c.name, c.delim)
	}
}
