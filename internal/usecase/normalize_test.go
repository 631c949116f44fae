package usecase

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"917229091491@c.us", "7229091491"},
		{"7229091491@c.us", "7229091491"},
		{"14155550123@s.whatsapp.net", "4155550123"},
		{"12345@c.us", "12345"},
		{"7229091491", "7229091491"},
		{"", ""},
		{"@c.us", ""},
		{"garbage-with-long-local@x", "long-local"},
		{"αβγδεζηθικλμ@c.us", "γδεζηθικλμ"},
	}
	for _, tc := range cases {
		got := Normalize(tc.raw)
		require.Equal(t, tc.want, got, "raw=%q", tc.raw)
		require.True(t, utf8.ValidString(got), "raw=%q", tc.raw)
	}
}
