package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEllipsis(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{name: "no limit", in: "blah blah blah", maxLen: 0, want: "blah blah blah"},
		{name: "fits exactly", in: "blah blah blah", maxLen: 14, want: "blah blah blah"},
		{name: "truncated", in: "blah blah blah!", maxLen: 14, want: "blah blah bla…"},
		{name: "trailing space trimmed", in: "blah blah blah ", maxLen: 14, want: "blah blah blah"},
		{name: "inner space kept", in: "blah blah bla h", maxLen: 14, want: "blah blah bla…"},
		{name: "multibyte runes", in: "éééé", maxLen: 2, want: "é…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ellipsis(tt.in, tt.maxLen))
		})
	}
}

func TestShortenModelName(t *testing.T) {
	assert.Equal(t, "G604", ShortenModelName("G604 Wireless Gaming Mouse"))
	assert.Equal(t, "AMX", ShortenModelName("Anywhere MX"))
	assert.Equal(t, "WH", ShortenModelName("WH-1000XM3"))
}
