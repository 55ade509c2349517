package types

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exactly max", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		{"zero max", "hello", 0, ""},
		{"empty", "", 3, ""},
		{"hebrew cut counts characters", "שלום עולם", 4, "שלום"},
		{"mixed width", "goללמוד", 4, "goלל"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRunes(tt.in, tt.max))
		})
	}
}

func TestTruncateRunesNeverSplitsCharacters(t *testing.T) {
	topic := strings.Repeat("למ", 60)
	got := TruncateRunes(topic, 100)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 100, utf8.RuneCountInString(got))
}
