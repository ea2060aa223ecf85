package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"lowercases", "Hello World", []string{"hello", "world"}},
		{"digits and punctuation split", "go1.22 is-out, now!", []string{"go", "is", "out", "now"}},
		{"unicode letters kept", "Pesquisa distribuída ÉTICA", []string{"pesquisa", "distribuída", "ética"}},
		{"no letters", "  \n\t 123 ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUniqueWords(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, UniqueWords([]string{"c", "a", "b", "a", "c"}))
	assert.Empty(t, UniqueWords(nil))
}

func TestBlacklisted(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com/report.pdf", true},
		{"http://example.com/IMAGE.JPG", true},
		{"http://example.com/song.mp3?download=1", true},
		{"http://example.com/archive.tar.zip", true},
		{"http://example.com/page.html", false},
		{"http://example.com/pdf", false},
		{"http://example.com/", false},
		{"http://example.com/docs.pdf.html", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, Blacklisted(tt.url))
		})
	}
}
