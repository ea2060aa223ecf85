package downloader

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var blacklist = regexp.MustCompile(`(?i)\.(pdf|jpg|jpeg|png|gif|mp4|zip|rar|docx|xlsx|pptx|mp3)$`)

// Blacklisted reports whether rawURL points at a binary or media file
func Blacklisted(rawURL string) bool {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return blacklist.MatchString(u.Path)
	}
	return blacklist.MatchString(rawURL)
}

// Tokenize lowercases text and splits it on every non-letter
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// UniqueWords returns the distinct words, sorted
func UniqueWords(words []string) []string {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
