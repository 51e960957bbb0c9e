package downloader

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeName folds text into camel case: the input is split on
// whitespace, the first word is lower-cased, every following word gets an
// upper-case first letter and a lower-case remainder, and the words are
// joined with no separator.
//
//	NormalizeName("My Photos")    == "myPhotos"
//	NormalizeName("IMG 0001.JPG") == "img0001.jpg"
//	NormalizeName("2024-03")      == "2024-03"
//
// An empty or blank input yields "".
func NormalizeName(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		b.WriteString(capitalize(w))
	}
	return b.String()
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return strings.ToLower(word)
	}
	return string(unicode.ToTitle(r)) + strings.ToLower(word[size:])
}

// safeFileName applies NormalizeName and rejects results that would
// escape the destination folder.
func safeFileName(name string) (string, bool) {
	n := NormalizeName(name)
	n = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, n)
	switch n {
	case "", ".", "..":
		return "", false
	}
	return n, true
}
