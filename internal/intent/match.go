package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher reports whether a normalized command selects a rule and,
// if so, the argument text that follows the keyword.
type Matcher func(cmd string) (rest string, ok bool)

// Normalize trims and lower-cases a raw command
func Normalize(cmd string) string {
	return strings.ToLower(strings.TrimSpace(cmd))
}

// Keywords matches when any of the words or phrases appears as a whole
// word. The earliest occurrence wins; the remainder is the text after it.
func Keywords(words ...string) Matcher {
	return func(cmd string) (string, bool) {
		best, bestLen := -1, 0
		for _, w := range words {
			if i := indexWord(cmd, w); i >= 0 && (best < 0 || i < best) {
				best, bestLen = i, len(w)
			}
		}
		if best < 0 {
			return "", false
		}
		return remainder(cmd[best+bestLen:]), true
	}
}

// Prefix matches when the command begins with the word
func Prefix(word string) Matcher {
	return func(cmd string) (string, bool) {
		if indexWord(cmd, word) != 0 {
			return "", false
		}
		return remainder(cmd[len(word):]), true
	}
}

// Always matches every command; the remainder is the whole command
func Always() Matcher {
	return func(cmd string) (string, bool) {
		return cmd, true
	}
}

func remainder(s string) string {
	return strings.TrimSpace(strings.TrimLeft(s, " \t:"))
}

// indexWord returns the byte offset of the first whole-word occurrence of w
func indexWord(s, w string) int {
	if w == "" {
		return -1
	}
	for start := 0; start <= len(s)-len(w); {
		j := strings.Index(s[start:], w)
		if j < 0 {
			return -1
		}
		i := start + j
		if boundaryBefore(s, i) && boundaryAfter(s, i+len(w)) {
			return i
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		start = i + size
	}
	return -1
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// splitContact splits "name: message" or "name message".
// A missing message is returned empty.
func splitContact(rest string) (string, string) {
	// A colon separates only when it ends the first word ("mom: hi", not "mom at 5:30")
	ci := strings.IndexByte(rest, ':')
	si := strings.IndexByte(rest, ' ')
	if ci >= 0 && (si < 0 || ci < si) {
		return strings.TrimSpace(rest[:ci]), strings.TrimSpace(rest[ci+1:])
	}
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) < 2 {
		return strings.TrimSpace(parts[0]), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
