package index

import (
	"unicode"
	"unicode/utf8"
)

// Tokens returns the distinct identifiers in src in first-seen order. An
// identifier is a letter or underscore followed by letters, digits or
// underscores, at least MinTokenLen runes long.
func Tokens(src []byte) []string {
	seen := make(map[string]struct{})
	var out []string

	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := string(src[start:end])
		start = -1
		if utf8.RuneCountInString(tok) < MinTokenLen {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}

	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		switch {
		case r == '_' || unicode.IsLetter(r):
			if start < 0 {
				start = i
			}
		case unicode.IsDigit(r):
			// digits continue an identifier but never start one
		default:
			flush(i)
		}
		i += size
	}
	flush(len(src))
	return out
}
