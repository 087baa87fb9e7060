package net

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// MaxNameRunes caps a display name after normalization.
const MaxNameRunes = 20

// NormalizeName folds full-width forms, composes to NFC, drops control and
// format characters and collapses runs of spaces. It returns "" when nothing
// printable is left.
func NormalizeName(raw string) string {
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "")
	}
	s := norm.NFC.String(width.Fold.String(raw))

	var b strings.Builder
	b.Grow(len(s))
	runes := 0
	space := false
	for _, r := range s {
		if runes >= MaxNameRunes {
			break
		}
		switch {
		case unicode.IsSpace(r):
			if b.Len() > 0 {
				space = true
			}
			continue
		case !unicode.IsPrint(r):
			continue
		}
		if space {
			if runes+1 >= MaxNameRunes {
				break
			}
			b.WriteByte(' ')
			runes++
			space = false
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}
