package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// symbols maps characters that do not decompose to an ASCII base letter.
var symbols = map[rune]string{
	'♀': "F",
	'♂': "M",
	'★': "star",
	'☆': "star",
	'δ': "delta",
	'Δ': "delta",
	'‘': "'",
	'’': "'",
	'“': `"`,
	'”': `"`,
	'–': "-",
	'—': "-",
	'…': "...",
	'Æ': "AE",
	'æ': "ae",
	'Œ': "OE",
	'œ': "oe",
	'ß': "ss",
	'Ø': "O",
	'ø': "o",
	'Ł': "L",
	'ł': "l",
	'×': "x",
}

// spelled symbols become their own word.
var spelled = map[rune]bool{'★': true, '☆': true, 'δ': true, 'Δ': true}

// ASCIIFold returns s with accents stripped and known symbols spelled out.
// Characters with no ASCII form are dropped.
func ASCIIFold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rep, ok := symbols[r]; ok {
			if spelled[r] && b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, b.String())
	if err != nil {
		folded = b.String()
	}

	out := make([]byte, 0, len(folded))
	for _, r := range folded {
		if r < unicode.MaxASCII {
			out = append(out, byte(r))
		}
	}
	return strings.Join(strings.Fields(string(out)), " ")
}

// IsASCII reports whether s needs no folding.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
