package captcha

import "strings"

// confusables maps characters the OCR engine commonly misreads for
// digits onto the digit they almost always actually are in these
// challenge images.
var confusables = map[rune]rune{
	'O': '0', 'o': '0', 'D': '0',
	'l': '1', 'I': '1', 'i': '1', '|': '1',
	'Z': '2', 'z': '2',
	'A': '4',
	'S': '5', 's': '5',
	'G': '6', 'b': '6',
	'T': '7', 't': '7',
	'B': '8',
	'g': '9', 'q': '9',
}

// Normalize turns a raw OCR string into a digit-only candidate code:
// whitespace is stripped, confusable letters are substituted, and any
// remaining non-digit runes are dropped. Applying Normalize to its own
// output is a no-op.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if d, ok := confusables[r]; ok {
			r = d
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
