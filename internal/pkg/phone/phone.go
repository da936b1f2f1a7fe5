package phone

import (
	"strings"
	"unicode"
)

// Normalize strips everything but digits and a leading plus sign.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Mask hides all but the country prefix and the last four digits,
// e.g. +79991234567 -> +7******4567.
func Mask(raw string) string {
	p := Normalize(raw)
	if len(p) <= 4 {
		return strings.Repeat("*", len(p))
	}
	head := 0
	if len(p) > 6 {
		head = 1
		if p[0] == '+' {
			head = 2
		}
	}
	return p[:head] + strings.Repeat("*", len(p)-head-4) + p[len(p)-4:]
}
