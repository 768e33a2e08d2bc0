package profile

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize trims every field, collapses inner whitespace and brings text
// to Unicode NFC so that visually equal input is stored identically.
// Phone numbers keep a leading "+" and digits only.
func Normalize(f Fields) Fields {
	return Fields{
		Phone:              normalizePhone(f.Phone),
		Birthdate:          normalizeText(f.Birthdate),
		Country:            normalizeText(f.Country),
		RelationshipToBaby: normalizeText(f.RelationshipToBaby),
	}
}

func normalizeText(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(norm.NFKC.String(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
