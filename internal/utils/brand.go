package utils

import (
	"strings"
	"unicode"
)

// Known OCR misspellings of vehicle brands, keyed by lowercase form.
var brandCorrections = map[string]string{
	"cheurolet":   "Chevrolet",
	"evolkswagen": "Volkswagen",
	"renau":       "Renault",
}

// NormalizeBrand maps known misspellings to their canonical brand name.
// Anything not in the table is returned with the first letter upper-cased
// and the rest lowered. Purely cosmetic and idempotent; it is applied to
// output rows only, never to filter input.
func NormalizeBrand(brand string) string {
	if brand == "" {
		return ""
	}
	if correct, ok := brandCorrections[strings.ToLower(brand)]; ok {
		return correct
	}
	runes := []rune(strings.ToLower(brand))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
