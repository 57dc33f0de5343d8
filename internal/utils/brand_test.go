package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBrand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"known misspelling", "cheurolet", "Chevrolet"},
		{"known misspelling mixed case", "ChEuRoLeT", "Chevrolet"},
		{"known misspelling volkswagen", "Evolkswagen", "Volkswagen"},
		{"known misspelling renault", "renau", "Renault"},
		{"unknown brand lowercased", "toyota", "Toyota"},
		{"unknown brand uppercased", "TOYOTA", "Toyota"},
		{"already canonical", "Chevrolet", "Chevrolet"},
		{"multi-word keeps only first capital", "alfa romeo", "Alfa romeo"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBrand(tt.input))
		})
	}
}

func TestNormalizeBrandIdempotent(t *testing.T) {
	inputs := []string{"cheurolet", "Chevrolet", "TOYOTA", "alfa romeo", "renau", "x"}
	for _, in := range inputs {
		once := NormalizeBrand(in)
		assert.Equal(t, once, NormalizeBrand(once), "normalize(normalize(%q))", in)
	}
}
