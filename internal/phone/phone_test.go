package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(555) 123-4567", "+5551234567"},
		{"555-123-4567", "+5551234567"},
		{"+1 555 123 4567", "+15551234567"},
		{"  5551234567  ", "+5551234567"},
		{"", ""},
		{"no digits here", ""},
		{"+", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeEquivalentFormats(t *testing.T) {
	a := Normalize("(555) 123-4567")
	b := Normalize("555-123-4567")
	assert.Equal(t, a, b)
	assert.Equal(t, "+5551234567", a)
}
