package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  3/4  ", "3/4"},
		{"Three Quarters", "three quarters"},
		{"a\t b", "a b"},
		{"A  B   C", "a b c"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAnswer(tt.in))
	}
}

func TestNormalizedComparisonIsExact(t *testing.T) {
	// Near-misses stay wrong: normalization only strips case and spacing.
	assert.NotEqual(t, NormalizeAnswer("3/4"), NormalizeAnswer("0.75"))
	assert.NotEqual(t, NormalizeAnswer("cat"), NormalizeAnswer("cats"))
}
