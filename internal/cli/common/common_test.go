package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"web", "web"},
		{"MyApp", "my-app"},
		{"my_worker", "my-worker"},
		{"  padded  ", "padded"},
		{"already-kebab", "already-kebab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestParseKeyValues(t *testing.T) {
	values, err := ParseKeyValues([]string{"A=1", "B=x=y", "C="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "C": ""}, values)
}

func TestParseKeyValuesEmpty(t *testing.T) {
	values, err := ParseKeyValues(nil)
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestParseKeyValuesInvalid(t *testing.T) {
	_, err := ParseKeyValues([]string{"no-separator"})
	assert.Error(t, err)

	_, err = ParseKeyValues([]string{"=value"})
	assert.Error(t, err)
}
