package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Apply(t *testing.T) {
	f := New([]string{"hate", "abuse", "bully"})

	testCases := []struct {
		name     string
		in       string
		expected string
	}{
		{
			name:     "clean text unchanged",
			in:       "hello there",
			expected: "hello there",
		},
		{
			name:     "single word masked with matching length",
			in:       "i hate mondays",
			expected: "i **** mondays",
		},
		{
			name:     "case insensitive",
			in:       "HATE and HaTe",
			expected: "**** and ****",
		},
		{
			name:     "multiple words",
			in:       "hate and abuse",
			expected: "**** and *****",
		},
		{
			name:     "whole words only",
			in:       "whatever hateful bullying",
			expected: "whatever hateful bullying",
		},
		{
			name:     "word at boundaries",
			in:       "hate!",
			expected: "****!",
		},
		{
			name:     "empty input",
			in:       "",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, f.Apply(tc.in))
		})
	}
}

func TestFilter_Contains(t *testing.T) {
	f := New([]string{"hate"})

	assert.True(t, f.Contains("so much hate"))
	assert.True(t, f.Contains("HATE"))
	assert.False(t, f.Contains("hateful"))
	assert.False(t, f.Contains("all good"))
}

func TestFilter_EmptyAndBlankWordsIgnored(t *testing.T) {
	f := New([]string{"", "  ", "hate"})

	assert.Equal(t, "**** it", f.Apply("hate it"))
	assert.Equal(t, "fine", f.Apply("fine"))
}

func TestFilter_RegexMetacharactersAreLiteral(t *testing.T) {
	f := New([]string{"a.b"})

	assert.Equal(t, "*** here", f.Apply("a.b here"))
	assert.Equal(t, "axb here", f.Apply("axb here"))
}
