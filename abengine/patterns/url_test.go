package patterns_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracklab/abtest-go/abengine/patterns"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"https://www.Example.com/path/", "example.com/path"},
		{"example.com/path", "example.com/path"},
		{"http://example.com/", "example.com"},
		{"https://shop.example.com/Cart?id=1", "shop.example.com/cart?id=1"},
		{"www.example.com", "example.com"},
		{"https://example.com//", "example.com/"},
		{"ftp://example.com", "ftp://example.com"},
		{"", ""},
		{"not a url at all/", "not a url at all"},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			assert.Equal(t, c.expected, patterns.Normalize(c.input))
		})
	}
}

func TestNormalizeEquivalentForms(t *testing.T) {
	assert.Equal(t, patterns.Normalize("https://www.Example.com/path/"), patterns.Normalize("example.com/path"))
}

func TestSameScope(t *testing.T) {
	assert.True(t, patterns.SameScope("https://www.example.com/shop/item", "http://example.com/shop"))
	assert.True(t, patterns.SameScope("example.com", "https://example.com/deep/page"))
	assert.False(t, patterns.SameScope("https://other.com", "https://example.com"))
}

func TestWithinScope(t *testing.T) {
	assert.True(t, patterns.WithinScope("https://www.example.com/shop/item", "http://example.com/shop/"))
	assert.False(t, patterns.WithinScope("https://example.com", "https://example.com/shop"))
}
