package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		kind    Type
		pattern string
		domain  string
		want    bool
	}{
		// Exact
		{"exact match", TypeExact, "api.example.com", "api.example.com", true},
		{"exact case insensitive", TypeExact, "API.Example.com", "api.EXAMPLE.com", true},
		{"exact subdomain", TypeExact, "example.com", "sub.example.com", false},
		{"exact other", TypeExact, "example.com", "example.org", false},

		// Suffix
		{"suffix self", TypeSuffix, "example.com", "example.com", true},
		{"suffix subdomain", TypeSuffix, "example.com", "a.b.example.com", true},
		{"suffix glued prefix", TypeSuffix, "example.com", "xexample.com", false},
		{"suffix parent", TypeSuffix, "sub.example.com", "example.com", false},
		{"suffix case", TypeSuffix, "Example.COM", "WWW.example.com", true},

		// Contains
		{"contains middle", TypeContains, "tube", "www.youtube.com", true},
		{"contains whole", TypeContains, "example.com", "example.com", true},
		{"contains absent", TypeContains, "tube", "example.com", false},

		// Regex
		{"regex anchored start", TypeRegex, `api\d+\.`, "api12.example.com", true},
		{"regex not anchored at end", TypeRegex, `www`, "www.example.com", true},
		{"regex not found at start", TypeRegex, `example`, "www.example.com", false},
		{"regex alternation anchored", TypeRegex, `foo|bar`, "xbar.com", false},
		{"regex uppercase escape kept", TypeRegex, `\D+\.com`, "abc.com", true},
		{"regex case insensitive", TypeRegex, `WWW\.`, "www.example.com", true},

		// Empty inputs
		{"empty pattern exact", TypeExact, "", "example.com", false},
		{"empty pattern suffix", TypeSuffix, "", "example.com", false},
		{"empty pattern contains", TypeContains, "", "example.com", false},
		{"empty pattern regex", TypeRegex, "", "example.com", false},
		{"empty domain", TypeSuffix, "example.com", "", false},

		// Unknown kind
		{"unknown type", Type("wildcard"), "example.com", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.kind, tt.pattern, tt.domain))
		})
	}
}

func TestSuffixProperties(t *testing.T) {
	for _, p := range []string{"example.com", "a.b.c", "localhost", "co.uk"} {
		m := Compile(TypeSuffix, p)
		assert.True(t, m.Match(p), p)
		assert.True(t, m.Match("x."+p), p)
		assert.False(t, m.Match("x"+p), p)
	}
}

func TestInvalidRegexNeverMatches(t *testing.T) {
	for _, p := range []string{"(unclosed", "[a-", "a{2,1}", `(?<=x)y`, "*oops"} {
		m := Compile(TypeRegex, p)
		pm, ok := m.(Pattern)
		if assert.True(t, ok) {
			assert.False(t, pm.Valid(), p)
		}
		assert.NotPanics(t, func() {
			for _, d := range []string{"", "oops", "*oops", "example.com", p} {
				assert.False(t, m.Match(d), "%s vs %s", p, d)
			}
		})
	}
}

func TestCompileKinds(t *testing.T) {
	assert.IsType(t, Exact{}, Compile(TypeExact, "a"))
	assert.IsType(t, Suffix{}, Compile(TypeSuffix, "a"))
	assert.IsType(t, Contains{}, Compile(TypeContains, "a"))
	assert.IsType(t, Pattern{}, Compile(TypeRegex, "a"))
	assert.IsType(t, Never{}, Compile(Type("typo"), "a"))

	m := Compile(TypeSuffix, "Example.com")
	assert.Equal(t, TypeSuffix, m.Type())
	assert.Equal(t, "example.com", m.Pattern())

	n := Compile(Type("typo"), "A")
	assert.Equal(t, Type("typo"), n.Type())
	assert.Equal(t, "a", n.Pattern())
}

func TestTypeValid(t *testing.T) {
	for _, k := range Types {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, Type("").Valid())
	assert.False(t, Type("glob").Valid())
}
