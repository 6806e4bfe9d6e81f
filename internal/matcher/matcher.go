// Package matcher decides whether a domain is covered by a route rule pattern.
//
// Match kinds form a closed set: Exact, Suffix, Contains and Pattern. Compile
// maps the persisted match type string onto one of them; strings it does not
// recognise produce Never, which matches nothing.
package matcher

import (
	"regexp"
	"strings"
)

// Type is the persisted name of a match kind.
type Type string

// Match kinds understood by Compile.
const (
	TypeExact    Type = "exact"
	TypeSuffix   Type = "suffix"
	TypeContains Type = "contains"
	TypeRegex    Type = "regex"
)

// Types lists the known match kinds in display order.
var Types = []Type{TypeExact, TypeSuffix, TypeContains, TypeRegex}

// Valid reports whether t is one of the known match kinds.
func (t Type) Valid() bool {
	switch t {
	case TypeExact, TypeSuffix, TypeContains, TypeRegex:
		return true
	}
	return false
}

// Matcher tests a domain against one compiled pattern. Implementations are
// limited to the types in this package.
type Matcher interface {
	Match(domain string) bool
	Type() Type
	Pattern() string
	sealed()
}

// Compile lower-cases pattern and builds the Matcher for t.
func Compile(t Type, pattern string) Matcher {
	p := strings.ToLower(pattern)
	switch t {
	case TypeExact:
		return Exact{p}
	case TypeSuffix:
		return Suffix{p}
	case TypeContains:
		return Contains{p}
	case TypeRegex:
		return compilePattern(pattern)
	}
	return Never{kind: t, pattern: p}
}

// Match is a convenience for Compile(t, pattern).Match(domain).
func Match(t Type, pattern, domain string) bool {
	return Compile(t, pattern).Match(domain)
}

func normalize(domain string) string {
	return strings.ToLower(domain)
}

// Exact matches the domain equal to the pattern.
type Exact struct{ P string }

func (m Exact) Match(domain string) bool {
	d := normalize(domain)
	return m.P != "" && d != "" && d == m.P
}
func (Exact) Type() Type { return TypeExact }
func (m Exact) Pattern() string { return m.P }
func (Exact) sealed() {}

// Suffix matches the pattern itself and any subdomain of it, but not names
// that merely end in the same characters ("xexample.com" is not covered by
// "example.com").
type Suffix struct{ P string }

func (m Suffix) Match(domain string) bool {
	d := normalize(domain)
	if m.P == "" || d == "" {
		return false
	}
	return d == m.P || strings.HasSuffix(d, "."+m.P)
}
func (Suffix) Type() Type { return TypeSuffix }
func (m Suffix) Pattern() string { return m.P }
func (Suffix) sealed() {}

// Contains matches when the pattern occurs anywhere in the domain.
type Contains struct{ P string }

func (m Contains) Match(domain string) bool {
	d := normalize(domain)
	return m.P != "" && d != "" && strings.Contains(d, m.P)
}
func (Contains) Type() Type { return TypeContains }
func (m Contains) Pattern() string { return m.P }
func (Contains) sealed() {}

// Pattern is a regular expression anchored at the start of the domain. It
// does not have to consume the whole domain. A pattern that failed to compile
// has a nil Re and matches nothing.
type Pattern struct {
	Source string
	Re     *regexp.Regexp
}

func compilePattern(src string) Pattern {
	if src == "" {
		return Pattern{}
	}
	re, err := regexp.Compile(`(?i)^(?:` + src + `)`)
	if err != nil {
		return Pattern{Source: src}
	}
	return Pattern{Source: src, Re: re}
}

func (m Pattern) Match(domain string) bool {
	d := normalize(domain)
	if m.Re == nil || d == "" {
		return false
	}
	return m.Re.MatchString(d)
}
func (Pattern) Type() Type { return TypeRegex }
func (m Pattern) Pattern() string { return m.Source }
func (Pattern) sealed() {}

// Valid reports whether the expression compiled.
func (m Pattern) Valid() bool { return m.Re != nil }

// Never is produced for unknown match types.
type Never struct {
	kind    Type
	pattern string
}

func (Never) Match(string) bool { return false }
func (m Never) Type() Type { return m.kind }
func (m Never) Pattern() string { return m.pattern }
func (Never) sealed() {}
