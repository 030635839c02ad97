// Package filterexpr implements the minimal LDAP filter parser and
// evaluator the filter routing strategy needs (spec §4.B.4): equality,
// presence, substring, and the and/or/not combinators, matched against an
// entry's attributes using the schema's (or the default) equality rule.
package filterexpr

import (
	"fmt"
	"strings"

	"github.com/ldaptools/dirsplit/internal/schema"
)

// Filter is a parsed LDAP filter expression.
type Filter interface {
	// Matches reports whether attrs (lower-cased attribute name -> values,
	// as produced by internal/ldifio) satisfies the filter under the
	// given equality rules.
	Matches(attrs map[string][]string, eq *schema.EqualityRules) bool
	// String renders the filter in a normalized, parenthesized form
	// suitable for canonical-form duplicate detection.
	String() string
}

// Canonical normalizes raw filter text for duplicate-by-canonical-form
// comparison (spec §4.F): parsed, then re-rendered, so that
// "(cn=Smith)" and "( cn = Smith )" compare equal but "(cn=Smith)" and
// "(cn=Jones)" do not.
func Canonical(text string) (string, error) {
	f, err := Parse(text)
	if err != nil {
		return "", err
	}
	return f.String(), nil
}

// Parse parses a single LDAP filter expression, e.g.
// "(&(objectClass=person)(uid=alice))".
func Parse(text string) (Filter, error) {
	p := &parser{input: strings.TrimSpace(text)}
	f, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("filterexpr: unexpected trailing text at %d in %q", p.pos, text)
	}
	return f, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseFilter() (Filter, error) {
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return nil, fmt.Errorf("filterexpr: expected '(' at %d in %q", p.pos, p.input)
	}
	p.pos++ // consume '('

	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("filterexpr: unexpected end of filter")
	}

	var f Filter
	var err error
	switch p.input[p.pos] {
	case '&':
		p.pos++
		f, err = p.parseSet(func(sub []Filter) Filter { return andFilter(sub) })
	case '|':
		p.pos++
		f, err = p.parseSet(func(sub []Filter) Filter { return orFilter(sub) })
	case '!':
		p.pos++
		var inner Filter
		inner, err = p.parseFilter()
		if err == nil {
			f = notFilter{inner}
		}
	default:
		f, err = p.parseSimple()
	}
	if err != nil {
		return nil, err
	}

	if p.pos >= len(p.input) || p.input[p.pos] != ')' {
		return nil, fmt.Errorf("filterexpr: expected ')' at %d in %q", p.pos, p.input)
	}
	p.pos++ // consume ')'
	return f, nil
}

func (p *parser) parseSet(build func([]Filter) Filter) (Filter, error) {
	var subs []Filter
	for p.pos < len(p.input) && p.input[p.pos] == '(' {
		f, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		subs = append(subs, f)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("filterexpr: expected at least one sub-filter at %d", p.pos)
	}
	return build(subs), nil
}

// parseSimple parses "attr=value", "attr=*", "attr=*value*", etc. up to
// (but not consuming) the closing ')'.
func (p *parser) parseSimple() (Filter, error) {
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != ')' && p.input[p.pos] != '=' {
		p.pos++
	}
	if p.pos >= len(p.input) || p.input[p.pos] != '=' {
		return nil, fmt.Errorf("filterexpr: expected '=' at %d in %q", p.pos, p.input)
	}
	attr := strings.TrimSpace(p.input[start:p.pos])
	p.pos++ // consume '='

	valStart := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != ')' {
		p.pos++
	}
	value := strings.TrimSpace(p.input[valStart:p.pos])

	if attr == "" {
		return nil, fmt.Errorf("filterexpr: empty attribute name near %d", start)
	}
	return newSimpleFilter(attr, value), nil
}

func newSimpleFilter(attr, value string) Filter {
	lowerAttr := strings.ToLower(attr)
	if value == "*" {
		return presenceFilter{attr: lowerAttr}
	}
	if strings.Contains(value, "*") {
		return substringFilter{attr: lowerAttr, pattern: value}
	}
	return equalityFilter{attr: lowerAttr, value: value}
}

// equalityFilter matches "(attr=value)".
type equalityFilter struct {
	attr  string
	value string
}

func (f equalityFilter) Matches(attrs map[string][]string, eq *schema.EqualityRules) bool {
	for _, v := range attrs[f.attr] {
		if eq.Equal(f.attr, v, f.value) {
			return true
		}
	}
	return false
}

func (f equalityFilter) String() string {
	return fmt.Sprintf("(%s=%s)", f.attr, f.value)
}

// presenceFilter matches "(attr=*)".
type presenceFilter struct {
	attr string
}

func (f presenceFilter) Matches(attrs map[string][]string, _ *schema.EqualityRules) bool {
	return len(attrs[f.attr]) > 0
}

func (f presenceFilter) String() string {
	return fmt.Sprintf("(%s=*)", f.attr)
}

// substringFilter matches "(attr=*val*)" / "(attr=val*)" / "(attr=*val)".
type substringFilter struct {
	attr    string
	pattern string
}

func (f substringFilter) Matches(attrs map[string][]string, eq *schema.EqualityRules) bool {
	for _, v := range attrs[f.attr] {
		if eq.Substring(f.attr, v, f.pattern) {
			return true
		}
	}
	return false
}

func (f substringFilter) String() string {
	return fmt.Sprintf("(%s=%s)", f.attr, f.pattern)
}

type andFilter []Filter

func (f andFilter) Matches(attrs map[string][]string, eq *schema.EqualityRules) bool {
	for _, sub := range f {
		if !sub.Matches(attrs, eq) {
			return false
		}
	}
	return true
}

func (f andFilter) String() string {
	var b strings.Builder
	b.WriteString("(&")
	for _, sub := range f {
		b.WriteString(sub.String())
	}
	b.WriteByte(')')
	return b.String()
}

type orFilter []Filter

func (f orFilter) Matches(attrs map[string][]string, eq *schema.EqualityRules) bool {
	for _, sub := range f {
		if sub.Matches(attrs, eq) {
			return true
		}
	}
	return false
}

func (f orFilter) String() string {
	var b strings.Builder
	b.WriteString("(|")
	for _, sub := range f {
		b.WriteString(sub.String())
	}
	b.WriteByte(')')
	return b.String()
}

type notFilter struct {
	inner Filter
}

func (f notFilter) Matches(attrs map[string][]string, eq *schema.EqualityRules) bool {
	return !f.inner.Matches(attrs, eq)
}

func (f notFilter) String() string {
	return "(!" + f.inner.String() + ")"
}
