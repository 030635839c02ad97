// Package dn implements distinguished-name parsing, canonicalization, and
// ancestry tests. It is the one piece of the splitter every routing
// strategy depends on: the canonical RDN string it produces is the parent
// map's key, so its stability across process runs is a correctness
// requirement, not a cosmetic one.
package dn

import (
	"sort"
	"strings"
)

// AVA is a single attribute-value assertion within an RDN.
type AVA struct {
	Attribute string
	Value     string
}

// RDN is a relative distinguished name: a set of attribute-value
// assertions joined by '+'. Most RDNs carry a single AVA; multi-valued
// RDNs are rare but legal LDIF.
type RDN struct {
	AVAs []AVA
}

// DN is an ordered sequence of RDNs, most-specific component first, the
// same ordering LDIF text uses.
type DN struct {
	RDNs []RDN
}

// Parse splits LDIF DN text into components. It does not attempt full
// RFC 4514 escaping support beyond what LDIF export tools actually emit:
// commas and pluses separate components, backslash escapes the next rune.
func Parse(text string) DN {
	var rdns []RDN
	for _, rdnText := range splitUnescaped(text, ',') {
		rdnText = strings.TrimSpace(rdnText)
		if rdnText == "" {
			continue
		}
		var avas []AVA
		for _, avaText := range splitUnescaped(rdnText, '+') {
			avas = append(avas, parseAVA(avaText))
		}
		rdns = append(rdns, RDN{AVAs: avas})
	}
	return DN{RDNs: rdns}
}

func parseAVA(text string) AVA {
	idx := strings.IndexByte(text, '=')
	if idx < 0 {
		return AVA{Attribute: "", Value: strings.TrimSpace(text)}
	}
	return AVA{
		Attribute: strings.TrimSpace(text[:idx]),
		Value:     strings.TrimSpace(text[idx+1:]),
	}
}

// splitUnescaped splits on sep, honoring backslash escapes so that
// "cn=Smith\, John,dc=example,dc=com" keeps the escaped comma intact.
func splitUnescaped(text string, sep byte) []string {
	var parts []string
	start := 0
	escaped := false
	for i := 0; i < len(text); i++ {
		switch {
		case escaped:
			escaped = false
		case text[i] == '\\':
			escaped = true
		case text[i] == sep:
			parts = append(parts, text[start:i])
			start = i + 1
		}
	}
	parts = append(parts, text[start:])
	return parts
}

// NormalizeValue applies the default attribute-equality rule from the
// data model: case-insensitive comparison of ASCII text with whitespace
// runs collapsed. Schema-driven matching rules, when available, are
// applied by the caller before values reach here (see internal/schema).
func NormalizeValue(v string) string {
	fields := strings.Fields(v)
	return strings.ToLower(strings.Join(fields, " "))
}

func normalizeValue(v string) string { return NormalizeValue(v) }

// canonicalRDN renders an RDN in a form stable across runs: each AVA as
// "attr=value" with the attribute name lower-cased and the value
// normalized, those strings sorted, joined with '+'.
func canonicalRDN(r RDN) string {
	parts := make([]string, len(r.AVAs))
	for i, ava := range r.AVAs {
		parts[i] = strings.ToLower(strings.TrimSpace(ava.Attribute)) + "=" + normalizeValue(ava.Value)
	}
	sort.Strings(parts)
	return strings.Join(parts, "+")
}

// CanonicalRDN exports canonicalRDN for routing strategies (internal/router)
// that hash the RDN directly below the split base.
func CanonicalRDN(r RDN) string { return canonicalRDN(r) }

// Canonical renders the DN as a stable string: canonical RDNs joined by
// ',', most-specific first. Equal DNs, per the data model's equality
// rule, always render identically.
func Canonical(d DN) string {
	parts := make([]string, len(d.RDNs))
	for i, r := range d.RDNs {
		parts[i] = canonicalRDN(r)
	}
	return strings.Join(parts, ",")
}

// Equal reports whether a and b are the same DN under the data model's
// normalization rule.
func Equal(a, b DN) bool {
	return Canonical(a) == Canonical(b)
}

// IsBelow reports whether child is a strict descendant of ancestor: child
// has ancestor as a suffix of its RDN sequence and is strictly longer.
func IsBelow(child, ancestor DN) bool {
	if len(child.RDNs) <= len(ancestor.RDNs) {
		return false
	}
	offset := len(child.RDNs) - len(ancestor.RDNs)
	for i, r := range ancestor.RDNs {
		if canonicalRDN(child.RDNs[offset+i]) != canonicalRDN(r) {
			return false
		}
	}
	return true
}

// RelativeComponent returns the RDN immediately below base in dn, and
// true, when dn is strictly below base. It returns the zero RDN and false
// otherwise (dn equals base, is above it, or is unrelated).
func RelativeComponent(d, base DN) (RDN, bool) {
	if !IsBelow(d, base) {
		return RDN{}, false
	}
	offset := len(d.RDNs) - len(base.RDNs) - 1
	return d.RDNs[offset], true
}

// Depth returns how many RDNs separate dn from base: 0 if dn equals base,
// 1 if dn is a direct child, and so on. The second return is false when
// dn is not base or a descendant of base.
func Depth(d, base DN) (int, bool) {
	if Equal(d, base) {
		return 0, true
	}
	if !IsBelow(d, base) {
		return 0, false
	}
	return len(d.RDNs) - len(base.RDNs), true
}

// Parent returns the DN with its leading (most-specific) RDN removed, and
// true. It returns the zero DN and false for a DN with no RDNs.
func Parent(d DN) (DN, bool) {
	if len(d.RDNs) == 0 {
		return DN{}, false
	}
	return DN{RDNs: d.RDNs[1:]}, true
}

// AncestorOneBelowBase returns the ancestor of dn that sits exactly one
// level below base, used by the assumeFlatDIT fallback. It returns false
// when dn is not strictly below base.
func AncestorOneBelowBase(d, base DN) (DN, bool) {
	depth, ok := Depth(d, base)
	if !ok || depth < 1 {
		return DN{}, false
	}
	offset := len(d.RDNs) - len(base.RDNs) - 1
	return DN{RDNs: d.RDNs[offset:]}, true
}

// String renders the DN in its (non-canonical, original-case) LDIF text
// form, attribute names as given, values as given, joined with ','.
func (d DN) String() string {
	parts := make([]string, len(d.RDNs))
	for i, r := range d.RDNs {
		avaParts := make([]string, len(r.AVAs))
		for j, ava := range r.AVAs {
			avaParts[j] = ava.Attribute + "=" + ava.Value
		}
		parts[i] = strings.Join(avaParts, "+")
	}
	return strings.Join(parts, ",")
}
