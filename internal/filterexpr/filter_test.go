package filterexpr

import (
	"testing"

	"github.com/ldaptools/dirsplit/internal/schema"
)

func TestParseEquality(t *testing.T) {
	f, err := Parse("(uid=alice)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	eq := schema.NewEqualityRules()
	if !f.Matches(map[string][]string{"uid": {"alice"}}, eq) {
		t.Error("expected uid=alice to match")
	}
	if f.Matches(map[string][]string{"uid": {"bob"}}, eq) {
		t.Error("expected uid=bob not to match")
	}
}

func TestParsePresence(t *testing.T) {
	f, err := Parse("(mail=*)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	eq := schema.NewEqualityRules()
	if !f.Matches(map[string][]string{"mail": {"a@example.com"}}, eq) {
		t.Error("expected presence filter to match when attribute present")
	}
	if f.Matches(map[string][]string{}, eq) {
		t.Error("expected presence filter not to match when attribute absent")
	}
}

func TestParseAndOrNot(t *testing.T) {
	f, err := Parse("(&(objectClass=person)(!(uid=bob)))")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	eq := schema.NewEqualityRules()
	attrsAlice := map[string][]string{"objectclass": {"person"}, "uid": {"alice"}}
	attrsBob := map[string][]string{"objectclass": {"person"}, "uid": {"bob"}}
	if !f.Matches(attrsAlice, eq) {
		t.Error("expected alice to match")
	}
	if f.Matches(attrsBob, eq) {
		t.Error("expected bob to be excluded by the not-filter")
	}
}

func TestParseOr(t *testing.T) {
	f, err := Parse("(|(uid=alice)(uid=bob))")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	eq := schema.NewEqualityRules()
	if !f.Matches(map[string][]string{"uid": {"bob"}}, eq) {
		t.Error("expected bob to match the or-filter")
	}
	if f.Matches(map[string][]string{"uid": {"carol"}}, eq) {
		t.Error("expected carol not to match the or-filter")
	}
}

func TestCanonicalFormIgnoresWhitespace(t *testing.T) {
	a, err := Canonical("(uid=alice)")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Canonical("( uid = alice )")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected canonical forms to match regardless of whitespace: %q vs %q", a, b)
	}
}

func TestCanonicalFormDistinguishesDifferentFilters(t *testing.T) {
	a, _ := Canonical("(uid=alice)")
	b, _ := Canonical("(uid=bob)")
	if a == b {
		t.Error("expected different filters to have different canonical forms")
	}
}

func TestParseSubstring(t *testing.T) {
	f, err := Parse("(cn=Sm*)")
	if err != nil {
		t.Fatal(err)
	}
	eq := schema.NewEqualityRules()
	if !f.Matches(map[string][]string{"cn": {"Smith"}}, eq) {
		t.Error("expected Smith to match Sm*")
	}
}

func TestParseUnbalancedParens(t *testing.T) {
	if _, err := Parse("(uid=alice"); err == nil {
		t.Error("expected an error for unbalanced parens")
	}
}
