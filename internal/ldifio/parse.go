package ldifio

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ldaptools/dirsplit/internal/dn"
	"github.com/ldaptools/dirsplit/internal/entry"
)

// parseRecord turns a rawRecord into a ParsedEntry. The first non-blank
// line must be "dn:" or "dn::" (base64); every following "attr: value" or
// "attr:: base64value" line is folded into Attrs, keyed by lower-cased
// attribute name, preserving entry order of values for the same
// attribute.
func parseRecord(rec rawRecord, seq uint64) (entry.ParsedEntry, error) {
	if len(rec.lines) == 0 {
		return entry.ParsedEntry{}, fmt.Errorf("empty record")
	}

	rawDN, err := parseDNLine(rec.lines[0])
	if err != nil {
		return entry.ParsedEntry{}, err
	}

	attrs := make(map[string][]string)
	for _, line := range rec.lines[1:] {
		attr, value, err := parseAttrLine(line)
		if err != nil {
			return entry.ParsedEntry{}, err
		}
		key := strings.ToLower(attr)
		attrs[key] = append(attrs[key], value)
	}

	return entry.ParsedEntry{
		DN:    dn.Parse(rawDN),
		RawDN: rawDN,
		Attrs: attrs,
		Lines: rec.lines,
		Seq:   seq,
	}, nil
}

func parseDNLine(line string) (string, error) {
	switch {
	case strings.HasPrefix(line, "dn::"):
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line[len("dn::"):]))
		if err != nil {
			return "", fmt.Errorf("malformed base64 dn:: line: %w", err)
		}
		return string(decoded), nil
	case strings.HasPrefix(line, "dn:"):
		return strings.TrimPrefix(strings.TrimPrefix(line, "dn:"), " "), nil
	default:
		return "", fmt.Errorf("record does not begin with a dn: line: %q", line)
	}
}

func parseAttrLine(line string) (attr, value string, err error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("malformed attribute line, missing ':': %q", line)
	}
	attr = line[:idx]
	rest := line[idx+1:]

	if strings.HasPrefix(rest, ":") {
		decoded, derr := base64.StdEncoding.DecodeString(strings.TrimSpace(rest[1:]))
		if derr != nil {
			return "", "", fmt.Errorf("malformed base64 value for attribute %q: %w", attr, derr)
		}
		return attr, string(decoded), nil
	}

	return attr, strings.TrimPrefix(rest, " "), nil
}
