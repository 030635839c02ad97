// Package schema loads attribute equality-matching rules from LDAP
// schema LDIF files for the filter routing strategy (spec §4.B.4, §9
// "schema optionality"). Every other strategy works without a schema,
// degrading to case-insensitive ASCII equality (spec §9). Its rules are
// evaluated by internal/filterexpr, carried by the filter strategy in
// internal/router, and loaded by internal/config.
package schema

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ldaptools/dirsplit/internal/dn"
)

// SchemaError reports a schema file discovery or parse failure. It
// prevents the run from starting (spec §7).
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string { return "schema: " + e.Reason }

// EqualityRules records, per attribute, whether values must compare with
// exact (case-sensitive) equality. Attributes absent from the map use
// the default case-insensitive, whitespace-collapsed rule (spec §3).
// A nil *EqualityRules behaves exactly like an empty one: every lookup
// uses the default rule, which is what the non-filter strategies get
// without ever loading a schema.
type EqualityRules struct {
	mu        sync.RWMutex
	caseExact map[string]bool
}

// NewEqualityRules returns an empty rule set: every attribute uses the
// default case-insensitive equality rule.
func NewEqualityRules() *EqualityRules {
	return &EqualityRules{caseExact: make(map[string]bool)}
}

func (r *EqualityRules) markCaseExact(attr string) {
	r.mu.Lock()
	r.caseExact[strings.ToLower(attr)] = true
	r.mu.Unlock()
}

func (r *EqualityRules) isCaseExact(attr string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caseExact[strings.ToLower(attr)]
}

// Equal reports whether a and b are equal under attr's matching rule.
func (r *EqualityRules) Equal(attr, a, b string) bool {
	if r.isCaseExact(attr) {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return dn.NormalizeValue(a) == dn.NormalizeValue(b)
}

// Substring reports whether value matches a filter substring pattern
// (which may contain '*' wildcards at the start, end, or middle) under
// attr's matching rule.
func (r *EqualityRules) Substring(attr, value, pattern string) bool {
	v, p := value, pattern
	if !r.isCaseExact(attr) {
		v = dn.NormalizeValue(value)
		p = dn.NormalizeValue(pattern)
	}
	return matchSubstring(v, p)
}

func matchSubstring(value, pattern string) bool {
	segments := strings.Split(pattern, "*")
	anchorStart := !strings.HasPrefix(pattern, "*")
	anchorEnd := !strings.HasSuffix(pattern, "*")

	pos := 0
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if i == len(segments)-1 && anchorEnd {
			if i == 0 {
				return value == seg
			}
			return strings.HasSuffix(value[pos:], seg)
		}
		idx := strings.Index(value[pos:], seg)
		if idx < 0 {
			return false
		}
		if i == 0 && anchorStart && idx != 0 {
			return false
		}
		pos += idx + len(seg)
	}
	return true
}

var attributeTypesLine = regexp.MustCompile(`(?i)^attributetypes:\s*(.*)$`)
var nameToken = regexp.MustCompile(`(?i)NAME\s+'([^']+)'`)
var equalityToken = regexp.MustCompile(`(?i)EQUALITY\s+(\S+)`)

// Load discovers schema LDIF files among paths (each either a single
// file or a directory of *.ldif files, sorted by name within a
// directory) and parses them concurrently, merging the equality-rule
// observations into one EqualityRules.
//
// Schema files are independent of one another and their parse order has
// no bearing on the resulting rule set, so — unlike the router, whose
// correctness hinges on strict source ordering — this is the one place
// a fan-in-style "merge N independent results, no sequencing needed"
// shape is the right one: each file is parsed on its own goroutine
// directly into the shared, mutex-guarded EqualityRules.
func Load(paths []string) (*EqualityRules, error) {
	files, err := discoverFiles(paths)
	if err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}
	if len(files) == 0 {
		return nil, &SchemaError{Reason: "no schema files found"}
	}

	rules := NewEqualityRules()
	errCh := make(chan error, len(files))
	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			errCh <- parseFileInto(path, rules)
		}(f)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return nil, &SchemaError{Reason: err.Error()}
		}
	}
	return rules, nil
}

func discoverFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("schema path %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.ldif"))
		if err != nil {
			return nil, fmt.Errorf("schema path %s: %w", p, err)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}

func parseFileInto(path string, rules *EqualityRules) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		m := attributeTypesLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		def := m[1]
		name := ""
		if nm := nameToken.FindStringSubmatch(def); nm != nil {
			name = nm[1]
		}
		if name == "" {
			continue
		}
		if eq := equalityToken.FindStringSubmatch(def); eq != nil {
			if strings.Contains(strings.ToLower(eq[1]), "caseexact") {
				rules.markCaseExact(name)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
