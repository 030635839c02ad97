// Package config parses and validates the CLI surface (spec §6) and
// builds the routing strategy it selects (spec §4.F), grounded on the
// only CLI the retrieval pack shows: streamz/examples/log-processing's
// flag.IntVar-based main, generalized here to the repeatable and
// paired-flag needs of a four-subcommand batch tool. Every long flag
// that has a short alias is registered a second time under it, both
// pointing at the same struct field, so "-l" and "--sourceLDIF" are
// interchangeable.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ldaptools/dirsplit/internal/filterexpr"
)

// Mode selects one of the four routing strategies (spec §4.B).
type Mode string

const (
	ModeHashRDN       Mode = "hash-on-rdn"
	ModeHashAttribute Mode = "hash-on-attribute"
	ModeFewestEntries Mode = "fewest-entries"
	ModeFilter        Mode = "filter"
)

// Config is the fully parsed and validated CLI surface.
type Config struct {
	Mode Mode

	SourceLDIF       []string
	SourceCompressed bool
	TargetBasePath   string
	CompressTarget   bool
	SplitBaseDN      string

	OutsideAllSets   bool
	OutsideDedicated bool

	SchemaPath []string
	NumThreads int

	// NumSets is required by hash-on-rdn, hash-on-attribute, and
	// fewest-entries; ignored (derived from len(Filters)) by filter.
	NumSets int

	// HashAttribute parameters (mode hash-on-attribute).
	Attribute    string
	UseAllValues bool

	// AssumeFlatDIT applies to every mode but hash-on-rdn, which always
	// behaves as flat (spec §4.B.1).
	AssumeFlatDIT bool

	// Filters is the ordered filter list (mode filter).
	Filters []string
}

// Parse builds a Config from args (normally os.Args[1:]). args[0] must
// be one of the four mode tags.
func Parse(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, &ConfigError{Reason: "missing subcommand: expected one of hash-on-rdn, hash-on-attribute, fewest-entries, filter"}
	}

	mode := Mode(args[0])
	switch mode {
	case ModeHashRDN, ModeHashAttribute, ModeFewestEntries, ModeFilter:
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown subcommand %q", args[0])}
	}

	cfg := &Config{Mode: mode, NumThreads: 1}
	fs := flag.NewFlagSet(string(mode), flag.ContinueOnError)

	registerGlobalFlags(fs, cfg)
	switch mode {
	case ModeHashRDN:
		registerNumSets(fs, cfg)
	case ModeHashAttribute:
		registerNumSets(fs, cfg)
		registerFlatDIT(fs, cfg)
		fs.StringVar(&cfg.Attribute, "a", "", "attribute to hash (short)")
		fs.StringVar(&cfg.Attribute, "attribute", "", "attribute to hash")
		fs.BoolVar(&cfg.UseAllValues, "useAllValues", false, "combine all attribute values instead of just the first")
	case ModeFewestEntries:
		registerNumSets(fs, cfg)
		registerFlatDIT(fs, cfg)
	case ModeFilter:
		registerFlatDIT(fs, cfg)
		fs.Var(repeatableFlag{&cfg.Filters}, "f", "LDAP filter (repeatable, short)")
		fs.Var(repeatableFlag{&cfg.Filters}, "filter", "LDAP filter (repeatable)")
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func registerGlobalFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Var(repeatableFlag{&cfg.SourceLDIF}, "l", "source LDIF file (repeatable, short)")
	fs.Var(repeatableFlag{&cfg.SourceLDIF}, "sourceLDIF", "source LDIF file (repeatable)")

	fs.BoolVar(&cfg.SourceCompressed, "C", false, "source is GZIP-compressed (short)")
	fs.BoolVar(&cfg.SourceCompressed, "sourceCompressed", false, "source is GZIP-compressed")

	fs.StringVar(&cfg.TargetBasePath, "o", "", "target LDIF base path (short)")
	fs.StringVar(&cfg.TargetBasePath, "targetLDIFBasePath", "", "target LDIF base path")

	fs.BoolVar(&cfg.CompressTarget, "c", false, "GZIP-compress shard output (short)")
	fs.BoolVar(&cfg.CompressTarget, "compressTarget", false, "GZIP-compress shard output")

	fs.StringVar(&cfg.SplitBaseDN, "b", "", "split base DN (short)")
	fs.StringVar(&cfg.SplitBaseDN, "splitBaseDN", "", "split base DN")

	fs.BoolVar(&cfg.OutsideAllSets, "addEntriesOutsideSplitBaseDNToAllSets", false, "route outside entries to every numbered shard")
	fs.BoolVar(&cfg.OutsideDedicated, "addEntriesOutsideSplitBaseDNToDedicatedSet", false, "route outside entries to the dedicated outside shard")

	fs.Var(repeatableFlag{&cfg.SchemaPath}, "schemaPath", "schema LDIF file or directory (repeatable)")

	fs.IntVar(&cfg.NumThreads, "t", 1, "worker thread count (short)")
	fs.IntVar(&cfg.NumThreads, "numThreads", 1, "worker thread count")
}

func registerNumSets(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.NumSets, "n", 0, "number of shards (short)")
	fs.IntVar(&cfg.NumSets, "numSets", 0, "number of shards")
}

func registerFlatDIT(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.AssumeFlatDIT, "assumeFlatDIT", false, "recompute against the one-level-below-base ancestor instead of the parent map")
}

// Validate enforces spec §4.F.
func Validate(cfg *Config) error {
	if len(cfg.SourceLDIF) == 0 {
		return &ConfigError{Reason: "at least one --sourceLDIF is required"}
	}
	if cfg.SplitBaseDN == "" {
		return &ConfigError{Reason: "--splitBaseDN is required"}
	}
	if len(cfg.SourceLDIF) > 1 && cfg.TargetBasePath == "" {
		return &ConfigError{Reason: "--targetLDIFBasePath is required when more than one --sourceLDIF is given"}
	}
	if cfg.NumThreads < 1 {
		return &ConfigError{Reason: "--numThreads must be >= 1"}
	}

	// Open Question, resolved per SPEC_FULL.md §9: both outside flags
	// present simultaneously is a ConfigError, not a silent precedence
	// rule.
	if cfg.OutsideAllSets && cfg.OutsideDedicated {
		return &ConfigError{Reason: "--addEntriesOutsideSplitBaseDNToAllSets and --addEntriesOutsideSplitBaseDNToDedicatedSet are mutually exclusive"}
	}

	switch cfg.Mode {
	case ModeHashRDN, ModeHashAttribute, ModeFewestEntries:
		if cfg.NumSets < 2 {
			return &ConfigError{Reason: "--numSets must be >= 2"}
		}
	case ModeFilter:
		if len(cfg.Filters) < 2 {
			return &ConfigError{Reason: "filter strategy requires at least 2 --filter values"}
		}
		if err := validateDistinctFilters(cfg.Filters); err != nil {
			return err
		}
	}

	if cfg.Mode == ModeHashAttribute && strings.TrimSpace(cfg.Attribute) == "" {
		return &ConfigError{Reason: "hash-on-attribute requires --attribute"}
	}

	return nil
}

func validateDistinctFilters(filters []string) error {
	canon := make(map[string]string, len(filters))
	for _, f := range filters {
		c, err := filterexpr.Canonical(f)
		if err != nil {
			return &ConfigError{Reason: fmt.Sprintf("invalid filter %q: %v", f, err)}
		}
		if prev, ok := canon[c]; ok {
			return &ConfigError{Reason: fmt.Sprintf("duplicate filters %q and %q", prev, f)}
		}
		canon[c] = f
	}
	return nil
}

// resolveSchemaPaths applies spec §6's environment fallback: when
// --schemaPath is unset, fall back to $INSTANCE_ROOT/config/schema/*.ldif
// sorted by name.
func resolveSchemaPaths(cfg *Config) ([]string, error) {
	if len(cfg.SchemaPath) > 0 {
		return cfg.SchemaPath, nil
	}
	root := os.Getenv("INSTANCE_ROOT")
	if root == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(root, "config", "schema", "*.ldif"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
