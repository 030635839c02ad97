package config

import (
	"github.com/ldaptools/dirsplit/internal/router"
	"github.com/ldaptools/dirsplit/internal/schema"
)

// BuildStrategy loads the schema (if any) and constructs the routing
// strategy cfg selects (spec §4.F's strategy factory).
func BuildStrategy(cfg *Config) (router.Strategy, *schema.EqualityRules, error) {
	paths, err := resolveSchemaPaths(cfg)
	if err != nil {
		return nil, nil, err
	}

	eq := schema.NewEqualityRules()
	if len(paths) > 0 {
		eq, err = schema.Load(paths)
		if err != nil {
			return nil, nil, err
		}
	}

	switch cfg.Mode {
	case ModeHashRDN:
		s, err := router.NewHashRDN(cfg.NumSets)
		return s, eq, err
	case ModeHashAttribute:
		s, err := router.NewHashAttribute(router.HashAttributeConfig{
			NumShards:     cfg.NumSets,
			Attribute:     cfg.Attribute,
			UseAllValues:  cfg.UseAllValues,
			AssumeFlatDIT: cfg.AssumeFlatDIT,
		})
		return s, eq, err
	case ModeFewestEntries:
		s, err := router.NewFewestEntries(cfg.NumSets, cfg.AssumeFlatDIT)
		return s, eq, err
	case ModeFilter:
		s, err := router.NewFilter(router.FilterConfig{
			FilterText:    cfg.Filters,
			Equality:      eq,
			AssumeFlatDIT: cfg.AssumeFlatDIT,
		})
		return s, eq, err
	default:
		return nil, nil, &ConfigError{Reason: "unknown mode: " + string(cfg.Mode)}
	}
}
