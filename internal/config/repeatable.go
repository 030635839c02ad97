package config

import "strings"

// repeatableFlag implements flag.Value for options that may be given
// more than once on the command line (spec §6, "-l/--sourceLDIF FILE
// (repeatable)", "--schemaPath PATH (repeatable)").
type repeatableFlag struct {
	values *[]string
}

func (r repeatableFlag) String() string {
	if r.values == nil {
		return ""
	}
	return strings.Join(*r.values, ",")
}

func (r repeatableFlag) Set(v string) error {
	*r.values = append(*r.values, v)
	return nil
}
