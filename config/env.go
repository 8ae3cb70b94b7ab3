package config

import (
	"os"
	"strings"
)

// ExpandEnvWithDefaults replaces ${VAR} and ${VAR:-default} with values
// from the environment. An unset or empty VAR takes the default.
func ExpandEnvWithDefaults(s string) string {
	return os.Expand(s, func(ref string) string {
		name, def, hasDefault := strings.Cut(ref, ":-")
		if v := os.Getenv(name); v != "" || !hasDefault {
			return v
		}
		return def
	})
}
