// Package config loads rawzeo.yaml and rawzeo.toml configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ErrRequiredEnv is returned for an unset ${VAR:?message} reference.
var ErrRequiredEnv = errors.New("required environment variable not set")

// envRef matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// ExpandEnv substitutes environment references in a config file body.
//
//	${VAR}          value of VAR, or empty
//	${VAR:-default} value of VAR, or default when unset or empty
//	${VAR:?message} value of VAR, or an error naming VAR and message
//
// Every missing required variable is reported, not only the first.
func ExpandEnv(input string) (string, error) {
	var missing []string
	out := envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		name, op, arg := m[1], m[2], m[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		switch op {
		case "-":
			return arg
		case "?":
			if arg = strings.TrimSpace(arg); arg != "" {
				missing = append(missing, name+" ("+arg+")")
			} else {
				missing = append(missing, name)
			}
		}
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrRequiredEnv, strings.Join(missing, ", "))
	}
	return out, nil
}
