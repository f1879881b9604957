package utils

import "strings"

// MergeEnv returns a copy of base with the given variables set, replacing existing entries of the same name.
// The process environment is not modified.
func MergeEnv(base []string, variables map[string]string) []string {
	merged := make([]string, 0, len(base)+len(variables))
	for _, entry := range base {
		name, _, _ := strings.Cut(entry, "=")
		if _, ok := variables[name]; ok {
			continue
		}
		merged = append(merged, entry)
	}
	for name, value := range variables {
		merged = append(merged, name+"="+value)
	}
	return merged
}
