package database

import (
	"fmt"
	"sort"
	"strings"
)

// driverOptions merges the caller's Options over a driver's defaults and renders them as
// sorted key=value pairs joined by sep.
func (c Config) driverOptions(defaults map[string]string, sep string) string {
	merged := make(map[string]string, len(defaults)+len(c.Options))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range c.Options {
		if key = strings.TrimSpace(key); key != "" {
			merged[key] = value
		}
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, merged[key]))
	}
	return strings.Join(pairs, sep)
}

func orDefault[T comparable](value, fallback T) T {
	var zero T
	if value == zero {
		return fallback
	}
	return value
}
