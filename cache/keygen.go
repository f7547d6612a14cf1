package cache

import (
	"fmt"
	"sort"
	"strings"
)

// KeyFor builds a stable cache key from path + sorted params.
// Parameters with empty values are skipped, so a key does not depend on
// map iteration order or on whether an optional parameter was set to "".
func KeyFor(path string, params map[string]string) string {
	var parts []string
	for k, v := range params {
		if v == "" {
			continue
		}
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	cleanPath := strings.Trim(strings.ReplaceAll(path, "/", "_"), "_")

	if len(parts) > 0 {
		return fmt.Sprintf("%s__%s", cleanPath, strings.Join(parts, "__"))
	}

	return cleanPath
}
