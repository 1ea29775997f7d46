package enrichment

import (
	"regexp"
	"strings"
)

var placeholderExpr = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Interpolate resolves {{name}} placeholders in text against fields.
//
// Unresolved placeholders become empty strings unless preserveUnresolved is set,
// in which case the original token is kept verbatim. Values are never re-scanned.
func Interpolate(text string, fields Fields, preserveUnresolved bool) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholderExpr.ReplaceAllStringFunc(text, func(token string) string {
		name := strings.TrimSpace(token[2 : len(token)-2])
		if value, ok := fields[name]; ok {
			return value
		}
		if preserveUnresolved {
			return token
		}
		return ""
	})
}

// Unresolved lists the distinct placeholder names in text that fields does not define,
// in order of first appearance.
func Unresolved(text string, fields Fields) []string {
	var missing []string
	seen := make(map[string]struct{})
	for _, match := range placeholderExpr.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(match[1])
		if _, ok := fields[name]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		missing = append(missing, name)
	}
	return missing
}
