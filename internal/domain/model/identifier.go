package model

import "strings"

// NormalizeIdentifier reduces a target handle to its canonical form, so
// "@bob" and " bob" share one session key and one status record.
func NormalizeIdentifier(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
}
