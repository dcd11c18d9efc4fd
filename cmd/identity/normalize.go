package identity

import (
	"regexp"
	"strings"
)

var usernameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{2,31}$`)

// NormalizeUsername performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case. Additional rules (unicode
// confusables) can be added later behind a versioned policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidUsername reports whether a normalized username is acceptable:
// 3-32 chars, lowercase alphanumerics plus _ . -, starting alphanumeric.
func ValidUsername(s string) bool {
	return usernameRE.MatchString(s)
}
