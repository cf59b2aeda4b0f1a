// Package channel derives canonical whisper channel identifiers.
package channel

import "regexp"

// Separator joins the two participant ids. User ids must never contain it,
// which IsValidUserID enforces at the request boundary.
const Separator = "_"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.@-]*$`)

// Resolve returns the canonical channel id for an unordered pair of users.
// It is commutative: Resolve(a, b) == Resolve(b, a).
func Resolve(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}

// IsValidUserID reports whether s is a well-formed participant id. The
// allowed alphabet excludes the channel separator, so distinct pairs can
// never collide on a channel id.
func IsValidUserID(s string) bool {
	return userIDPattern.MatchString(s)
}
