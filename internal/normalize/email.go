package normalize

import (
	"regexp"
	"strings"
)

// emailRegex is the conventional address-shape check used across this
// codebase to decide whether an address is well-formed enough to process.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Valid reports whether raw looks like an email address. Inputs failing
// this check are dropped from a submission silently (spec.md §4.1).
func Valid(raw string) bool {
	return emailRegex.MatchString(strings.TrimSpace(raw))
}

// Strip produces the canonical cache key for an address: lowercase, with
// any "+tag" local-part suffix removed. Dots are never stripped — mail
// providers are not uniform about dot-equivalence, so collapsing them would
// merge addresses that are in fact distinct mailboxes on some providers.
//
// Strip is idempotent: Strip(Strip(x)) == Strip(x).
func Strip(raw string) string {
	addr := strings.ToLower(strings.TrimSpace(raw))
	at := strings.IndexByte(addr, '@')
	if at < 0 {
		return addr
	}
	local, domain := addr[:at], addr[at+1:]
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}
	return local + "@" + domain
}

// Nominal trims a raw address for storage as the as-submitted form on a
// BatchEmailAssociation. It does not strip the plus-suffix — that is only
// applied to the cache key.
func Nominal(raw string) string {
	return strings.TrimSpace(raw)
}
