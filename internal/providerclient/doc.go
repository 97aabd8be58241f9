// Package providerclient is the HTTP client for the external email
// verification provider (spec.md §6). It authenticates with OAuth2
// client-credentials and retries transient failures through
// internal/pkg/httpretry, which already implements spec.md §7's retry
// taxonomy (retry 429/5xx, never retry 402/4xx).
package providerclient
