// Package site provides the authenticated session against the tracker
// site: submitting newly created torrents and reading their promotion
// classification at admission time.
//
// The session cookie is explicit client state, refreshed on expiry when
// auto-login is enabled, never hidden global state. Auth failures surface
// as ErrAuthExpired so callers can distinguish them from connectivity
// problems (ErrUnreachable).
package site
