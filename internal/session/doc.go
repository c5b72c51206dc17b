// Package session holds the authenticated identity for the current OS
// session.
//
// Manager exchanges credentials with the auth service, persists the result
// through a Store, and supplies the bearer token to every other outbound
// request as a transport.TokenSource. FileStore keeps the identity in a
// session-scoped JSON file guarded by an advisory file lock so concurrent
// CLI invocations never interleave writes.
package session
