// Package bridge exposes a running pipeline and gallery over a small local
// HTTP API so a separate presentation layer can drive them.
//
// Long-running stage transitions are started in the background and answered
// with 202 Accepted; clients poll GET /api/state for progress. A second
// transition while one is in flight is refused with 409 Conflict. When a
// bridge token is configured every request must carry it as a bearer token.
package bridge
