// Package services defines shared utilities consumed by the pipeline, the
// session manager, and the gallery cache.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (transport, application, precondition, exhausted retries) and carry the
//     short message shown to the user.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
