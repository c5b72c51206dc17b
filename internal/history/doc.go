// Package history keeps a local SQLite journal of pipeline runs.
//
// Each job is one row in jobs; every stage lifecycle event the pipeline
// emits is appended to stage_events. The Store implements
// pipeline.Observer so it can be attached to a Machine directly, and the
// CLI reads it back for the history command.
//
// The schema is embedded from schema.sql and versioned through the
// schema_version table. When the layout changes, update schema.sql and bump
// schemaVersion; older journals are rejected with ErrSchemaMismatch.
package history
