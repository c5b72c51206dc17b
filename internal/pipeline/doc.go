// Package pipeline sequences the video generation workflow.
//
// A Machine owns the PipelineState for one job and exposes one method per
// stage transition (content, scripts, images, voices, assembly, music,
// captions, final fetch) plus navigation and seed setters. Transitions run
// through a single task slot: while one is in flight every other transition
// or navigation fails with services.ErrBusy. Each transition either commits
// its normalized results and advances the step, or records a user-facing
// error and leaves the step unchanged so it can be re-invoked.
//
// Readers never touch the live state; Snapshot returns a deep copy.
// Observers receive an Event for every stage start, completion, and failure.
package pipeline
