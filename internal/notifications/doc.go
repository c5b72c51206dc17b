// Package notifications delivers pipeline and gallery events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event
// category can be switched off independently. Observer adapts a Service to
// pipeline.Observer, and GaveUpHook plugs it into the retry executor so
// rolled-back gallery mutations reach the user even when no UI is attached.
package notifications
