// Package main hosts the reelcraft CLI entrypoint and command graph.
//
// The Cobra command tree is the composition root: it resolves configuration,
// builds the transport clients, session manager, locator resolver and retry
// executor once per invocation, and hands them to the pipeline, gallery and
// bridge packages. Subcommands only translate flags into calls on those
// components and render the results.
//
// Keep this package lean: add behaviour to the internal packages first, then
// surface it through a command or flag here.
package main
