// Package videoapi is the typed client for the generation service.
//
// Each stage endpoint has a request struct mirroring the wire body and a
// result type produced by normalizing the response at this boundary. Shape
// variations the service is known to emit (flat or detailed image prompts, a
// list of voice files or a directory prefix) are decoded into tagged unions
// here so the pipeline only ever sees canonical values.
package videoapi
