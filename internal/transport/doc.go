// Package transport issues single requests against the generation and auth
// services.
//
// Client.Do injects the session credential, encodes JSON or multipart bodies,
// and translates every failure into a *Error whose Kind distinguishes an
// unreachable or misbehaving server from a well-formed application error. It
// holds no state beyond configuration and the TokenSource it reads.
package transport
