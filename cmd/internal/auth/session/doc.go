// Package session implements Chord's opaque-token session store.
//
// Tokens are random strings handed to clients at login; the server keeps
// only a hash. The realtime gateway and the HTTP API both authenticate by
// resolving a presented token through the Resolver interface, which is the
// single authorization boundary at connection/request time.
package session
