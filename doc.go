// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package rawhttp provides the composition primitives used to assemble and run
// the rawhttp server process.
//
// The package is built around three abstractions:
//
//   - Builder[T]: constructs a component (settings, listener, server) with context support
//   - Runtime: a runnable component, e.g. the server's accept loop
//   - Runner[T]: builds and then runs a component
//
// # Composition
//
//   - Map: transform a builder's output with a function
//   - Bind: use one builder's output to pick the next builder
//
// The subpackages implement the server itself: protocol parses and
// serializes HTTP/1.1 messages, router maps requests to responses,
// connection drives a single accepted connection, shutdown turns OS
// signals into typed control messages and server runs the accept loop.
package rawhttp
