// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package protocol reads HTTP/1.1 requests from a raw byte stream and
// serializes responses back onto it.
//
// Only the request line and the User-Agent and Content-Length headers are
// understood. Bodies are framed solely by Content-Length; there is no chunked
// transfer encoding, keep-alive or pipelining.
package protocol
