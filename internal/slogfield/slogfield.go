// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield names the log attributes shared across the server.
package slogfield

import (
	"log/slog"
	"net"
	"time"
)

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Addr returns an slog.Attr for a network address. A nil address is logged
// as the empty string.
func Addr(key string, addr net.Addr) slog.Attr {
	if addr == nil {
		return slog.String(key, "")
	}
	return slog.String(key, addr.String())
}
