// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides a functional approach to reading and composing configuration values.
//
// The package is built around [Reader], a source of a configuration value which
// may or may not be present. Readers compose with [Or], [Map], [Bind] and
// [Default] to express precedence and fallbacks.
//
// # Error Handling
//
// A reader distinguishes three outcomes: a set value, an unset value and an
// error. [Read] turns "unset" into [ErrValueNotSet]. [OrUnset] turns an error
// into "unset", which is how malformed optional values fall back to defaults.
package config
