// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// FileOption configures [YAMLFile].
type FileOption func(*fileOptions)

type fileOptions struct {
	fs afero.Fs
}

// FileSystem sets the filesystem the file is read from. The default is the
// OS filesystem.
func FileSystem(fs afero.Fs) FileOption {
	return func(fo *fileOptions) {
		fo.fs = fs
	}
}

// FileReadError is returned when a settings file exists but cannot be parsed.
type FileReadError struct {
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e FileReadError) Error() string {
	return fmt.Sprintf("failed to read config file %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e FileReadError) Unwrap() error {
	return e.Cause
}

// YAMLFile reads the YAML document at path into a key value map. The file is
// read on every call to Read, so edits are picked up by later reads. An empty
// path or a missing file is unset.
func YAMLFile(path string, opts ...FileOption) Reader[map[string]any] {
	fo := &fileOptions{
		fs: afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(fo)
	}

	return ReaderFunc[map[string]any](func(ctx context.Context) (Value[map[string]any], error) {
		if path == "" {
			return Value[map[string]any]{}, nil
		}

		v := viper.New()
		v.SetFs(fo.fs)
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		err := v.ReadInConfig()
		if errors.Is(err, fs.ErrNotExist) {
			return Value[map[string]any]{}, nil
		}
		if err != nil {
			return Value[map[string]any]{}, FileReadError{Path: path, Cause: err}
		}
		return ValueOf(v.AllSettings()), nil
	})
}

// DecodeError is returned by [Decode] when a key value map does not fit the
// target type.
type DecodeError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e DecodeError) Error() string {
	return fmt.Sprintf("failed to decode config: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DecodeError) Unwrap() error {
	return e.Cause
}

// Decode decodes a key value map into T using the `config` struct tag.
// Scalars are weakly typed, e.g. a YAML integer decodes into a string field.
func Decode[T any](r Reader[map[string]any]) Reader[T] {
	return Map(r, func(ctx context.Context, m map[string]any) (T, error) {
		var v T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "config",
			WeaklyTypedInput: true,
			Result:           &v,
		})
		if err != nil {
			return v, DecodeError{Cause: err}
		}
		if err := dec.Decode(m); err != nil {
			return v, DecodeError{Cause: err}
		}
		return v, nil
	})
}
