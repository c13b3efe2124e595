// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package settings

import (
	"context"

	"github.com/z5labs/rawhttp/config"

	"github.com/spf13/afero"
)

// Provider loads a fresh [Settings] snapshot.
type Provider interface {
	Load(context.Context) (*Settings, error)
}

// ProviderFunc is a functional implementation of the [Provider] interface.
type ProviderFunc func(context.Context) (*Settings, error)

// Load implements the [Provider] interface.
func (f ProviderFunc) Load(ctx context.Context) (*Settings, error) {
	return f(ctx)
}

// StaticProvider always returns s.
func StaticProvider(s *Settings) Provider {
	return ProviderFunc(func(ctx context.Context) (*Settings, error) {
		return s, nil
	})
}

// EnvOption configures an [EnvProvider].
type EnvOption func(*EnvProvider)

// File adds an optional YAML settings file with the keys hostname, port and
// buffer_size. The environment takes precedence over the file.
func File(path string) EnvOption {
	return func(p *EnvProvider) {
		p.path = path
	}
}

// FileSystem sets the filesystem the settings file is read from.
func FileSystem(fs afero.Fs) EnvOption {
	return func(p *EnvProvider) {
		p.fs = fs
	}
}

// EnvProvider reads HOSTNAME, PORT and BUFFER_SIZE from the environment,
// falling back to an optional settings file and then to the defaults.
// A BUFFER_SIZE which is not a positive integer is ignored.
type EnvProvider struct {
	path string
	fs   afero.Fs
}

// NewEnvProvider returns an [EnvProvider].
func NewEnvProvider(opts ...EnvOption) *EnvProvider {
	p := &EnvProvider{
		fs: afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type fileSettings struct {
	Hostname   string `config:"hostname"`
	Port       string `config:"port"`
	BufferSize string `config:"buffer_size"`
}

// Load implements the [Provider] interface. The settings file is read once
// per call so every field comes from the same version of it.
func (p *EnvProvider) Load(ctx context.Context) (*Settings, error) {
	fileVal, err := config.Decode[fileSettings](config.YAMLFile(p.path, config.FileSystem(p.fs))).Read(ctx)
	if err != nil {
		return nil, err
	}
	fs, _ := fileVal.Value()

	host, err := config.Read(ctx, config.Default(DefaultHost, config.Or(
		config.Env("HOSTNAME"),
		nonEmpty(fs.Hostname),
	)))
	if err != nil {
		return nil, err
	}

	port, err := config.Read(ctx, config.Default(DefaultPort, config.Or(
		config.Env("PORT"),
		nonEmpty(fs.Port),
	)))
	if err != nil {
		return nil, err
	}

	bufSize, err := config.Read(ctx, config.Default(DefaultReadBufferSize, config.Or(
		positiveInt(config.Env("BUFFER_SIZE")),
		positiveInt(nonEmpty(fs.BufferSize)),
	)))
	if err != nil {
		return nil, err
	}

	return New(host, port, bufSize)
}

func nonEmpty(s string) config.Reader[string] {
	return config.ReaderFunc[string](func(ctx context.Context) (config.Value[string], error) {
		if s == "" {
			return config.Value[string]{}, nil
		}
		return config.ValueOf(s), nil
	})
}

func positiveInt(r config.Reader[string]) config.Reader[int] {
	n := config.OrUnset(config.IntFromString(r))
	return config.ReaderFunc[int](func(ctx context.Context) (config.Value[int], error) {
		val, err := n.Read(ctx)
		if err != nil {
			return config.Value[int]{}, err
		}
		if v, ok := val.Value(); !ok || v <= 0 {
			return config.Value[int]{}, nil
		}
		return val, nil
	})
}
