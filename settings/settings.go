// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package settings holds the server's listen and read settings as an
// immutable snapshot, along with the provider that loads them.
package settings

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
)

// Defaults used when neither the environment nor a settings file supply a value.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = "4221"
	DefaultReadBufferSize = 1024
)

// ErrInvalidReadBufferSize is returned by [New] for a non-positive buffer size.
var ErrInvalidReadBufferSize = errors.New("read buffer size must be positive")

// Settings is an immutable snapshot. A reload produces a new *Settings rather
// than modifying an existing one.
type Settings struct {
	host           string
	port           string
	readBufferSize int
}

// New returns a Settings snapshot.
func New(host, port string, readBufferSize int) (*Settings, error) {
	if readBufferSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidReadBufferSize, readBufferSize)
	}
	s := &Settings{
		host:           host,
		port:           port,
		readBufferSize: readBufferSize,
	}
	return s, nil
}

// Default returns the snapshot built purely from the defaults.
func Default() *Settings {
	return &Settings{
		host:           DefaultHost,
		port:           DefaultPort,
		readBufferSize: DefaultReadBufferSize,
	}
}

// Host is the listen host.
func (s *Settings) Host() string { return s.host }

// Port is the listen port.
func (s *Settings) Port() string { return s.port }

// ReadBufferSize is the chunk size used when reading requests.
func (s *Settings) ReadBufferSize() int { return s.readBufferSize }

// Addr returns host:port suitable for [net.Listen].
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.host, s.port)
}

// Store holds the active snapshot behind one atomically swapped reference.
// Readers that already loaded a snapshot keep using it after a swap.
type Store struct {
	p atomic.Pointer[Settings]
}

// NewStore returns a Store holding s.
func NewStore(s *Settings) *Store {
	st := &Store{}
	st.p.Store(s)
	return st
}

// Load returns the active snapshot.
func (st *Store) Load() *Settings {
	return st.p.Load()
}

// Swap installs s and returns the previous snapshot.
func (st *Store) Swap(s *Settings) *Settings {
	return st.p.Swap(s)
}
