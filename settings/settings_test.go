// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package settings

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s, err := New("0.0.0.0", "8080", 2048)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", s.Host())
	require.Equal(t, "8080", s.Port())
	require.Equal(t, 2048, s.ReadBufferSize())
	require.Equal(t, "0.0.0.0:8080", s.Addr())

	_, err = New("127.0.0.1", "4221", 0)
	require.ErrorIs(t, err, ErrInvalidReadBufferSize)
}

func TestDefault(t *testing.T) {
	s := Default()
	require.Equal(t, "127.0.0.1:4221", s.Addr())
	require.Equal(t, 1024, s.ReadBufferSize())
}

func TestStore(t *testing.T) {
	t.Run("swap keeps the old snapshot intact", func(t *testing.T) {
		st := NewStore(Default())
		held := st.Load()

		next, err := New("127.0.0.1", "9000", 64)
		require.NoError(t, err)

		prev := st.Swap(next)
		require.Same(t, held, prev)
		require.Same(t, next, st.Load())
		require.Equal(t, "4221", held.Port())
	})

	t.Run("readers always observe a whole snapshot", func(t *testing.T) {
		a, _ := New("127.0.0.1", "1111", 11)
		b, _ := New("127.0.0.1", "2222", 22)
		st := NewStore(a)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 1000; j++ {
					s := st.Load()
					switch s.Port() {
					case "1111":
						require.Equal(t, 11, s.ReadBufferSize())
					case "2222":
						require.Equal(t, 22, s.ReadBufferSize())
					}
				}
			}()
		}
		for j := 0; j < 1000; j++ {
			if j%2 == 0 {
				st.Swap(b)
			} else {
				st.Swap(a)
			}
		}
		wg.Wait()
	})
}
