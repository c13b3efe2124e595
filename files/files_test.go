// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package files

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestFS(t *testing.T) {
	t.Run("write then read", func(t *testing.T) {
		s := NewFS(afero.NewMemMapFs())
		require.NoError(t, s.Write("/srv/report.txt", []byte("quarterly")))

		b, err := s.Read("/srv/report.txt")
		require.NoError(t, err)
		require.Equal(t, []byte("quarterly"), b)
	})

	t.Run("write overwrites", func(t *testing.T) {
		s := NewFS(afero.NewMemMapFs())
		require.NoError(t, s.Write("/f", []byte("a much longer first version")))
		require.NoError(t, s.Write("/f", []byte("short")))

		b, err := s.Read("/f")
		require.NoError(t, err)
		require.Equal(t, []byte("short"), b)
	})

	t.Run("missing file is ErrNotFound", func(t *testing.T) {
		_, err := NewFS(afero.NewMemMapFs()).Read("/nope")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("read only filesystem rejects writes", func(t *testing.T) {
		s := NewFS(afero.NewReadOnlyFs(afero.NewMemMapFs()))
		err := s.Write("/f", []byte("x"))
		require.Error(t, err)
	})

	t.Run("unreadable file is ErrPermissionDenied", func(t *testing.T) {
		if runtime.GOOS == "windows" || os.Geteuid() == 0 {
			t.Skip("file modes are not enforced")
		}

		dir := t.TempDir()
		path := filepath.Join(dir, "secret")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o000))

		_, err := OS().Read(path)
		require.ErrorIs(t, err, ErrPermissionDenied)
	})
}
