package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RalfJung/opam/internal/types"
)

func TestLayout(t *testing.T) {
	root := "/opam"
	nv := types.NV{Name: "foo", Version: "1"}

	require.Equal(t, filepath.Join(root, "config"), Config(root))
	require.Equal(t, filepath.Join(root, "aliases"), Aliases(root))
	require.Equal(t, filepath.Join(root, "repo", "index"), Index(root))
	require.Equal(t, filepath.Join(root, "repo", "default", "packages", "foo.1", "opam"), RepoOpam(root, "default", nv))
	require.Equal(t, filepath.Join(root, "repo", "default", "archives", "foo.1.tar.gz"), RepoArchive(root, "default", nv))
	require.Equal(t, filepath.Join(root, "opam", "foo.1.opam"), OpamFile(root, nv))
	require.Equal(t, filepath.Join(root, "descr", "foo.1"), DescrFile(root, nv))
	require.Equal(t, filepath.Join(root, "archive", "foo.1.tar.gz"), ArchiveFile(root, nv))
	require.Equal(t, filepath.Join(root, "compiler", "4.0.comp"), CompilerFile(root, "4.0"))
	require.Equal(t, filepath.Join(root, "sys", "installed"), Installed(root, "sys"))
	require.Equal(t, filepath.Join(root, "sys", "reinstall"), Reinstall(root, "sys"))
	require.Equal(t, filepath.Join(root, "sys", "config", "foo.config"), PkgConfig(root, "sys", "foo"))
	require.Equal(t, filepath.Join(root, "sys", "install", "foo.install"), PkgInstall(root, "sys", "foo"))
	require.Equal(t, filepath.Join(root, "sys", "build", "foo.1"), BuildDir(root, "sys", nv))
	require.Equal(t, filepath.Join(root, "sys", "lib", "foo"), LibDir(root, "sys", "foo"))
	require.Equal(t, filepath.Join(root, "sys", "bin"), BinDir(root, "sys"))
}
