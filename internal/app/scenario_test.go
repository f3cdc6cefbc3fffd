package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

// errMsg extracts the builder message so assertions do not depend on
// the error's rendered format.
func errMsg(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && builder.Msg != "" {
		return builder.Msg
	}
	return err.Error()
}

// fixture is a local repository plus a root directory, driven through
// the same Service the CLI uses.
type fixture struct {
	repoDir string
	root    string
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repoDir: t.TempDir(),
		root:    filepath.Join(t.TempDir(), "opam"),
	}
	f.service = NewService(f.root, true)
	return f
}

func (f *fixture) repo() types.Repository {
	return types.Repository{Name: "default", Address: f.repoDir, Kind: types.RepoKindLocal}
}

// publish places a package release into the fixture repository: the
// manifest, a description, and an archive built from the given files.
func (f *fixture) publish(t *testing.T, manifest types.Manifest, files map[string]string, descriptor *types.InstallDescriptor) {
	t.Helper()
	nv := manifest.NV()
	pkgDir := filepath.Join(f.repoDir, "packages", nv.String())
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, adapters.SaveManifest(filepath.Join(pkgDir, "opam"), manifest))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "descr"), []byte("Test package "+nv.Name+"\n"), 0o644))

	staging := t.TempDir()
	for name, content := range files {
		path := filepath.Join(staging, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	if descriptor != nil {
		require.NoError(t, adapters.SaveInstallDescriptor(filepath.Join(staging, nv.Name+".install"), *descriptor))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(f.repoDir, "archives"), 0o755))
	require.NoError(t, adapters.CreateTarGz(staging, filepath.Join(f.repoDir, "archives", nv.String()+".tar.gz")))
}

// simplePackage publishes a package whose build is a no-op and whose
// install places one binary and one library file.
func (f *fixture) simplePackage(t *testing.T, name string, version string, depends ...types.Dependency) {
	t.Helper()
	f.publish(t,
		types.Manifest{
			Name:    name,
			Version: version,
			Depends: depends,
			Build:   [][]string{{"true"}},
		},
		map[string]string{
			name + ".sh":  "#!/bin/sh\necho " + name + "\n",
			name + ".lib": "library of " + name + "\n",
		},
		&types.InstallDescriptor{
			Lib: []string{name + ".lib"},
			Bin: []types.MovePair{{Src: name + ".sh", Dst: name}},
		},
	)
}

func (f *fixture) initRoot(t *testing.T) {
	t.Helper()
	require.NoError(t, os.MkdirAll(f.root, 0o755))
	require.NoError(t, f.service.Init(t.Context(), f.repo(), "sys", "4.0", 2))
}

func (f *fixture) installedSet(t *testing.T, alias string) types.NVSet {
	t.Helper()
	installed, err := adapters.LoadNVSet(paths.Installed(f.root, alias))
	require.NoError(t, err)
	return installed
}

func TestInitAndInstall(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)

	require.NoError(t, f.service.Install(t.Context(), []string{"foo"}))

	installed := f.installedSet(t, "sys")
	require.Equal(t, types.NewNVSet(
		types.NV{Name: "base", Version: "4.0"},
		types.NV{Name: "foo", Version: "1"},
	), installed)

	info, err := os.Stat(filepath.Join(f.root, "sys", "bin", "foo"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o100)

	_, err = os.Stat(filepath.Join(f.root, "sys", "lib", "foo", "foo.lib"))
	require.NoError(t, err)
}

func TestInstallAlreadyInstalled(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)
	require.NoError(t, f.service.Install(t.Context(), []string{"foo"}))

	err := f.service.Install(t.Context(), []string{"foo"})
	require.Error(t, err)
	require.Contains(t, errMsg(err), "already installed")
}

func TestInstallUnknownPackage(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)

	err := f.service.Install(t.Context(), []string{"ghost"})
	require.Error(t, err)
	require.Contains(t, errMsg(err), "unknown package")
}

func TestInstallLiteralNVFallback(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.simplePackage(t, "foo", "2")
	f.initRoot(t)

	require.NoError(t, f.service.Install(t.Context(), []string{"foo.1"}))
	installed := f.installedSet(t, "sys")
	require.True(t, installed.Contains(types.NV{Name: "foo", Version: "1"}))
	require.False(t, installed.Contains(types.NV{Name: "foo", Version: "2"}))
}

func TestRemoveReservedBasePackage(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)

	err := f.service.Remove(t.Context(), "base")
	require.Error(t, err)
	require.Contains(t, errMsg(err), "unknown package")
}

func TestUpdateThenUpgrade(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)
	require.NoError(t, f.service.Install(t.Context(), []string{"foo"}))

	f.simplePackage(t, "foo", "2")
	require.NoError(t, f.service.Update(t.Context()))
	require.NoError(t, f.service.Upgrade(t.Context()))

	installed := f.installedSet(t, "sys")
	require.Equal(t, types.NewNVSet(
		types.NV{Name: "base", Version: "4.0"},
		types.NV{Name: "foo", Version: "2"},
	), installed)

	_, err := os.Stat(filepath.Join(f.root, "sys", "lib", "foo", "foo.lib"))
	require.NoError(t, err)
}

func TestRemoveWithDependentRemovesCone(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.simplePackage(t, "bar", "1", types.Dependency{Name: "foo"})
	f.initRoot(t)
	require.NoError(t, f.service.Install(t.Context(), []string{"bar"}))

	installed := f.installedSet(t, "sys")
	require.True(t, installed.Contains(types.NV{Name: "foo", Version: "1"}))
	require.True(t, installed.Contains(types.NV{Name: "bar", Version: "1"}))

	require.NoError(t, f.service.Remove(t.Context(), "foo"))
	require.Equal(t, types.NewNVSet(types.NV{Name: "base", Version: "4.0"}), f.installedSet(t, "sys"))
}

func TestRemoveNotInstalled(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)

	err := f.service.Remove(t.Context(), "foo")
	require.Error(t, err)
	require.Contains(t, errMsg(err), "not installed")
}

func TestParallelInstallKeepsInstalledConsistent(t *testing.T) {
	for trial := 0; trial < 5; trial++ {
		f := newFixture(t)
		f.simplePackage(t, "a", "1")
		f.simplePackage(t, "b", "1")
		f.initRoot(t)

		require.NoError(t, f.service.Install(t.Context(), []string{"a", "b"}))
		require.Equal(t, types.NewNVSet(
			types.NV{Name: "base", Version: "4.0"},
			types.NV{Name: "a", Version: "1"},
			types.NV{Name: "b", Version: "1"},
		), f.installedSet(t, "sys"))
	}
}

func TestFailedBuildRollsBack(t *testing.T) {
	f := newFixture(t)
	f.publish(t,
		types.Manifest{Name: "broken", Version: "1", Build: [][]string{{"false"}}},
		map[string]string{"src.txt": "broken"},
		nil,
	)
	f.initRoot(t)

	err := f.service.Install(t.Context(), []string{"broken"})
	require.Error(t, err)
	require.Contains(t, errMsg(err), "build of broken.1 failed")

	require.Equal(t, types.NewNVSet(types.NV{Name: "base", Version: "4.0"}), f.installedSet(t, "sys"))
	_, statErr := os.Stat(filepath.Join(f.root, "sys", "lib", "broken"))
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(f.root, "sys", "bin", "broken"))
	require.True(t, os.IsNotExist(statErr))
}

func TestSwitchCloneCopiesInstalledSet(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)
	require.NoError(t, f.service.Install(t.Context(), []string{"foo"}))

	require.NoError(t, f.service.Switch(t.Context(), true, "new", "4.1"))

	config, err := adapters.LoadGlobalConfig(f.root)
	require.NoError(t, err)
	require.Equal(t, "new", config.Alias)

	installed := f.installedSet(t, "new")
	require.True(t, installed.Contains(types.NV{Name: "foo", Version: "1"}))
	require.True(t, installed.Contains(types.NV{Name: "base", Version: "4.1"}))

	// the previous switch is untouched
	require.Equal(t, types.NewNVSet(
		types.NV{Name: "base", Version: "4.0"},
		types.NV{Name: "foo", Version: "1"},
	), f.installedSet(t, "sys"))
}

func TestInstallThenRemoveIsANoOpOnInstalled(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)
	before := f.installedSet(t, "sys")

	require.NoError(t, f.service.Install(t.Context(), []string{"foo"}))
	require.NoError(t, f.service.Remove(t.Context(), "foo"))

	require.Equal(t, before, f.installedSet(t, "sys"))
	_, err := os.Stat(filepath.Join(f.root, "sys", "bin", "foo"))
	require.True(t, os.IsNotExist(err))
}
