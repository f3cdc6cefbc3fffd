package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RalfJung/opam/internal/types"
)

func TestLoadStateUninitializedRoot(t *testing.T) {
	_, err := LoadState(filepath.Join(t.TempDir(), "nowhere"))
	require.Error(t, err)
	require.Contains(t, errMsg(err), "init")
}

func TestLoadStateSnapshot(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)

	state, err := LoadState(f.root)
	require.NoError(t, err)
	require.Equal(t, "sys", state.Alias)
	require.Equal(t, "4.0", state.Compiler)
	require.Len(t, state.Repositories, 1)
	require.True(t, state.Available.Contains(types.NV{Name: "foo", Version: "1"}))
	require.True(t, state.Installed.Contains(types.NV{Name: "base", Version: "4.0"}))
	require.Empty(t, state.Reinstall)
	require.Equal(t, "default", state.Index["foo"])
	require.False(t, state.IsInstalled("foo"))
}

func TestStateEnvironmentPrependsSwitchBin(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)

	state, err := LoadState(f.root)
	require.NoError(t, err)
	env, err := state.Environment()
	require.NoError(t, err)
	bin := filepath.Join(f.root, "sys", "bin")
	require.Contains(t, env["PATH"], bin+":")
}

func TestApplyEnvUpdateOperators(t *testing.T) {
	env := map[string]string{"EXISTING": "a"}

	applyEnvUpdate(env, types.EnvUpdate{Name: "FRESH", Op: types.EnvOpSet, Value: "v"})
	require.Equal(t, "v", env["FRESH"])

	applyEnvUpdate(env, types.EnvUpdate{Name: "EXISTING", Op: types.EnvOpPrepend, Value: "b"})
	require.Equal(t, "b:a", env["EXISTING"])

	applyEnvUpdate(env, types.EnvUpdate{Name: "EXISTING", Op: types.EnvOpAppend, Value: "c"})
	require.Equal(t, "b:a:c", env["EXISTING"])

	applyEnvUpdate(env, types.EnvUpdate{Name: "EMPTY", Op: types.EnvOpPrepend, Value: "x"})
	require.Equal(t, "x", env["EMPTY"])
}

func TestPackageVariablesThroughState(t *testing.T) {
	f := newFixture(t)
	f.simplePackage(t, "foo", "1")
	f.initRoot(t)

	state, err := LoadState(f.root)
	require.NoError(t, err)

	// the synthetic compiler-config package exposes the switch layout
	config, err := state.PackageConfig(types.BasePackage)
	require.NoError(t, err)
	prefix, ok := config.Variables["prefix"]
	require.True(t, ok)
	require.Equal(t, filepath.Join(f.root, "sys"), prefix.String())

	_, err = state.PackageConfig("foo")
	require.Error(t, err)
}
