package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RalfJung/opam/internal/types"
)

type fakeEnv struct {
	installed map[string]types.BuildConfig
}

func (f fakeEnv) IsInstalled(pkg string) bool {
	_, ok := f.installed[pkg]
	return ok
}

func (f fakeEnv) PackageConfig(pkg string) (types.BuildConfig, error) {
	return f.installed[pkg], nil
}

func testEnv() fakeEnv {
	return fakeEnv{installed: map[string]types.BuildConfig{
		"foo": {
			Variables: map[string]types.VariableValue{
				"native": types.BoolValue(true),
				"prefix": types.StringValue("/usr/local"),
			},
			Sections: []types.Section{
				{
					Name: "foolib",
					Kind: types.SectionKindLibrary,
					Variables: map[string]types.VariableValue{
						"asmcomp": types.StringValue("-I +foolib"),
					},
				},
			},
		},
	}}
}

func TestEvalSyntheticVariables(t *testing.T) {
	env := testEnv()

	value, err := EvalVariable(env, types.FullVariable{Package: "foo", Variable: "enable"})
	require.NoError(t, err)
	require.Equal(t, "enable", value.String())

	value, err = EvalVariable(env, types.FullVariable{Package: "ghost", Variable: "enable"})
	require.NoError(t, err)
	require.Equal(t, "disable", value.String())

	value, err = EvalVariable(env, types.FullVariable{Package: "foo", Variable: "installed"})
	require.NoError(t, err)
	require.Equal(t, "true", value.String())

	value, err = EvalVariable(env, types.FullVariable{Package: "ghost", Variable: "installed"})
	require.NoError(t, err)
	require.Equal(t, "false", value.String())
}

func TestEvalConfigVariables(t *testing.T) {
	env := testEnv()

	value, err := EvalVariable(env, types.FullVariable{Package: "foo", Variable: "prefix"})
	require.NoError(t, err)
	require.Equal(t, "/usr/local", value.String())

	value, err = EvalVariable(env, types.FullVariable{Package: "foo", Section: "foolib", Variable: "asmcomp"})
	require.NoError(t, err)
	require.Equal(t, "-I +foolib", value.String())

	_, err = EvalVariable(env, types.FullVariable{Package: "foo", Variable: "missing"})
	require.Error(t, err)

	_, err = EvalVariable(env, types.FullVariable{Package: "ghost", Variable: "prefix"})
	require.Error(t, err)
}

func TestSubstStringReplacesEachOccurrenceOnce(t *testing.T) {
	env := testEnv()
	out, err := SubstString(env, "prefix=%{foo:prefix}% native=%{foo:native}%")
	require.NoError(t, err)
	require.Equal(t, "prefix=/usr/local native=true", out)
}

func TestSubstStringIdentityOutsideMarkers(t *testing.T) {
	env := testEnv()
	input := "no markers here, just 100% plain { text }"
	out, err := SubstString(env, input)
	require.NoError(t, err)
	require.Equal(t, input, out)
}

func TestSubstStringDoesNotRescanReplacement(t *testing.T) {
	env := testEnv()
	env.installed["loop"] = types.BuildConfig{
		Variables: map[string]types.VariableValue{
			"self": types.StringValue("%{loop:self}%"),
		},
	}
	out, err := SubstString(env, "%{loop:self}%")
	require.NoError(t, err)
	require.Equal(t, "%{loop:self}%", out)
}

func TestSubstStringLeavesMalformedMarkers(t *testing.T) {
	env := testEnv()
	out, err := SubstString(env, "broken %{not-a-variable}% stays")
	require.NoError(t, err)
	require.Equal(t, "broken %{not-a-variable}% stays", out)

	out, err = SubstString(env, "unterminated %{foo:prefix")
	require.NoError(t, err)
	require.Equal(t, "unterminated %{foo:prefix", out)
}

func TestSubstFile(t *testing.T) {
	env := testEnv()
	dir := t.TempDir()
	base := filepath.Join(dir, "foo.config")
	template := "prefix: \"%{foo:prefix}%\"\nbytes stay \xc3\xa9 intact\n"
	require.NoError(t, os.WriteFile(base+".in", []byte(template), 0o644))

	require.NoError(t, SubstFile(env, base))
	out, err := os.ReadFile(base)
	require.NoError(t, err)
	require.Equal(t, "prefix: \"/usr/local\"\nbytes stay \xc3\xa9 intact\n", string(out))

	require.Error(t, SubstFile(env, filepath.Join(dir, "missing")))
}
