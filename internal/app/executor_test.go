package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RalfJung/opam/internal/types"
)

func TestVerifySectionsMismatch(t *testing.T) {
	state := &State{Installed: types.NVSet{}}

	manifest := types.Manifest{Name: "foo", Version: "1", Libraries: []string{"foolib"}}
	err := verifySections(state, manifest, types.BuildConfig{})
	require.Error(t, err)
	require.Contains(t, errMsg(err), "foolib")

	config := types.BuildConfig{Sections: []types.Section{
		{Name: "stray", Kind: types.SectionKindLibrary},
	}}
	err = verifySections(state, types.Manifest{Name: "foo", Version: "1"}, config)
	require.Error(t, err)
	require.Contains(t, errMsg(err), "stray")
}

func TestVerifySectionsUnresolvedRequire(t *testing.T) {
	state := &State{Installed: types.NVSet{}}
	manifest := types.Manifest{Name: "foo", Version: "1", Libraries: []string{"foolib"}}
	config := types.BuildConfig{Sections: []types.Section{
		{Name: "foolib", Kind: types.SectionKindLibrary, Requires: []string{"ghostlib"}},
	}}
	err := verifySections(state, manifest, config)
	require.Error(t, err)
	require.Contains(t, errMsg(err), "ghostlib")
}

func TestVerifySectionsLocalRequireResolves(t *testing.T) {
	state := &State{Installed: types.NVSet{}}
	manifest := types.Manifest{Name: "foo", Version: "1", Libraries: []string{"a", "b"}}
	config := types.BuildConfig{Sections: []types.Section{
		{Name: "a", Kind: types.SectionKindLibrary},
		{Name: "b", Kind: types.SectionKindLibrary, Requires: []string{"a"}},
	}}
	require.NoError(t, verifySections(state, manifest, config))
}

func TestConfirmSolutionPromptsOnRemoval(t *testing.T) {
	service := NewService(t.TempDir(), false)
	asked := false
	service.Confirm = func(string) bool {
		asked = true
		return false
	}
	state := &State{}
	solution := types.Solution{ToRemove: []types.NV{{Name: "foo", Version: "1"}}}
	require.False(t, service.confirmSolution(state, solution))
	require.True(t, asked)
}

func TestConfirmSolutionPromptsOnDowngrade(t *testing.T) {
	service := NewService(t.TempDir(), false)
	asked := false
	service.Confirm = func(string) bool {
		asked = true
		return true
	}
	from := types.NV{Name: "foo", Version: "2"}
	solution := types.Solution{ToAdd: types.ActionGraph{Nodes: []types.ActionNode{
		{Action: types.Action{Kind: types.ActionChange, From: &from, To: types.NV{Name: "foo", Version: "1"}}},
	}}}
	require.True(t, service.confirmSolution(&State{}, solution))
	require.True(t, asked)
}

func TestConfirmSolutionSilentOnPureAdditions(t *testing.T) {
	service := NewService(t.TempDir(), false)
	service.Confirm = func(string) bool {
		t.Fatal("additions must not prompt")
		return false
	}
	solution := types.Solution{ToAdd: types.ActionGraph{Nodes: []types.ActionNode{
		{Action: types.Action{Kind: types.ActionChange, To: types.NV{Name: "foo", Version: "1"}}},
	}}}
	require.True(t, service.confirmSolution(&State{}, solution))
}

func TestAutoYesSkipsPrompt(t *testing.T) {
	service := NewService(t.TempDir(), true)
	service.Confirm = func(string) bool {
		t.Fatal("--yes must suppress prompts")
		return false
	}
	require.True(t, service.confirm("anything"))
}

func TestInstallWithSubstAndSections(t *testing.T) {
	f := newFixture(t)
	configTemplate := "" +
		"variables:\n" +
		"  installed-prefix: \"%{base:prefix}%\"\n" +
		"sections:\n" +
		"  - name: foolib\n" +
		"    kind: library\n" +
		"    variables:\n" +
		"      asmcomp: \"-I +foolib\"\n"
	f.publish(t,
		types.Manifest{
			Name:      "foo",
			Version:   "1",
			Build:     [][]string{{"true"}},
			Substs:    []string{"foo.config"},
			Libraries: []string{"foolib"},
		},
		map[string]string{"foo.config.in": configTemplate},
		&types.InstallDescriptor{},
	)
	f.initRoot(t)

	require.NoError(t, f.service.Install(t.Context(), []string{"foo"}))

	state, err := LoadState(f.root)
	require.NoError(t, err)
	config, err := state.PackageConfig("foo")
	require.NoError(t, err)
	prefix := config.Variables["installed-prefix"]
	require.Equal(t, filepath.Join(f.root, "sys"), prefix.String())
	section, ok := config.FindSection("foolib")
	require.True(t, ok)
	require.Equal(t, "-I +foolib", section.Variables["asmcomp"].String())

	// the environment files of the build are kept for debugging
	_, err = os.Stat(filepath.Join(f.root, "sys", "build", "foo.1", "environment"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(f.root, "sys", "build", "foo.1", "environment.old"))
	require.NoError(t, err)
}
