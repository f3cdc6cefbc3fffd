package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

func TestGlobalConfigRoundTrip(t *testing.T) {
	root := t.TempDir()
	config := types.GlobalConfig{
		OpamVersion: "1",
		Repositories: []types.Repository{
			{Name: "default", Address: "/srv/repo", Kind: types.RepoKindLocal},
			{Name: "extra", Address: "https://example.org/repo", Kind: types.RepoKindHTTP},
		},
		Alias: "sys",
		Jobs:  4,
	}
	require.NoError(t, SaveGlobalConfig(root, config))
	loaded, err := LoadGlobalConfig(root)
	require.NoError(t, err)
	if diff := cmp.Diff(config, loaded); diff != "" {
		t.Fatalf("config did not round-trip (-want +got):\n%s", diff)
	}
}

func TestLoadGlobalConfigUninitialized(t *testing.T) {
	_, err := LoadGlobalConfig(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "init")
}

func TestAliasMapRoundTripKeepsOrder(t *testing.T) {
	root := t.TempDir()
	aliases := types.AliasMap{
		{Alias: "sys", Compiler: "4.0"},
		{Alias: "dev", Compiler: "4.1"},
	}
	require.NoError(t, SaveAliases(root, aliases))
	loaded, err := LoadAliases(root)
	require.NoError(t, err)
	if diff := cmp.Diff(aliases, loaded); diff != "" {
		t.Fatalf("aliases did not round-trip (-want +got):\n%s", diff)
	}

	compiler, ok := loaded.Compiler("dev")
	require.True(t, ok)
	require.Equal(t, "4.1", compiler)
}

func TestLoadAliasesMissingReadsEmpty(t *testing.T) {
	loaded, err := LoadAliases(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestNVSetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installed")
	set := types.NewNVSet(
		types.NV{Name: "foo", Version: "1"},
		types.NV{Name: "bar", Version: "2.0"},
	)
	require.NoError(t, SaveNVSet(path, set))
	loaded, err := LoadNVSet(path)
	require.NoError(t, err)
	if diff := cmp.Diff(set, loaded); diff != "" {
		t.Fatalf("set did not round-trip (-want +got):\n%s", diff)
	}
}

func TestLoadNVSetMissingReadsEmpty(t *testing.T) {
	loaded, err := LoadNVSet(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestManifestRoundTripAndLocationCheck(t *testing.T) {
	dir := t.TempDir()
	manifest := types.Manifest{
		Name:    "foo",
		Version: "1",
		Depends: []types.Dependency{
			{Name: "bar", Constraints: []types.Constraint{{Op: types.ConstraintOpGte, Version: "1"}}},
		},
		Depopts:   []string{"baz"},
		Build:     [][]string{{"make", "all"}},
		Remove:    [][]string{{"make", "uninstall"}},
		Substs:    []string{"foo.config"},
		Libraries: []string{"foolib"},
	}
	path := filepath.Join(dir, "foo.1.opam")
	require.NoError(t, SaveManifest(path, manifest))

	loaded, err := LoadManifest(path, types.NV{Name: "foo", Version: "1"})
	require.NoError(t, err)
	if diff := cmp.Diff(manifest, loaded); diff != "" {
		t.Fatalf("manifest did not round-trip (-want +got):\n%s", diff)
	}

	// declared name.version must match the expected location
	_, err = LoadManifest(path, types.NV{Name: "foo", Version: "2"})
	require.Error(t, err)
}

func TestBuildConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo.config")
	config := types.BuildConfig{
		Variables: map[string]types.VariableValue{
			"native": types.BoolValue(true),
			"prefix": types.StringValue("/opt"),
		},
		Sections: []types.Section{
			{
				Name:     "foolib",
				Kind:     types.SectionKindLibrary,
				Requires: []string{"barlib"},
				Variables: map[string]types.VariableValue{
					"asmcomp": types.StringValue("-I +foolib"),
				},
			},
		},
	}
	require.NoError(t, SaveBuildConfig(path, config))
	loaded, found, err := LoadBuildConfig(path)
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff(config, loaded); diff != "" {
		t.Fatalf("build config did not round-trip (-want +got):\n%s", diff)
	}
}

func TestInstallDescriptorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo.install")
	descriptor := types.InstallDescriptor{
		Lib:  []string{"_build/foo.cma"},
		Bin:  []types.MovePair{{Src: "_build/main.exe", Dst: "foo"}},
		Misc: []types.MovePair{{Src: "doc/foo.1", Dst: "/usr/share/man/man1/foo.1"}},
	}
	require.NoError(t, SaveInstallDescriptor(path, descriptor))
	loaded, found, err := LoadInstallDescriptor(path)
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff(descriptor, loaded); diff != "" {
		t.Fatalf("descriptor did not round-trip (-want +got):\n%s", diff)
	}
}

func TestCompilerDescrRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "4.0.comp")
	descr := types.CompilerDescr{
		Version:   "4.0",
		Source:    "https://example.org/compiler-4.0.tar.gz",
		Configure: []string{"-with-debug-runtime"},
		Make:      []string{"world"},
		Env: []types.EnvUpdate{
			{Name: "CAML_LD_LIBRARY_PATH", Op: types.EnvOpPrepend, Value: "/opt/stublibs"},
		},
		RequiredSections: []string{"stdlib"},
		Packages:         []string{"base-bigarray"},
		Preinstalled:     false,
		Asmcomp:          []string{"-I", "+native"},
	}
	require.NoError(t, SaveCompilerDescr(path, descr))
	loaded, err := LoadCompilerDescr(path)
	require.NoError(t, err)
	if diff := cmp.Diff(descr, loaded); diff != "" {
		t.Fatalf("compiler descr did not round-trip (-want +got):\n%s", diff)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	root := t.TempDir()
	index := map[string]string{"foo": "default", "bar": "extra"}
	require.NoError(t, SaveIndex(root, index))
	loaded, err := LoadIndex(root)
	require.NoError(t, err)
	if diff := cmp.Diff(index, loaded); diff != "" {
		t.Fatalf("index did not round-trip (-want +got):\n%s", diff)
	}
}

func TestLoadDescr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo.1")
	require.NoError(t, os.WriteFile(path, []byte("A short synopsis\nA longer body\nover two lines\n"), 0o644))
	synopsis, body := LoadDescr(path)
	require.Equal(t, "A short synopsis", synopsis)
	require.Equal(t, "A longer body\nover two lines", body)

	synopsis, body = LoadDescr(filepath.Join(t.TempDir(), "missing"))
	require.Empty(t, synopsis)
	require.Empty(t, body)
}

func TestListAvailable(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(paths.OpamDir(root), 0o755))
	for _, name := range []string{"foo.1.opam", "foo.2.opam", "bar.1.0.opam", "junk"} {
		require.NoError(t, os.WriteFile(filepath.Join(paths.OpamDir(root), name), nil, 0o644))
	}
	available, err := ListAvailable(root)
	require.NoError(t, err)
	// "bar.1.0" splits on the last dot, like every NV string
	require.Equal(t, types.NewNVSet(
		types.NV{Name: "foo", Version: "1"},
		types.NV{Name: "foo", Version: "2"},
		types.NV{Name: "bar.1", Version: "0"},
	), available)
}
