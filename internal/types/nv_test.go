package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseNVSplitsOnLastDot(t *testing.T) {
	cases := []struct {
		input   string
		name    string
		version string
	}{
		{"foo.1", "foo", "1"},
		{"foo.1.2", "foo.1", "2"},
		{"name.1.2.3", "name.1.2", "3"},
		{"lwt.2.3.2+patched", "lwt.2.3", "2+patched"},
	}
	for _, tc := range cases {
		nv, err := ParseNV(tc.input)
		require.NoError(t, err, tc.input)
		require.Equal(t, NV{Name: tc.name, Version: tc.version}, nv)
		require.Equal(t, tc.input, nv.String())
	}
}

func TestParseNVRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "foo", "foo.", ".1", "."} {
		_, err := ParseNV(input)
		require.Error(t, err, input)
	}
}

func TestNVSetFindName(t *testing.T) {
	set := NewNVSet(NV{Name: "foo", Version: "1"}, NV{Name: "bar", Version: "2"})
	nv, ok := set.FindName("foo")
	require.True(t, ok)
	require.Equal(t, "1", nv.Version)
	_, ok = set.FindName("baz")
	require.False(t, ok)
}

func TestNVSetSortedIsStable(t *testing.T) {
	set := NewNVSet(
		NV{Name: "b", Version: "1"},
		NV{Name: "a", Version: "2"},
		NV{Name: "a", Version: "1"},
	)
	sorted := set.Sorted()
	require.Equal(t, []NV{
		{Name: "a", Version: "1"},
		{Name: "a", Version: "2"},
		{Name: "b", Version: "1"},
	}, sorted)
}

func TestParseFullVariable(t *testing.T) {
	global, err := ParseFullVariable("foo:installed")
	require.NoError(t, err)
	require.Equal(t, FullVariable{Package: "foo", Variable: "installed"}, global)
	require.Equal(t, "foo:installed", global.String())

	local, err := ParseFullVariable("foo:lib:asmcomp")
	require.NoError(t, err)
	require.Equal(t, FullVariable{Package: "foo", Section: "lib", Variable: "asmcomp"}, local)
	require.Equal(t, "foo:lib:asmcomp", local.String())

	for _, input := range []string{"", "foo", "foo:", ":bar", "a:b:c:d", "a::c"} {
		_, err := ParseFullVariable(input)
		require.Error(t, err, input)
	}
}

func TestVariableValueYAMLRoundTrip(t *testing.T) {
	type doc struct {
		Values map[string]VariableValue `yaml:"values"`
	}
	original := doc{Values: map[string]VariableValue{
		"flag":  BoolValue(true),
		"off":   BoolValue(false),
		"plain": StringValue("some text"),
		"truthy": StringValue("true looking string that stays a string " +
			"because it was written as one"),
	}}
	data, err := yaml.Marshal(original)
	require.NoError(t, err)
	var decoded doc
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Equal(t, original.Values["flag"], decoded.Values["flag"])
	require.Equal(t, original.Values["off"], decoded.Values["off"])
	require.Equal(t, original.Values["plain"], decoded.Values["plain"])
	require.True(t, decoded.Values["flag"].IsBool)
	require.False(t, decoded.Values["plain"].IsBool)
	require.Equal(t, "true", decoded.Values["flag"].String())
	require.Equal(t, "some text", decoded.Values["plain"].String())
}
