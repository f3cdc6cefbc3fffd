package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/RalfJung/opam/internal/types"
)

func TestVersionCompare(t *testing.T) {
	cache := NewVersionCache()
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"1.0", "1.0", 0},
		{"1.2", "1.10", -1},
		{"1.0", "1.0.1", -1},
		{"4.0", "4.1", -1},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, cache.Compare(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
	}
}

func TestVersionLatest(t *testing.T) {
	cache := NewVersionCache()
	latest, ok := cache.Latest([]string{"1.0", "1.10", "1.2"})
	require.True(t, ok)
	require.Equal(t, "1.10", latest)

	_, ok = cache.Latest(nil)
	require.False(t, ok)
}

func TestVersionSortAscending(t *testing.T) {
	cache := NewVersionCache()
	got := cache.SortAscending([]string{"2.0", "1.10", "1.2"})
	if diff := cmp.Diff([]string{"1.2", "1.10", "2.0"}, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestVersionSatisfies(t *testing.T) {
	cache := NewVersionCache()
	cases := []struct {
		version string
		op      types.ConstraintOp
		bound   string
		want    bool
	}{
		{"1.2", types.ConstraintOpGte, "1.0", true},
		{"1.2", types.ConstraintOpGte, "1.2", true},
		{"1.2", types.ConstraintOpGt, "1.2", false},
		{"1.2", types.ConstraintOpLt, "2.0", true},
		{"1.2", types.ConstraintOpEq, "1.2", true},
		{"1.2", types.ConstraintOpNe, "1.2", false},
		{"1.2", types.ConstraintOpNone, "", true},
	}
	for _, tc := range cases {
		got := cache.Satisfies(tc.version, types.Constraint{Op: tc.op, Version: tc.bound})
		require.Equal(t, tc.want, got, "%s %s %s", tc.version, tc.op, tc.bound)
	}
}
