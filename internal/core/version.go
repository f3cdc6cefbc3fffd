package core

import (
	"sort"

	debversion "github.com/knqyf263/go-deb-version"

	"github.com/RalfJung/opam/internal/types"
)

// VersionCache memoizes parsed version objects to avoid repeated parsing
// during constraint evaluation and sorting.
type VersionCache struct {
	parsed map[string]debversion.Version
	bad    map[string]struct{}
}

func NewVersionCache() *VersionCache {
	return &VersionCache{
		parsed: map[string]debversion.Version{},
		bad:    map[string]struct{}{},
	}
}

func (c *VersionCache) version(value string) (debversion.Version, bool) {
	if parsed, ok := c.parsed[value]; ok {
		return parsed, true
	}
	if _, ok := c.bad[value]; ok {
		return debversion.Version{}, false
	}
	parsed, err := debversion.NewVersion(value)
	if err != nil {
		c.bad[value] = struct{}{}
		return debversion.Version{}, false
	}
	c.parsed[value] = parsed
	return parsed, true
}

// Compare returns -1, 0, or 1 ordering two version strings. Pairs that
// do not parse fall back to lexicographic ordering.
func (c *VersionCache) Compare(a string, b string) int {
	va, oka := c.version(a)
	vb, okb := c.version(b)
	if !oka || !okb {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	switch result := va.Compare(vb); {
	case result < 0:
		return -1
	case result > 0:
		return 1
	default:
		return 0
	}
}

// SortAscending orders version strings oldest first.
func (c *VersionCache) SortAscending(versions []string) []string {
	ordered := append([]string(nil), versions...)
	sort.Slice(ordered, func(i, j int) bool {
		return c.Compare(ordered[i], ordered[j]) < 0
	})
	return ordered
}

// Latest returns the highest of the given versions, or false when the
// slice is empty.
func (c *VersionCache) Latest(versions []string) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}
	best := versions[0]
	for _, candidate := range versions[1:] {
		if c.Compare(candidate, best) > 0 {
			best = candidate
		}
	}
	return best, true
}

// Satisfies checks a version against one constraint. An empty operator
// accepts every version.
func (c *VersionCache) Satisfies(version string, constraint types.Constraint) bool {
	switch constraint.Op {
	case types.ConstraintOpNone:
		return true
	case types.ConstraintOpEq:
		return c.Compare(version, constraint.Version) == 0
	case types.ConstraintOpNe:
		return c.Compare(version, constraint.Version) != 0
	case types.ConstraintOpGte:
		return c.Compare(version, constraint.Version) >= 0
	case types.ConstraintOpLte:
		return c.Compare(version, constraint.Version) <= 0
	case types.ConstraintOpGt:
		return c.Compare(version, constraint.Version) > 0
	case types.ConstraintOpLt:
		return c.Compare(version, constraint.Version) < 0
	default:
		return false
	}
}

// SatisfiesAll checks a version against every constraint of a dependency.
func (c *VersionCache) SatisfiesAll(version string, constraints []types.Constraint) bool {
	for _, constraint := range constraints {
		if !c.Satisfies(version, constraint) {
			return false
		}
	}
	return true
}
