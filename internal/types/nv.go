package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// NV is a (package name, package version) pair, printed as "name.version".
type NV struct {
	Name    string
	Version string
}

func (nv NV) String() string {
	return nv.Name + "." + nv.Version
}

// ParseNV splits a "name.version" string on the last dot. Names may
// themselves contain dots: "foo.1.2.3" parses as name "foo.1.2",
// version "3".
func ParseNV(value string) (NV, error) {
	trimmed := strings.TrimSpace(value)
	idx := strings.LastIndex(trimmed, ".")
	if idx <= 0 || idx == len(trimmed)-1 {
		return NV{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("not a package.version pair: %q", value))
	}
	return NV{Name: trimmed[:idx], Version: trimmed[idx+1:]}, nil
}

// NVSet is a set of NVs. The zero value is empty and usable.
type NVSet map[NV]struct{}

func NewNVSet(nvs ...NV) NVSet {
	set := NVSet{}
	for _, nv := range nvs {
		set[nv] = struct{}{}
	}
	return set
}

func (s NVSet) Contains(nv NV) bool {
	_, ok := s[nv]
	return ok
}

func (s NVSet) Add(nv NV) {
	s[nv] = struct{}{}
}

func (s NVSet) Remove(nv NV) {
	delete(s, nv)
}

// FindName returns the member with the given package name, if any.
// Within an installed set at most one version of a name is present.
func (s NVSet) FindName(name string) (NV, bool) {
	for nv := range s {
		if nv.Name == name {
			return nv, true
		}
	}
	return NV{}, false
}

// Sorted returns the members ordered by name, then by version string.
// Version-aware ordering lives in core; this order is only used for
// stable serialization and display.
func (s NVSet) Sorted() []NV {
	out := make([]NV, 0, len(s))
	for nv := range s {
		out = append(out, nv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

func (s NVSet) Clone() NVSet {
	out := make(NVSet, len(s))
	for nv := range s {
		out[nv] = struct{}{}
	}
	return out
}
