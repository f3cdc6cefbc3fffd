package core

import (
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/types"
)

// SectionSource exposes the installed packages' metadata to the closure
// algorithms. The app-layer State implements it.
type SectionSource interface {
	InstalledNames() []string
	PackageConfig(pkg string) (types.BuildConfig, error)
	PackageManifest(pkg string) (types.Manifest, error)
}

// SectionRef is a section resolved to the package that exports it.
type SectionRef struct {
	Package string
	Section types.Section
}

// SectionClosure computes the least fixed point of the requires relation
// starting from the seed section names, returning the closure in
// topological order (requirements before dependents). Exactly one
// installed package must export each section name reached; two exporters
// is a name collision, zero is an unresolved requirement.
func SectionClosure(src SectionSource, seeds []string) ([]SectionRef, error) {
	var ordered []SectionRef
	state := map[string]int{} // 0 unvisited, 1 in progress, 2 done
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case 2:
			return nil
		case 1:
			// requires cycles terminate the walk; the section is already
			// on the stack and will be emitted by its first visit
			return nil
		}
		state[name] = 1
		ref, err := lookupSection(src, name)
		if err != nil {
			return err
		}
		for _, required := range ref.Section.Requires {
			if err := visit(required); err != nil {
				return err
			}
		}
		state[name] = 2
		ordered = append(ordered, ref)
		return nil
	}
	for _, seed := range seeds {
		if err := visit(seed); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// lookupSection finds the unique installed package exporting the section.
func lookupSection(src SectionSource, name string) (SectionRef, error) {
	var found []SectionRef
	for _, pkg := range src.InstalledNames() {
		config, err := src.PackageConfig(pkg)
		if err != nil {
			return SectionRef{}, err
		}
		if section, ok := config.FindSection(name); ok {
			found = append(found, SectionRef{Package: pkg, Section: section})
		}
	}
	switch len(found) {
	case 0:
		return SectionRef{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("no installed package provides section %s", name))
	case 1:
		return found[0], nil
	default:
		return SectionRef{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("section %s is provided by both %s and %s", name, found[0].Package, found[1].Package))
	}
}

// PackageClosure returns the given installed package names plus the
// transitive closure of their declared dependencies, restricted to
// installed packages.
func PackageClosure(src SectionSource, names []string) ([]string, error) {
	installed := map[string]struct{}{}
	for _, name := range src.InstalledNames() {
		installed[name] = struct{}{}
	}
	seeds := map[string]struct{}{}
	for _, name := range names {
		seeds[name] = struct{}{}
	}
	seen := map[string]struct{}{}
	var out []string
	work := append([]string(nil), names...)
	for len(work) > 0 {
		current := work[0]
		work = work[1:]
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}
		_, isInstalled := installed[current]
		if _, isSeed := seeds[current]; isSeed || isInstalled {
			out = append(out, current)
		}
		if !isInstalled {
			continue
		}
		manifest, err := src.PackageManifest(current)
		if err != nil {
			return nil, err
		}
		for _, dep := range manifest.Depends {
			work = append(work, dep.Name)
		}
		work = append(work, manifest.Depopts...)
	}
	return out, nil
}
