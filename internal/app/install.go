package app

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/types"
)

func noSolution() error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("no solution found for this request")
}

func reservedPackage(name string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("unknown package %s", name))
}

// Install resolves and executes the installation of the named packages.
// A name with an embedded dot that is not a known package falls back to
// literal NV parsing, pinning that exact version.
func (s *Service) Install(ctx context.Context, names []string) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}

	var requested []types.Wish
	for _, name := range names {
		if name == types.BasePackage {
			return reservedPackage(name)
		}
		wish, err := s.requestedWish(state, name)
		if err != nil {
			return err
		}
		if nv, ok := state.Installed.FindName(wish.Name); ok {
			return errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(fmt.Sprintf("package %s is already installed (version %s)", wish.Name, nv.Version))
		}
		requested = append(requested, wish)
	}

	request := types.Request{Kind: types.RequestInstall, WishInstall: requested}
	request.WishInstall = append(request.WishInstall, s.keepInstalledWishes(state)...)

	universe, err := state.Universe(types.RequestInstall)
	if err != nil {
		return err
	}
	solution, err := s.Solver.Resolve(ctx, universe, request)
	if err != nil {
		return err
	}
	if solution == nil {
		return noSolution()
	}
	return s.executeSolution(ctx, state, *solution)
}

// requestedWish turns a user-supplied name into a wish: known names pin
// to their latest available version, and "name.version" strings pin to
// that exact version.
func (s *Service) requestedWish(state *State, name string) (types.Wish, error) {
	if versions := state.AvailableVersions(name); len(versions) > 0 {
		latest, _ := s.Versions.Latest(versions)
		return types.Wish{
			Name:       name,
			Constraint: types.Constraint{Op: types.ConstraintOpEq, Version: latest},
		}, nil
	}
	if nv, err := types.ParseNV(name); err == nil && state.Available.Contains(nv) {
		return types.Wish{
			Name:       nv.Name,
			Constraint: types.Constraint{Op: types.ConstraintOpEq, Version: nv.Version},
		}, nil
	}
	return types.Wish{}, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("unknown package %s", name))
}

// keepInstalledWishes pins every installed, available package to any
// version so the solver keeps it present. Synthetic packages like the
// compiler-config are invisible to the solver and skipped.
func (s *Service) keepInstalledWishes(state *State) []types.Wish {
	var wishes []types.Wish
	for _, nv := range state.Installed.Sorted() {
		if len(state.AvailableVersions(nv.Name)) == 0 {
			continue
		}
		wishes = append(wishes, types.Wish{Name: nv.Name})
	}
	return wishes
}

// Remove resolves and executes the removal of one package: everything
// that transitively depends on it leaves the wish list, so the solver
// either removes the whole dependent cone or reports no solution.
func (s *Service) Remove(ctx context.Context, name string) error {
	if name == types.BasePackage {
		return reservedPackage(name)
	}
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	target, ok := state.Installed.FindName(name)
	if !ok {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package %s is not installed", name))
	}

	universe, err := state.Universe(types.RequestRemove)
	if err != nil {
		return err
	}
	excluded := map[string]struct{}{name: {}}
	for _, nv := range s.Solver.ForwardDependencies(universe, []types.NV{target}) {
		excluded[nv.Name] = struct{}{}
	}

	request := types.Request{Kind: types.RequestRemove, WishRemove: []string{name}}
	for _, nv := range state.Installed.Sorted() {
		if _, ok := excluded[nv.Name]; ok {
			continue
		}
		if len(state.AvailableVersions(nv.Name)) == 0 {
			continue
		}
		request.WishInstall = append(request.WishInstall, types.Wish{
			Name:       nv.Name,
			Constraint: types.Constraint{Op: types.ConstraintOpEq, Version: nv.Version},
		})
	}

	solution, err := s.Solver.Resolve(ctx, universe, request)
	if err != nil {
		return err
	}
	if solution == nil {
		return noSolution()
	}
	return s.executeSolution(ctx, state, *solution)
}

// Upgrade moves every installed package with a newer available version
// forward and rebuilds everything in the reinstall set.
func (s *Service) Upgrade(ctx context.Context) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}

	request := types.Request{Kind: types.RequestUpgrade}
	for _, nv := range state.Installed.Sorted() {
		versions := state.AvailableVersions(nv.Name)
		if len(versions) == 0 {
			continue
		}
		latest, _ := s.Versions.Latest(versions)
		if s.Versions.Compare(latest, nv.Version) < 0 {
			continue
		}
		request.WishUpgrade = append(request.WishUpgrade, types.Wish{
			Name:       nv.Name,
			Constraint: types.Constraint{Op: types.ConstraintOpGte, Version: nv.Version},
		})
	}
	if len(request.WishUpgrade) == 0 {
		fmt.Println("Nothing to upgrade.")
		return nil
	}

	universe, err := state.Universe(types.RequestUpgrade)
	if err != nil {
		return err
	}
	solution, err := s.Solver.Resolve(ctx, universe, request)
	if err != nil {
		return err
	}
	if solution == nil {
		return noSolution()
	}
	return s.executeSolution(ctx, state, *solution)
}
