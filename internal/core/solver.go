package core

import (
	"context"
	"sort"

	"github.com/crillab/gophersat/solver"

	"github.com/RalfJung/opam/internal/ports"
	"github.com/RalfJung/opam/internal/types"
)

// SATSolver resolves requests by encoding the package universe as a
// pseudo-boolean optimization problem: one variable per available NV,
// at-most-one clauses per package name, implication clauses for
// dependencies, mutual-exclusion clauses for conflicts, and demand
// clauses for the request's wishes. The cost function prefers newer
// versions; every variable costs at least one so unneeded packages are
// never selected.
type SATSolver struct{}

func NewSATSolver() SATSolver {
	return SATSolver{}
}

// satState holds all bookkeeping for one solver invocation. Isolating
// this avoids passing its maps and cost slices through every helper call.
type satState struct {
	byNV        map[types.NV]int
	byName      map[string][]int
	meta        map[int]types.UniversePackage
	varID       int
	costLits    []solver.Lit
	costWeights []int
	cache       *VersionCache
}

func (SATSolver) Resolve(ctx context.Context, universe []types.UniversePackage, request types.Request) (*types.Solution, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	state := buildSatState(universe)
	if state.varID == 0 {
		return nil, nil
	}

	clauses := buildUniverseClauses(state)
	demand, ok := buildRequestClauses(state, request)
	if !ok {
		return nil, nil
	}
	clauses = append(clauses, demand...)

	selected, ok := solveSAT(state, clauses)
	if !ok {
		return nil, nil
	}
	solution := decodeSolution(state, selected)
	return &solution, nil
}

// buildSatState enumerates every available NV as a SAT variable, ordered
// oldest-first per name so cost weights can prefer newer versions.
func buildSatState(universe []types.UniversePackage) satState {
	s := satState{
		byNV:   map[types.NV]int{},
		byName: map[string][]int{},
		meta:   map[int]types.UniversePackage{},
		cache:  NewVersionCache(),
	}
	perName := map[string][]types.UniversePackage{}
	var names []string
	for _, pkg := range universe {
		if _, ok := perName[pkg.NV.Name]; !ok {
			names = append(names, pkg.NV.Name)
		}
		perName[pkg.NV.Name] = append(perName[pkg.NV.Name], pkg)
	}
	sort.Strings(names)
	for _, name := range names {
		versions := perName[name]
		sort.Slice(versions, func(i, j int) bool {
			return s.cache.Compare(versions[i].NV.Version, versions[j].NV.Version) < 0
		})
		for i, pkg := range versions {
			s.varID++
			id := s.varID
			s.byNV[pkg.NV] = id
			s.byName[name] = append(s.byName[name], id)
			s.meta[id] = pkg
			weight := len(versions) - i
			s.costLits = append(s.costLits, solver.IntToLit(int32(id))) //nolint:gosec // id is bounded by the universe size, well within int32 range
			s.costWeights = append(s.costWeights, weight)
		}
	}
	return s
}

// buildUniverseClauses emits the request-independent clauses: at most
// one version per name, dependency implications, and conflict
// exclusions.
func buildUniverseClauses(s satState) [][]int {
	var clauses [][]int

	for _, ids := range s.byName {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				clauses = append(clauses, []int{-ids[i], -ids[j]})
			}
		}
	}

	for id, pkg := range s.meta {
		for _, dep := range pkg.Depends {
			candidates := s.candidates(dep.Name, dep.Constraints)
			if len(candidates) == 0 {
				clauses = append(clauses, []int{-id})
				continue
			}
			clauses = append(clauses, append([]int{-id}, candidates...))
		}
		for _, conflict := range pkg.Conflicts {
			if conflict.Name == pkg.NV.Name {
				continue
			}
			for _, other := range s.candidates(conflict.Name, conflict.Constraints) {
				clauses = append(clauses, []int{-id, -other})
			}
		}
	}
	return clauses
}

// buildRequestClauses emits the demand clauses for the request's wish
// lists. The second return value is false when some wish has no
// candidate at all, which means the request has no solution.
func buildRequestClauses(s satState, request types.Request) ([][]int, bool) {
	var clauses [][]int
	wishes := append([]types.Wish{}, request.WishInstall...)
	wishes = append(wishes, request.WishUpgrade...)
	for _, wish := range wishes {
		candidates := s.candidates(wish.Name, []types.Constraint{wish.Constraint})
		if len(candidates) == 0 {
			return nil, false
		}
		clauses = append(clauses, candidates)
	}
	for _, name := range request.WishRemove {
		for _, id := range s.byName[name] {
			clauses = append(clauses, []int{-id})
		}
	}
	return clauses, true
}

// candidates returns the variable IDs of every version of name that
// satisfies all constraints.
func (s satState) candidates(name string, constraints []types.Constraint) []int {
	var out []int
	for _, id := range s.byName[name] {
		if s.cache.SatisfiesAll(s.meta[id].NV.Version, constraints) {
			out = append(out, id)
		}
	}
	return out
}

// solveSAT feeds the clauses to gophersat's optimization solver and
// extracts the selected NV set from the model.
func solveSAT(s satState, clauses [][]int) (types.NVSet, bool) {
	problem := solver.ParseSliceNb(clauses, s.varID)
	problem.SetCostFunc(s.costLits, s.costWeights)
	sat := solver.New(problem)
	if cost := sat.Minimize(); cost < 0 {
		return nil, false
	}
	model := sat.Model()
	selected := types.NVSet{}
	for nv, id := range s.byNV {
		if id-1 < 0 || id-1 >= len(model) {
			continue
		}
		if model[id-1] {
			selected.Add(nv)
		}
	}
	return selected, true
}

// decodeSolution diffs the selected set against the universe's installed
// flags: removals for names that vanished, Change nodes for new or
// replaced versions, Recompile nodes for reinstall-flagged packages and
// for installed packages whose dependencies are themselves rebuilt.
func decodeSolution(s satState, selected types.NVSet) types.Solution {
	installed := types.NVSet{}
	reinstall := types.NVSet{}
	for _, pkg := range s.meta {
		if pkg.Installed {
			installed.Add(pkg.NV)
		}
		if pkg.Reinstall {
			reinstall.Add(pkg.NV)
		}
	}

	selectedNames := map[string]types.NV{}
	for nv := range selected {
		selectedNames[nv.Name] = nv
	}

	var toRemove []types.NV
	for nv := range installed {
		if _, ok := selectedNames[nv.Name]; !ok {
			toRemove = append(toRemove, nv)
		}
	}
	toRemove = orderRemovalsLeavesFirst(s, toRemove)

	actions := map[string]types.Action{}
	for nv := range selected {
		old, wasInstalled := installed.FindName(nv.Name)
		switch {
		case !wasInstalled && reinstall.Contains(nv):
			actions[nv.Name] = types.Action{Kind: types.ActionRecompile, To: nv}
		case !wasInstalled:
			actions[nv.Name] = types.Action{Kind: types.ActionChange, To: nv}
		case old != nv:
			from := old
			actions[nv.Name] = types.Action{Kind: types.ActionChange, From: &from, To: nv}
		case reinstall.Contains(nv):
			actions[nv.Name] = types.Action{Kind: types.ActionRecompile, To: nv}
		}
	}

	// An installed package whose direct dependency is rebuilt must be
	// recompiled as well; iterate to a fixpoint.
	for changed := true; changed; {
		changed = false
		for nv := range selected {
			if _, ok := actions[nv.Name]; ok {
				continue
			}
			if !installed.Contains(nv) {
				continue
			}
			for _, depName := range directDepNames(s, nv) {
				if _, ok := actions[depName]; ok {
					actions[nv.Name] = types.Action{Kind: types.ActionRecompile, To: nv}
					changed = true
					break
				}
			}
		}
	}

	graph := buildActionGraph(s, actions)
	return types.Solution{ToRemove: toRemove, ToAdd: graph}
}

// directDepNames returns the names of nv's direct dependencies, both
// required and optional.
func directDepNames(s satState, nv types.NV) []string {
	id, ok := s.byNV[nv]
	if !ok {
		return nil
	}
	pkg := s.meta[id]
	names := make([]string, 0, len(pkg.Depends)+len(pkg.Depopts))
	for _, dep := range pkg.Depends {
		names = append(names, dep.Name)
	}
	names = append(names, pkg.Depopts...)
	return names
}

// buildActionGraph wires the actions into a DAG whose edges follow the
// selected versions' direct dependencies.
func buildActionGraph(s satState, actions map[string]types.Action) types.ActionGraph {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	index := map[string]int{}
	for i, name := range names {
		index[name] = i
	}
	graph := types.ActionGraph{Nodes: make([]types.ActionNode, len(names))}
	for i, name := range names {
		action := actions[name]
		node := types.ActionNode{Action: action}
		for _, depName := range directDepNames(s, action.To) {
			if depName == name {
				continue
			}
			if j, ok := index[depName]; ok {
				node.Deps = append(node.Deps, j)
			}
		}
		graph.Nodes[i] = node
	}
	return graph
}

// orderRemovalsLeavesFirst orders removals so that a package is removed
// before any package it depends on: dependents are leaves of the
// dependency tree and go first.
func orderRemovalsLeavesFirst(s satState, removals []types.NV) []types.NV {
	removing := map[string]types.NV{}
	for _, nv := range removals {
		removing[nv.Name] = nv
	}
	visited := map[string]bool{}
	var ordered []types.NV
	var visit func(nv types.NV)
	visit = func(nv types.NV) {
		if visited[nv.Name] {
			return
		}
		visited[nv.Name] = true
		// Dependents first: walk every other removal that depends on nv.
		for _, other := range removals {
			if other.Name == nv.Name {
				continue
			}
			for _, depName := range directDepNames(s, other) {
				if depName == nv.Name {
					visit(other)
					break
				}
			}
		}
		ordered = append(ordered, nv)
	}
	sorted := append([]types.NV(nil), removals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, nv := range sorted {
		visit(nv)
	}
	return ordered
}

func (SATSolver) ForwardDependencies(universe []types.UniversePackage, seeds []types.NV) []types.NV {
	dependents := map[string][]types.UniversePackage{}
	for _, pkg := range universe {
		for _, name := range packageDepNames(pkg) {
			dependents[name] = append(dependents[name], pkg)
		}
	}
	return closure(seeds, func(name string) []types.UniversePackage {
		return dependents[name]
	})
}

func (SATSolver) BackwardDependencies(universe []types.UniversePackage, seeds []types.NV) []types.NV {
	byName := map[string][]types.UniversePackage{}
	for _, pkg := range universe {
		byName[pkg.NV.Name] = append(byName[pkg.NV.Name], pkg)
	}
	deps := map[string][]types.UniversePackage{}
	for _, pkg := range universe {
		for _, name := range packageDepNames(pkg) {
			deps[pkg.NV.Name] = append(deps[pkg.NV.Name], byName[name]...)
		}
	}
	return closure(seeds, func(name string) []types.UniversePackage {
		return deps[name]
	})
}

func packageDepNames(pkg types.UniversePackage) []string {
	names := make([]string, 0, len(pkg.Depends)+len(pkg.Depopts))
	for _, dep := range pkg.Depends {
		names = append(names, dep.Name)
	}
	return append(names, pkg.Depopts...)
}

// closure runs a worklist over the step function until no new package
// names appear, returning every reached NV.
func closure(seeds []types.NV, step func(name string) []types.UniversePackage) []types.NV {
	seen := map[types.NV]struct{}{}
	var out []types.NV
	work := append([]types.NV(nil), seeds...)
	for _, seed := range seeds {
		seen[seed] = struct{}{}
		out = append(out, seed)
	}
	for len(work) > 0 {
		current := work[0]
		work = work[1:]
		for _, next := range step(current.Name) {
			if _, ok := seen[next.NV]; ok {
				continue
			}
			seen[next.NV] = struct{}{}
			out = append(out, next.NV)
			work = append(work, next.NV)
		}
	}
	return out
}

var _ ports.SolverPort = SATSolver{}
