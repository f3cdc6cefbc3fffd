package ports

import (
	"context"

	"github.com/RalfJung/opam/internal/types"
)

// SolverPort turns a package universe plus a user request into an action
// plan. A nil Solution with a nil error means the request has no
// solution; the caller reports it as an error without touching state.
// A request that is already satisfied yields an empty Solution.
type SolverPort interface {
	Resolve(ctx context.Context, universe []types.UniversePackage, request types.Request) (*types.Solution, error)

	// ForwardDependencies returns the seeds plus every universe package
	// that transitively depends on one of them.
	ForwardDependencies(universe []types.UniversePackage, seeds []types.NV) []types.NV

	// BackwardDependencies returns the seeds plus every package one of
	// them transitively depends on.
	BackwardDependencies(universe []types.UniversePackage, seeds []types.NV) []types.NV
}
