package ports

import (
	"context"

	"github.com/RalfJung/opam/internal/types"
)

// RepositoryPort is the backend contract shared by the git, http, and
// local repository kinds. Each operation works on the repository's local
// mirror under $ROOT/repo/<name>/.
type RepositoryPort interface {
	// Init creates the local mirror for a newly configured repository.
	Init(ctx context.Context, root string, repo types.Repository) error

	// Update refreshes the mirror and writes the repository's "updated"
	// file listing the NVs whose metadata changed since the last pull.
	Update(ctx context.Context, root string, repo types.Repository) error

	// Download ensures the archive for nv is present in the mirror and
	// returns its path.
	Download(ctx context.Context, root string, repo types.Repository, nv types.NV) (string, error)

	// Upload pushes locally staged packages back to the repository.
	Upload(ctx context.Context, root string, repo types.Repository) error
}

// RepositoryRegistry selects a backend implementation by kind.
type RepositoryRegistry interface {
	Backend(kind types.RepoKind) (RepositoryPort, error)
}
