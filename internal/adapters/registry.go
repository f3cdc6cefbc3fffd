package adapters

import (
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/ports"
	"github.com/RalfJung/opam/internal/types"
)

// BackendRegistry maps repository kinds to their backend implementation.
type BackendRegistry struct {
	backends map[types.RepoKind]ports.RepositoryPort
}

func NewBackendRegistry() BackendRegistry {
	return BackendRegistry{
		backends: map[types.RepoKind]ports.RepositoryPort{
			types.RepoKindLocal: NewLocalRepository(),
			types.RepoKindGit:   NewGitRepository(),
			types.RepoKindHTTP:  NewHTTPRepository(),
		},
	}
}

func (r BackendRegistry) Backend(kind types.RepoKind) (ports.RepositoryPort, error) {
	backend, ok := r.backends[kind]
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown repository kind %q", kind))
	}
	return backend, nil
}

var _ ports.RepositoryRegistry = BackendRegistry{}
