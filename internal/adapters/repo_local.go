package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/ports"
	"github.com/RalfJung/opam/internal/types"
)

// LocalRepository mirrors a repository that lives in a directory on the
// same machine. The address is a path, optionally with a file:// scheme.
type LocalRepository struct{}

func NewLocalRepository() LocalRepository {
	return LocalRepository{}
}

func (LocalRepository) Init(_ context.Context, root string, repo types.Repository) error {
	source := localAddress(repo.Address)
	if _, err := os.Stat(source); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("repository address %s does not exist", repo.Address)).
			WithCause(err)
	}
	if err := os.MkdirAll(paths.RepoPackagesDir(root, repo.Name), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create repository mirror").
			WithCause(err)
	}
	return SaveRepoConfig(root, repo)
}

func (LocalRepository) Update(_ context.Context, root string, repo types.Repository) error {
	source := localAddress(repo.Address)
	before, err := snapshotManifests(root, repo.Name)
	if err != nil {
		return err
	}
	for _, sub := range []string{"packages", "archives", "compilers"} {
		if err := copyTree(source+"/"+sub, paths.RepoDir(root, repo.Name)+"/"+sub); err != nil {
			return err
		}
	}
	after, err := snapshotManifests(root, repo.Name)
	if err != nil {
		return err
	}
	return writeUpdated(root, repo.Name, before, after)
}

func (LocalRepository) Download(_ context.Context, root string, repo types.Repository, nv types.NV) (string, error) {
	mirror := paths.RepoArchive(root, repo.Name, nv)
	if _, err := os.Stat(mirror); err == nil {
		return mirror, nil
	}
	source := localAddress(repo.Address) + "/archives/" + nv.String() + ".tar.gz"
	if err := copyFile(source, mirror); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no archive for %s in repository %s", nv, repo.Name)).
			WithCause(err)
	}
	return mirror, nil
}

// Upload pushes the mirror's packages and archives back into the source
// directory, making locally staged uploads visible to other clients.
func (LocalRepository) Upload(_ context.Context, root string, repo types.Repository) error {
	source := localAddress(repo.Address)
	for _, sub := range []string{"packages", "archives", "compilers"} {
		if err := copyTree(paths.RepoDir(root, repo.Name)+"/"+sub, source+"/"+sub); err != nil {
			return err
		}
	}
	return nil
}

var _ ports.RepositoryPort = LocalRepository{}
