package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/Masterminds/vcs"
	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/ports"
	"github.com/RalfJung/opam/internal/types"
)

// GitRepository mirrors a repository hosted in a git remote. The mirror
// is a clone under $ROOT/repo/<name>/; pulls are fast-forward updates.
type GitRepository struct{}

func NewGitRepository() GitRepository {
	return GitRepository{}
}

func gitRepo(root string, repo types.Repository) (*vcs.GitRepo, error) {
	r, err := vcs.NewGitRepo(repo.Address, paths.RepoDir(root, repo.Name))
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid git address %s", repo.Address)).
			WithCause(err)
	}
	return r, nil
}

func (GitRepository) Init(_ context.Context, root string, repo types.Repository) error {
	r, err := gitRepo(root, repo)
	if err != nil {
		return err
	}
	if !r.CheckLocal() {
		if err := r.Get(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to clone %s", repo.Address)).
				WithCause(unwrapVcsErr(err))
		}
	}
	return SaveRepoConfig(root, repo)
}

func (GitRepository) Update(_ context.Context, root string, repo types.Repository) error {
	before, err := snapshotManifests(root, repo.Name)
	if err != nil {
		return err
	}
	r, err := gitRepo(root, repo)
	if err != nil {
		return err
	}
	if r.CheckLocal() {
		err = r.Update()
	} else {
		err = r.Get()
	}
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to pull %s", repo.Address)).
			WithCause(unwrapVcsErr(err))
	}
	after, err := snapshotManifests(root, repo.Name)
	if err != nil {
		return err
	}
	return writeUpdated(root, repo.Name, before, after)
}

// Download expects archives to be committed in the repository; the pull
// already materialized them in the mirror.
func (GitRepository) Download(_ context.Context, root string, repo types.Repository, nv types.NV) (string, error) {
	mirror := paths.RepoArchive(root, repo.Name, nv)
	if _, err := os.Stat(mirror); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no archive for %s in repository %s", nv, repo.Name)).
			WithCause(err)
	}
	return mirror, nil
}

func (GitRepository) Upload(_ context.Context, _ string, repo types.Repository) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("repository %s is git-backed; push packages with git directly", repo.Name))
}

// unwrapVcsErr extracts the command output buried in a vcs error.
func unwrapVcsErr(err error) error {
	switch verr := err.(type) {
	case *vcs.LocalError:
		return fmt.Errorf("%s: %s", verr.Error(), verr.Out())
	case *vcs.RemoteError:
		return fmt.Errorf("%s: %s", verr.Error(), verr.Out())
	default:
		return err
	}
}

var _ ports.RepositoryPort = GitRepository{}
