package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

// UploadRequest names the three files of a package release and an
// optional target repository. With no repository the highest-priority
// one receives the upload.
type UploadRequest struct {
	OpamFile    string
	DescrFile   string
	ArchiveFile string
	Repository  string
}

// Upload stages a package release into a repository's mirror, pushes it
// through the backend, and republishes the derived views.
func (s *Service) Upload(ctx context.Context, request UploadRequest) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	if len(state.Repositories) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("no repository is configured")
	}
	repo := state.Repositories[0]
	if request.Repository != "" {
		named, ok := state.Config.FindRepository(request.Repository)
		if !ok {
			return errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("unknown repository %s", request.Repository))
		}
		repo = named
	}

	data, err := os.ReadFile(request.OpamFile)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("manifest %s not found", request.OpamFile)).
			WithCause(err)
	}
	var manifest types.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("manifest %s is invalid", request.OpamFile)).
			WithCause(err)
	}
	nv := manifest.NV()
	if nv.Name == "" || nv.Version == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("manifest %s declares no name.version", request.OpamFile))
	}

	if err := adapters.SaveManifest(paths.RepoOpam(s.Root, repo.Name, nv), manifest); err != nil {
		return err
	}
	if request.DescrFile != "" {
		if err := copyUpload(request.DescrFile, paths.RepoDescr(s.Root, repo.Name, nv)); err != nil {
			return err
		}
	}
	if request.ArchiveFile != "" {
		if err := copyUpload(request.ArchiveFile, paths.RepoArchive(s.Root, repo.Name, nv)); err != nil {
			return err
		}
	}

	backend, err := s.Backends.Backend(repo.Kind)
	if err != nil {
		return err
	}
	if err := backend.Upload(ctx, s.Root, repo); err != nil {
		return err
	}
	return s.Update(ctx)
}

func copyUpload(src string, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("upload file %s not found", src)).
			WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create directory for %s", dst)).
			WithCause(err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", dst)).
			WithCause(err)
	}
	return nil
}
