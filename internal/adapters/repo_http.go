package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cenkalti/backoff/v4"

	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/ports"
	"github.com/RalfJung/opam/internal/shared"
	"github.com/RalfJung/opam/internal/types"
)

// HTTPRepository mirrors a repository served over plain HTTP. The remote
// exposes the mirror layout plus a top-level "index" file listing one NV
// per line; update fetches the index and then each package's manifest
// and description. Transient fetch failures are retried with a constant
// backoff.
type HTTPRepository struct {
	Client *http.Client
}

func NewHTTPRepository() HTTPRepository {
	return HTTPRepository{Client: &http.Client{Timeout: 30 * time.Second}}
}

func (h HTTPRepository) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		response, err := h.Client.Do(request)
		if err != nil {
			return err
		}
		defer response.Body.Close()
		if response.StatusCode == http.StatusNotFound {
			return backoff.Permanent(shared.HTTPStatusError(response.StatusCode, url))
		}
		if response.StatusCode != http.StatusOK {
			return shared.HTTPStatusError(response.StatusCode, url)
		}
		body, err = io.ReadAll(response.Body)
		return err
	}
	err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 3))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (h HTTPRepository) Init(ctx context.Context, root string, repo types.Repository) error {
	if _, err := h.fetch(ctx, strings.TrimSuffix(repo.Address, "/")+"/index"); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("repository %s is unreachable", repo.Address)).
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

func (h HTTPRepository) Update(ctx context.Context, root string, repo types.Repository) error {
	before, err := snapshotManifests(root, repo.Name)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(repo.Address, "/")
	index, err := h.fetch(ctx, base+"/index")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to fetch index of %s", repo.Name)).
			WithCause(err)
	}
	for _, line := range strings.Split(string(index), "\n") {
		entry := strings.TrimSpace(line)
		if entry == "" {
			continue
		}
		nv, err := types.ParseNV(entry)
		if err != nil {
			continue
		}
		manifest, err := h.fetch(ctx, fmt.Sprintf("%s/packages/%s/opam", base, nv))
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to fetch manifest of %s", nv)).
				WithCause(err)
		}
		if err := writeMirrorFile(paths.RepoOpam(root, repo.Name, nv), manifest); err != nil {
			return err
		}
		if descr, err := h.fetch(ctx, fmt.Sprintf("%s/packages/%s/descr", base, nv)); err == nil {
			if err := writeMirrorFile(paths.RepoDescr(root, repo.Name, nv), descr); err != nil {
				return err
			}
		}
	}
	after, err := snapshotManifests(root, repo.Name)
	if err != nil {
		return err
	}
	return writeUpdated(root, repo.Name, before, after)
}

func (h HTTPRepository) Download(ctx context.Context, root string, repo types.Repository, nv types.NV) (string, error) {
	mirror := paths.RepoArchive(root, repo.Name, nv)
	if _, err := os.Stat(mirror); err == nil {
		return mirror, nil
	}
	base := strings.TrimSuffix(repo.Address, "/")
	body, err := h.fetch(ctx, fmt.Sprintf("%s/archives/%s.tar.gz", base, nv))
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no archive for %s in repository %s", nv, repo.Name)).
			WithCause(err)
	}
	if err := writeMirrorFile(mirror, body); err != nil {
		return "", err
	}
	return mirror, nil
}

// FetchFile downloads a single URL to a local path, with the same retry
// policy as mirror pulls.
func (h HTTPRepository) FetchFile(ctx context.Context, url string, target string) error {
	body, err := h.fetch(ctx, url)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to fetch %s", url)).
			WithCause(err)
	}
	return writeMirrorFile(target, body)
}

func (HTTPRepository) Upload(_ context.Context, _ string, repo types.Repository) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("repository %s is read-only over http", repo.Name))
}

func writeMirrorFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create directory for %s", path)).
			WithCause(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", path)).
			WithCause(err)
	}
	return nil
}

var _ ports.RepositoryPort = HTTPRepository{}
