package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

// Update pulls every configured repository, recomputes the package
// index with declared-order precedence, surfaces updated packages into
// each switch's reinstall set, rebuilds the derived global views, and
// verifies repository consistency.
func (s *Service) Update(ctx context.Context) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}

	for _, repo := range state.Repositories {
		backend, err := s.Backends.Backend(repo.Kind)
		if err != nil {
			return err
		}
		log.Ctx(ctx).Debug().Str("repository", repo.Name).Msg("pulling repository")
		if err := backend.Update(ctx, s.Root, repo); err != nil {
			return err
		}
	}

	index, err := s.rebuildIndex(state)
	if err != nil {
		return err
	}
	if err := s.propagateUpdated(ctx, state); err != nil {
		return err
	}
	if err := s.relinkGlobalViews(index); err != nil {
		return err
	}
	if err := s.relinkCompilers(state); err != nil {
		return err
	}

	fresh, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	return verifyConsistency(fresh)
}

// rebuildIndex binds each package name to the first configured
// repository that provides it. Declared order is the only tie-break.
func (s *Service) rebuildIndex(state *State) (map[string]string, error) {
	index := map[string]string{}
	for _, repo := range state.Repositories {
		nvs, err := listRepoPackages(s.Root, repo.Name)
		if err != nil {
			return nil, err
		}
		for _, nv := range nvs {
			if _, bound := index[nv.Name]; !bound {
				index[nv.Name] = repo.Name
			}
		}
	}
	if err := adapters.SaveIndex(s.Root, index); err != nil {
		return nil, err
	}
	return index, nil
}

// propagateUpdated reads each repository's updated file, prints the
// changed packages (marking those currently installed), and adds to
// every switch's reinstall set the changed packages installed there.
func (s *Service) propagateUpdated(ctx context.Context, state *State) error {
	updated := types.NVSet{}
	for _, repo := range state.Repositories {
		set, err := adapters.LoadNVSet(paths.RepoUpdated(s.Root, repo.Name))
		if err != nil {
			return err
		}
		for nv := range set {
			updated.Add(nv)
		}
	}
	if len(updated) > 0 {
		var lines []string
		for _, nv := range updated.Sorted() {
			marker := ""
			if state.Installed.Contains(nv) {
				marker = " *"
			}
			lines = append(lines, fmt.Sprintf("  %s%s", nv, marker))
		}
		fmt.Printf("New and updated packages:\n%s\n", strings.Join(lines, "\n"))
	}
	for _, entry := range state.Aliases {
		installed, err := adapters.LoadNVSet(paths.Installed(s.Root, entry.Alias))
		if err != nil {
			return err
		}
		reinstall, err := adapters.LoadNVSet(paths.Reinstall(s.Root, entry.Alias))
		if err != nil {
			return err
		}
		changed := false
		for nv := range updated {
			if installed.Contains(nv) && !reinstall.Contains(nv) {
				reinstall.Add(nv)
				changed = true
			}
		}
		if !changed {
			continue
		}
		log.Ctx(ctx).Debug().Str("switch", entry.Alias).Int("pending", len(reinstall)).Msg("reinstall set grew")
		if err := adapters.SaveNVSet(paths.Reinstall(s.Root, entry.Alias), reinstall); err != nil {
			return err
		}
	}
	return nil
}

// relinkGlobalViews refreshes the opam/ and descr/ symlink views from
// the repository mirrors. A package missing its description is a
// warning, not an error.
func (s *Service) relinkGlobalViews(index map[string]string) error {
	for name, repoName := range index {
		nvs, err := listRepoPackages(s.Root, repoName)
		if err != nil {
			return err
		}
		for _, nv := range nvs {
			if nv.Name != name {
				continue
			}
			if err := refreshLink(paths.RepoOpam(s.Root, repoName, nv), paths.OpamFile(s.Root, nv)); err != nil {
				return err
			}
			descrSrc := paths.RepoDescr(s.Root, repoName, nv)
			if _, err := os.Stat(descrSrc); err != nil {
				log.Warn().Str("package", nv.String()).Msg("package has no description")
				continue
			}
			if err := refreshLink(descrSrc, paths.DescrFile(s.Root, nv)); err != nil {
				return err
			}
		}
	}
	return nil
}

// relinkCompilers refreshes the global compiler/ view from every
// repository's compilers directory.
func (s *Service) relinkCompilers(state *State) error {
	for _, repo := range state.Repositories {
		dir := paths.RepoCompilersDir(s.Root, repo.Name)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to list repository compilers").
				WithCause(err)
		}
		for _, entry := range entries {
			if !strings.HasSuffix(entry.Name(), ".comp") {
				continue
			}
			version := strings.TrimSuffix(entry.Name(), ".comp")
			target := paths.CompilerFile(s.Root, version)
			if _, err := os.Lstat(target); err == nil {
				continue // first repository providing a compiler wins
			}
			if err := refreshLink(paths.RepoCompiler(s.Root, repo.Name, version), target); err != nil {
				return err
			}
		}
	}
	return nil
}

// verifyConsistency checks every available manifest against its file
// location and every declared dependency against the available set.
func verifyConsistency(state *State) error {
	names := map[string]struct{}{}
	for nv := range state.Available {
		names[nv.Name] = struct{}{}
	}
	for _, nv := range state.Available.Sorted() {
		manifest, err := state.Manifest(nv)
		if err != nil {
			return err
		}
		for _, dep := range manifest.Depends {
			if _, ok := names[dep.Name]; !ok {
				return errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("package %s depends on unknown package %s", nv, dep.Name))
			}
		}
		for _, dep := range manifest.Depopts {
			if _, ok := names[dep]; !ok {
				return errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("package %s optionally depends on unknown package %s", nv, dep))
			}
		}
	}
	return nil
}

// listRepoPackages enumerates the NVs present in a repository mirror.
func listRepoPackages(root string, repo string) ([]types.NV, error) {
	entries, err := os.ReadDir(paths.RepoPackagesDir(root, repo))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list repository packages").
			WithCause(err)
	}
	var nvs []types.NV
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		nv, err := types.ParseNV(entry.Name())
		if err != nil {
			continue
		}
		nvs = append(nvs, nv)
	}
	sort.Slice(nvs, func(i, j int) bool { return nvs[i].String() < nvs[j].String() })
	return nvs, nil
}

// refreshLink points target at src, replacing any previous link.
func refreshLink(src string, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create directory for %s", target)).
			WithCause(err)
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to resolve %s", src)).
			WithCause(err)
	}
	if _, err := os.Lstat(target); err == nil {
		if err := os.Remove(target); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to refresh link %s", target)).
				WithCause(err)
		}
	}
	if err := os.Symlink(abs, target); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to link %s", target)).
			WithCause(err)
	}
	return nil
}
