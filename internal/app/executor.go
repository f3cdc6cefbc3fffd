package app

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/core"
	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

// executeSolution runs a resolved plan: confirmation, sequential
// removals, then the add/recompile DAG on a bounded worker pool. The
// installed set is written only here, after each removal and after each
// successful node, so a crash leaves every package either absent or
// fully installed.
func (s *Service) executeSolution(ctx context.Context, state *State, solution types.Solution) error {
	if solution.Empty() {
		fmt.Println("Nothing to do.")
		return nil
	}
	if !s.confirmSolution(state, solution) {
		fmt.Println("Aborted.")
		return nil
	}

	installed := state.Installed.Clone()
	for _, nv := range solution.ToRemove {
		if !installed.Contains(nv) {
			continue
		}
		if err := s.removeOne(ctx, state, nv); err != nil {
			return err
		}
		installed.Remove(nv)
		if err := adapters.SaveNVSet(paths.Installed(s.Root, state.Alias), installed); err != nil {
			return err
		}
	}

	rebuilt := types.NVSet{}
	for _, node := range solution.ToAdd.Nodes {
		rebuilt.Add(node.Action.To)
	}
	if len(solution.ToAdd.Nodes) > 0 {
		if err := s.runActionGraph(ctx, state, solution.ToAdd, installed); err != nil {
			return err
		}
	}
	return s.clearReinstall(state, installed, rebuilt)
}

// clearReinstall drops reinstall entries that were rebuilt by this run
// or are no longer installed at all.
func (s *Service) clearReinstall(state *State, installed types.NVSet, rebuilt types.NVSet) error {
	reinstall := types.NVSet{}
	for nv := range state.Reinstall {
		if installed.Contains(nv) && !rebuilt.Contains(nv) {
			reinstall.Add(nv)
		}
	}
	return adapters.SaveNVSet(paths.Reinstall(s.Root, state.Alias), reinstall)
}

// confirmSolution prompts when the plan deletes or downgrades a
// package. Pure additions and upgrades proceed unconditionally.
func (s *Service) confirmSolution(state *State, solution types.Solution) bool {
	risky := len(solution.ToRemove) > 0
	for _, node := range solution.ToAdd.Nodes {
		action := node.Action
		if action.Kind == types.ActionChange && action.From != nil &&
			s.Versions.Compare(action.To.Version, action.From.Version) < 0 {
			risky = true
		}
	}
	if !risky {
		return true
	}
	var lines []string
	for _, nv := range solution.ToRemove {
		lines = append(lines, fmt.Sprintf("  remove   %s", nv))
	}
	for _, node := range solution.ToAdd.Nodes {
		action := node.Action
		switch {
		case action.Kind == types.ActionRecompile:
			lines = append(lines, fmt.Sprintf("  rebuild  %s", action.To))
		case action.From != nil:
			lines = append(lines, fmt.Sprintf("  %s -> %s", *action.From, action.To))
		default:
			lines = append(lines, fmt.Sprintf("  install  %s", action.To))
		}
	}
	return s.confirm(fmt.Sprintf("The following actions will be performed:\n%s\nContinue?", strings.Join(lines, "\n")))
}

type nodeResult struct {
	index int
	err   error
}

// runActionGraph schedules the DAG on a pool of workers. A node is
// dispatched only once all its predecessors succeeded; on failure no
// new nodes start but in-flight workers finish, keeping per-package
// cleanup coherent.
func (s *Service) runActionGraph(ctx context.Context, state *State, graph types.ActionGraph, installed types.NVSet) error {
	jobs := state.Config.Jobs
	if jobs < 1 {
		jobs = 1
	}

	remaining := make([]int, len(graph.Nodes))
	dependents := make([][]int, len(graph.Nodes))
	for i, node := range graph.Nodes {
		remaining[i] = len(node.Deps)
		for _, dep := range node.Deps {
			dependents[dep] = append(dependents[dep], i)
		}
	}

	ready := make(chan int, len(graph.Nodes))
	results := make(chan nodeResult, len(graph.Nodes))

	var group errgroup.Group
	for w := 0; w < jobs; w++ {
		group.Go(func() error {
			for index := range ready {
				results <- nodeResult{index: index, err: s.runNode(ctx, graph.Nodes[index].Action)}
			}
			return nil
		})
	}

	outstanding := 0
	for i, count := range remaining {
		if count == 0 {
			ready <- i
			outstanding++
		}
	}

	var firstErr error
	for outstanding > 0 {
		result := <-results
		outstanding--
		action := graph.Nodes[result.index].Action
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
			} else {
				log.Error().Str("package", action.To.String()).Err(result.err).Msg("sibling action failed")
			}
			continue
		}
		if action.From != nil {
			installed.Remove(*action.From)
		}
		if old, ok := installed.FindName(action.To.Name); ok {
			installed.Remove(old)
		}
		installed.Add(action.To)
		if err := adapters.SaveNVSet(paths.Installed(s.Root, state.Alias), installed); err != nil && firstErr == nil {
			firstErr = err
		}
		if firstErr != nil {
			continue
		}
		for _, next := range dependents[result.index] {
			remaining[next]--
			if remaining[next] == 0 {
				ready <- next
				outstanding++
			}
		}
	}
	close(ready)
	_ = group.Wait()
	return firstErr
}

// runNode executes one action against a fresh state snapshot. On an
// install failure the half-installed package is removed before the
// error propagates.
func (s *Service) runNode(ctx context.Context, action types.Action) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	switch action.Kind {
	case types.ActionChange:
		previous := action.From
		if previous == nil {
			if old, ok := state.Installed.FindName(action.To.Name); ok {
				previous = &old
			}
		}
		if previous != nil {
			if err := s.removeOne(ctx, state, *previous); err != nil {
				return err
			}
		}
	case types.ActionRecompile:
		if err := s.removeOne(ctx, state, action.To); err != nil {
			return err
		}
	}
	if err := s.installOne(ctx, state, action.To); err != nil {
		log.Ctx(ctx).Error().Str("package", action.To.String()).Err(err).Msg("install failed, cleaning up")
		if cleanupErr := s.removeOne(ctx, state, action.To); cleanupErr != nil {
			log.Ctx(ctx).Warn().Str("package", action.To.String()).Err(cleanupErr).Msg("cleanup after failed install incomplete")
		}
		return err
	}
	return nil
}

// installOne builds and installs a single NV: extract the archive into
// a clean build directory, apply template substitutions, compose the
// environment, run the build commands, verify the produced build
// config, and copy the declared artifacts.
func (s *Service) installOne(ctx context.Context, state *State, nv types.NV) error {
	manifest, err := state.Manifest(nv)
	if err != nil {
		return err
	}

	buildDir := paths.BuildDir(s.Root, state.Alias, nv)
	if err := os.RemoveAll(buildDir); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to clear build directory of %s", nv)).
			WithCause(err)
	}
	archive, err := s.fetchArchive(ctx, state, nv)
	if err != nil {
		return err
	}
	if err := adapters.ExtractTarGz(archive, buildDir); err != nil {
		return err
	}

	for _, base := range manifest.Substs {
		if err := core.SubstFile(state, filepath.Join(buildDir, base)); err != nil {
			return err
		}
	}

	env, err := state.Environment()
	if err != nil {
		return err
	}
	oldEnv := map[string]string{}
	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok {
			oldEnv[key] = value
		}
	}
	if err := adapters.WriteEnvFile(paths.EnvFile(s.Root, state.Alias, nv), env); err != nil {
		return err
	}
	if err := adapters.WriteEnvFile(paths.OldEnvFile(s.Root, state.Alias, nv), oldEnv); err != nil {
		return err
	}

	for _, command := range manifest.Build {
		if err := s.runCommand(ctx, state, buildDir, env, command); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("build of %s failed", nv)).
				WithCause(err)
		}
	}

	descriptor, _, err := adapters.LoadInstallDescriptor(filepath.Join(buildDir, nv.Name+".install"))
	if err != nil {
		return err
	}
	buildConfig, _, err := adapters.LoadBuildConfig(filepath.Join(buildDir, nv.Name+".config"))
	if err != nil {
		return err
	}
	if err := verifySections(state, manifest, buildConfig); err != nil {
		return err
	}

	if err := s.copyArtifacts(state, nv, buildDir, descriptor); err != nil {
		return err
	}
	if err := adapters.SaveInstallDescriptor(paths.PkgInstall(s.Root, state.Alias, nv.Name), descriptor); err != nil {
		return err
	}
	if err := adapters.SaveBuildConfig(paths.PkgConfig(s.Root, state.Alias, nv.Name), buildConfig); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("package", nv.String()).Msg("installed")
	return nil
}

// fetchArchive downloads the package archive through its repository's
// backend and links it into the global archive view.
func (s *Service) fetchArchive(ctx context.Context, state *State, nv types.NV) (string, error) {
	repoName, ok := state.Index[nv.Name]
	if !ok {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package %s is in no repository", nv.Name))
	}
	repo, ok := state.Config.FindRepository(repoName)
	if !ok {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown repository %s", repoName))
	}
	backend, err := s.Backends.Backend(repo.Kind)
	if err != nil {
		return "", err
	}
	mirror, err := backend.Download(ctx, s.Root, repo, nv)
	if err != nil {
		return "", err
	}
	global := paths.ArchiveFile(s.Root, nv)
	if err := refreshLink(mirror, global); err != nil {
		return "", err
	}
	return global, nil
}

// runCommand string-substitutes each argument and executes the command
// in the build directory under the composed environment.
func (s *Service) runCommand(ctx context.Context, state *State, dir string, env map[string]string, command []string) error {
	if len(command) == 0 {
		return nil
	}
	args := make([]string, 0, len(command))
	for _, arg := range command {
		substituted, err := core.SubstString(state, arg)
		if err != nil {
			return err
		}
		args = append(args, substituted)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // commands come from the package manifest the user chose to install
	cmd.Dir = dir
	cmd.Env = flattenEnv(env)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%q: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(output)), err)
	}
	return nil
}

// execInDir runs a command without argument substitution, used for the
// compiler bootstrap where no package variables exist yet.
func execInDir(ctx context.Context, dir string, env map[string]string, command []string) error {
	if len(command) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...) //nolint:gosec // commands come from the compiler description
	cmd.Dir = dir
	cmd.Env = flattenEnv(env)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%q: %s: %w", strings.Join(command, " "), strings.TrimSpace(string(output)), err)
	}
	return nil
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for key, value := range env {
		out = append(out, key+"="+value)
	}
	return out
}

// verifySections checks the produced build config against the manifest:
// the declared library and syntax sets must match exactly, and every
// required section must resolve locally or in a direct dependency.
func verifySections(state *State, manifest types.Manifest, config types.BuildConfig) error {
	declared := map[string]types.SectionKind{}
	for _, name := range manifest.Libraries {
		declared[name] = types.SectionKindLibrary
	}
	for _, name := range manifest.Syntax {
		declared[name] = types.SectionKindSyntax
	}
	produced := map[string]types.SectionKind{}
	for _, section := range config.Sections {
		produced[section.Name] = section.Kind
	}
	for name, kind := range declared {
		if produced[name] != kind {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("section %s is declared in the manifest but not produced by the build", name))
		}
	}
	for name, kind := range produced {
		if declared[name] != kind {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("section %s is produced by the build but not declared in the manifest", name))
		}
	}

	resolvable := map[string]struct{}{}
	for name := range produced {
		resolvable[name] = struct{}{}
	}
	for _, dep := range manifest.Depends {
		depManifest, err := state.PackageManifest(dep.Name)
		if err != nil {
			continue // missing deps surface through the solver, not here
		}
		for _, name := range depManifest.Libraries {
			resolvable[name] = struct{}{}
		}
		for _, name := range depManifest.Syntax {
			resolvable[name] = struct{}{}
		}
	}
	for _, section := range config.Sections {
		for _, required := range section.Requires {
			if _, ok := resolvable[required]; !ok {
				return errbuilder.New().
					WithCode(errbuilder.CodeFailedPrecondition).
					WithMsg(fmt.Sprintf("section %s requires %s, which no direct dependency provides", section.Name, required))
			}
		}
	}
	return nil
}

// copyArtifacts places the built files: libraries under lib/<pkg>/,
// binaries renamed into bin/, misc pairs at their absolute destinations
// with an overwrite prompt.
func (s *Service) copyArtifacts(state *State, nv types.NV, buildDir string, descriptor types.InstallDescriptor) error {
	libDir := paths.LibDir(s.Root, state.Alias, nv.Name)
	for _, lib := range descriptor.Lib {
		src := filepath.Join(buildDir, lib)
		if err := copyInto(src, filepath.Join(libDir, filepath.Base(lib))); err != nil {
			return err
		}
	}
	binDir := paths.BinDir(s.Root, state.Alias)
	for _, pair := range descriptor.Bin {
		target := filepath.Join(binDir, filepath.Base(pair.Dst))
		if _, err := os.Stat(target); err == nil {
			log.Warn().Str("package", nv.String()).Str("binary", filepath.Base(pair.Dst)).Msg("overwriting existing binary")
		}
		if err := copyInto(filepath.Join(buildDir, pair.Src), target); err != nil {
			return err
		}
		if err := os.Chmod(target, 0o755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to mark %s executable", target)).
				WithCause(err)
		}
	}
	for _, pair := range descriptor.Misc {
		if _, err := os.Stat(pair.Dst); err == nil {
			if !s.confirm(fmt.Sprintf("overwrite %s?", pair.Dst)) {
				continue
			}
		}
		if err := copyInto(filepath.Join(buildDir, pair.Src), pair.Dst); err != nil {
			return err
		}
	}
	return nil
}

func copyInto(src string, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create directory for %s", dst)).
			WithCause(err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("built artifact %s is missing", src)).
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

// removeOne runs the package's remove commands and erases its artifacts
// and metadata. When the build directory is gone the commands run from
// the root instead, with a warning.
func (s *Service) removeOne(ctx context.Context, state *State, nv types.NV) error {
	manifest, manifestErr := state.Manifest(nv)

	env, err := state.Environment()
	if err != nil {
		return err
	}
	dir := paths.BuildDir(s.Root, state.Alias, nv)
	if _, err := os.Stat(dir); err != nil {
		log.Warn().Str("package", nv.String()).Msg("build directory is gone, running remove commands from the root")
		dir = s.Root
	}
	if manifestErr == nil {
		for _, command := range manifest.Remove {
			if err := s.runCommand(ctx, state, dir, env, command); err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeFailedPrecondition).
					WithMsg(fmt.Sprintf("remove of %s failed", nv)).
					WithCause(err)
			}
		}
	}

	descriptor, _, err := adapters.LoadInstallDescriptor(paths.PkgInstall(s.Root, state.Alias, nv.Name))
	if err != nil {
		return err
	}
	if err := os.RemoveAll(paths.LibDir(s.Root, state.Alias, nv.Name)); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to erase lib directory of %s", nv.Name)).
			WithCause(err)
	}
	binDir := paths.BinDir(s.Root, state.Alias)
	for _, pair := range descriptor.Bin {
		_ = os.Remove(filepath.Join(binDir, filepath.Base(pair.Dst)))
	}
	for _, pair := range descriptor.Misc {
		if _, err := os.Stat(pair.Dst); err != nil {
			continue
		}
		if !s.confirm(fmt.Sprintf("delete %s?", pair.Dst)) {
			continue
		}
		_ = os.Remove(pair.Dst)
	}
	_ = os.Remove(paths.PkgInstall(s.Root, state.Alias, nv.Name))
	_ = os.Remove(paths.PkgConfig(s.Root, state.Alias, nv.Name))
	log.Ctx(ctx).Info().Str("package", nv.String()).Msg("removed")
	return nil
}
