package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

// Init creates the root: global config, directories, the first
// repository's mirror, and the initial switch. A failure rolls the
// whole root back.
func (s *Service) Init(ctx context.Context, repo types.Repository, alias string, compiler string, jobs int) error {
	assert.NotEmpty(ctx, repo.Name, "repository name must be set")
	assert.NotEmpty(ctx, repo.Address, "repository address must be set")
	assert.NotEmpty(ctx, alias, "switch alias must be set")
	assert.NotEmpty(ctx, compiler, "compiler version must be set")
	if _, err := os.Stat(paths.Config(s.Root)); err == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg(fmt.Sprintf("%s is already initialized", s.Root))
	}
	if jobs < 1 {
		jobs = 1
	}
	if err := s.initRoot(ctx, repo, alias, compiler, jobs); err != nil {
		if rmErr := os.RemoveAll(s.Root); rmErr != nil {
			log.Ctx(ctx).Warn().Err(rmErr).Msg("failed to roll back root directory")
		}
		return err
	}
	return nil
}

func (s *Service) initRoot(ctx context.Context, repo types.Repository, alias string, compiler string, jobs int) error {
	for _, dir := range []string{
		paths.OpamDir(s.Root),
		paths.DescrDir(s.Root),
		paths.ArchiveDir(s.Root),
		paths.CompilerDir(s.Root),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create root directories").
				WithCause(err)
		}
	}
	config := types.GlobalConfig{
		OpamVersion:  "1",
		Repositories: []types.Repository{repo},
		Alias:        alias,
		Jobs:         jobs,
	}
	if err := adapters.SaveGlobalConfig(s.Root, config); err != nil {
		return err
	}
	backend, err := s.Backends.Backend(repo.Kind)
	if err != nil {
		return err
	}
	if err := backend.Init(ctx, s.Root, repo); err != nil {
		return err
	}
	return s.InitSwitch(ctx, alias, compiler)
}

// InitSwitch creates a switch for the compiler version: the directory
// tree, an empty installed set, the alias-map entry, the synthetic
// compiler-config package, a repository sync, and the compiler build
// itself unless it is preinstalled. Failures roll back the switch
// directory and the alias-map entry.
func (s *Service) InitSwitch(ctx context.Context, alias string, compiler string) error {
	switchDir := paths.SwitchDir(s.Root, alias)
	if _, err := os.Stat(switchDir); err == nil {
		return nil
	}
	aliasesBefore, err := adapters.LoadAliases(s.Root)
	if err != nil {
		return err
	}
	if err := s.initSwitchDirs(ctx, alias, compiler); err != nil {
		if rmErr := os.RemoveAll(switchDir); rmErr != nil {
			log.Ctx(ctx).Warn().Err(rmErr).Msg("failed to roll back switch directory")
		}
		if saveErr := adapters.SaveAliases(s.Root, aliasesBefore); saveErr != nil {
			log.Ctx(ctx).Warn().Err(saveErr).Msg("failed to roll back alias map")
		}
		return err
	}
	return nil
}

func (s *Service) initSwitchDirs(ctx context.Context, alias string, compiler string) error {
	for _, dir := range []string{
		paths.BinDir(s.Root, alias),
		paths.DocDir(s.Root, alias),
		paths.StublibsDir(s.Root, alias),
		filepath.Join(paths.SwitchDir(s.Root, alias), "lib"),
		filepath.Join(paths.SwitchDir(s.Root, alias), "build"),
		filepath.Join(paths.SwitchDir(s.Root, alias), "config"),
		filepath.Join(paths.SwitchDir(s.Root, alias), "install"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create switch directories").
				WithCause(err)
		}
	}

	base := types.NV{Name: types.BasePackage, Version: compiler}
	installed := types.NewNVSet(base)
	if err := adapters.SaveNVSet(paths.Installed(s.Root, alias), installed); err != nil {
		return err
	}

	aliases, err := adapters.LoadAliases(s.Root)
	if err != nil {
		return err
	}
	if err := adapters.SaveAliases(s.Root, aliases.With(alias, compiler)); err != nil {
		return err
	}

	// The synthetic compiler-config package records the switch layout
	// as queryable variables.
	switchDir := paths.SwitchDir(s.Root, alias)
	baseConfig := types.BuildConfig{
		Variables: map[string]types.VariableValue{
			"prefix": types.StringValue(switchDir),
			"lib":    types.StringValue(filepath.Join(switchDir, "lib")),
			"bin":    types.StringValue(paths.BinDir(s.Root, alias)),
			"doc":    types.StringValue(paths.DocDir(s.Root, alias)),
		},
	}
	if err := adapters.SaveBuildConfig(paths.PkgConfig(s.Root, alias, types.BasePackage), baseConfig); err != nil {
		return err
	}

	if err := s.Update(ctx); err != nil {
		return err
	}

	descrPath := paths.CompilerFile(s.Root, compiler)
	if _, err := os.Stat(descrPath); err != nil {
		log.Ctx(ctx).Debug().Str("compiler", compiler).Msg("no compiler description, assuming preinstalled")
		return nil
	}
	descr, err := adapters.LoadCompilerDescr(descrPath)
	if err != nil {
		return err
	}
	if descr.Preinstalled {
		return nil
	}
	return s.buildCompiler(ctx, alias, descr)
}

// buildCompiler bootstraps a compiler from source: fetch, extract,
// patch, configure with the switch as prefix, make, make install.
func (s *Service) buildCompiler(ctx context.Context, alias string, descr types.CompilerDescr) error {
	buildDir := paths.BuildDir(s.Root, alias, types.NV{Name: "compiler", Version: descr.Version})
	if err := os.RemoveAll(buildDir); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to clear compiler build directory").
			WithCause(err)
	}
	archive, err := s.fetchCompilerSource(ctx, descr)
	if err != nil {
		return err
	}
	if err := adapters.ExtractTarGz(archive, buildDir); err != nil {
		return err
	}

	env := map[string]string{}
	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok {
			env[key] = value
		}
	}
	for _, update := range descr.Env {
		applyEnvUpdate(env, update)
	}

	commands := [][]string{}
	for _, patch := range descr.Patches {
		commands = append(commands, []string{"patch", "-p1", "-i", patch})
	}
	configure := append([]string{"./configure"}, descr.Configure...)
	configure = append(configure, "-prefix", paths.SwitchDir(s.Root, alias))
	commands = append(commands, configure)
	commands = append(commands, append([]string{"make"}, descr.Make...))
	commands = append(commands, []string{"make", "install"})

	for _, command := range commands {
		if err := execInDir(ctx, buildDir, env, command); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("compiler %s build failed", descr.Version)).
				WithCause(err)
		}
	}
	return nil
}

// fetchCompilerSource materializes the compiler source archive, either
// over http or from a local path.
func (s *Service) fetchCompilerSource(ctx context.Context, descr types.CompilerDescr) (string, error) {
	if descr.Source == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("compiler %s has no source", descr.Version))
	}
	if strings.HasPrefix(descr.Source, "http://") || strings.HasPrefix(descr.Source, "https://") {
		http := adapters.NewHTTPRepository()
		target := filepath.Join(paths.CompilerDir(s.Root), descr.Version+".tar.gz")
		if err := http.FetchFile(ctx, descr.Source, target); err != nil {
			return "", err
		}
		return target, nil
	}
	return strings.TrimPrefix(descr.Source, "file://"), nil
}

// Switch selects (and if needed creates) a switch, then installs the
// compiler's required packages, plus a clone of the previous switch's
// installed set when requested.
func (s *Service) Switch(ctx context.Context, clone bool, alias string, compiler string) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	previousInstalled := state.Installed.Clone()

	if existing, ok := state.Aliases.Compiler(alias); ok {
		compiler = existing
	} else if compiler == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("switch %s does not exist, a compiler version is required", alias))
	}

	if err := s.InitSwitch(ctx, alias, compiler); err != nil {
		return err
	}
	config := state.Config
	config.Alias = alias
	if err := adapters.SaveGlobalConfig(s.Root, config); err != nil {
		return err
	}

	fresh, err := LoadState(s.Root)
	if err != nil {
		return err
	}

	request := types.Request{Kind: types.RequestSwitch}
	wanted := map[string]struct{}{}
	if descr, err := adapters.LoadCompilerDescr(paths.CompilerFile(s.Root, compiler)); err == nil {
		for _, name := range descr.Packages {
			wanted[name] = struct{}{}
		}
	}
	if clone {
		for nv := range previousInstalled {
			if nv.Name == types.BasePackage {
				continue
			}
			wanted[nv.Name] = struct{}{}
		}
	}
	for name := range wanted {
		versions := fresh.AvailableVersions(name)
		if len(versions) == 0 {
			log.Ctx(ctx).Warn().Str("package", name).Msg("package is not available, skipping")
			continue
		}
		latest, _ := s.Versions.Latest(versions)
		request.WishInstall = append(request.WishInstall, types.Wish{
			Name:       name,
			Constraint: types.Constraint{Op: types.ConstraintOpEq, Version: latest},
		})
	}
	if len(request.WishInstall) == 0 {
		fmt.Printf("Now using switch %s (compiler %s).\n", alias, compiler)
		return nil
	}

	universe, err := fresh.Universe(types.RequestSwitch)
	if err != nil {
		return err
	}
	solution, err := s.Solver.Resolve(ctx, universe, request)
	if err != nil {
		return err
	}
	if solution == nil {
		return noSolution()
	}
	if err := s.executeSolution(ctx, fresh, *solution); err != nil {
		return err
	}
	fmt.Printf("Now using switch %s (compiler %s).\n", alias, compiler)
	return nil
}
