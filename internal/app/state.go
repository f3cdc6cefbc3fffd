package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

// State is an immutable snapshot of the on-disk world, loaded at the
// start of each command. Loading does no network I/O and no writes;
// missing optional files read as empty. Mutations go through file
// writes and require a fresh LoadState to observe.
type State struct {
	Root         string
	Config       types.GlobalConfig
	Aliases      types.AliasMap
	Alias        string
	Compiler     string
	Repositories []types.Repository
	Available    types.NVSet
	Installed    types.NVSet
	Reinstall    types.NVSet
	Index        map[string]string
}

// LoadState reads the global config, resolves the current switch, and
// materializes the available, installed, and reinstall sets plus the
// repository index.
func LoadState(root string) (*State, error) {
	config, err := adapters.LoadGlobalConfig(root)
	if err != nil {
		return nil, err
	}
	aliases, err := adapters.LoadAliases(root)
	if err != nil {
		return nil, err
	}
	compiler, ok := aliases.Compiler(config.Alias)
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("current switch %s is not in the alias map", config.Alias))
	}
	available, err := adapters.ListAvailable(root)
	if err != nil {
		return nil, err
	}
	installed, err := adapters.LoadNVSet(paths.Installed(root, config.Alias))
	if err != nil {
		return nil, err
	}
	reinstall, err := adapters.LoadNVSet(paths.Reinstall(root, config.Alias))
	if err != nil {
		return nil, err
	}
	index, err := adapters.LoadIndex(root)
	if err != nil {
		return nil, err
	}
	return &State{
		Root:         root,
		Config:       config,
		Aliases:      aliases,
		Alias:        config.Alias,
		Compiler:     compiler,
		Repositories: config.Repositories,
		Available:    available,
		Installed:    installed,
		Reinstall:    reinstall,
		Index:        index,
	}, nil
}

// IsInstalled reports whether some version of the package is installed
// in the current switch.
func (s *State) IsInstalled(pkg string) bool {
	_, ok := s.Installed.FindName(pkg)
	return ok
}

// InstalledNames returns the installed package names, sorted.
func (s *State) InstalledNames() []string {
	nvs := s.Installed.Sorted()
	names := make([]string, 0, len(nvs))
	for _, nv := range nvs {
		names = append(names, nv.Name)
	}
	return names
}

// PackageConfig loads the build config installed alongside a package.
func (s *State) PackageConfig(pkg string) (types.BuildConfig, error) {
	config, found, err := adapters.LoadBuildConfig(paths.PkgConfig(s.Root, s.Alias, pkg))
	if err != nil {
		return types.BuildConfig{}, err
	}
	if !found {
		return types.BuildConfig{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package %s has no build config", pkg))
	}
	return config, nil
}

// PackageManifest loads the manifest of the installed version of pkg.
func (s *State) PackageManifest(pkg string) (types.Manifest, error) {
	nv, ok := s.Installed.FindName(pkg)
	if !ok {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package %s is not installed", pkg))
	}
	return s.Manifest(nv)
}

// Manifest loads an available NV's manifest from the global view.
func (s *State) Manifest(nv types.NV) (types.Manifest, error) {
	return adapters.LoadManifest(paths.OpamFile(s.Root, nv), nv)
}

// AvailableVersions returns every available version string of a name.
func (s *State) AvailableVersions(name string) []string {
	var versions []string
	for nv := range s.Available {
		if nv.Name == name {
			versions = append(versions, nv.Version)
		}
	}
	return versions
}

// KnownPackage reports whether any version of the name is available.
func (s *State) KnownPackage(name string) bool {
	return len(s.AvailableVersions(name)) > 0
}

// Universe assembles the solver universe from the available manifests.
// The installed flag follows the request kind: upgrades treat
// reinstall-pending packages as not installed so the solver is free to
// move them; all other requests see the plain installed set.
func (s *State) Universe(kind types.RequestKind) ([]types.UniversePackage, error) {
	universe := make([]types.UniversePackage, 0, len(s.Available))
	for _, nv := range s.Available.Sorted() {
		manifest, err := s.Manifest(nv)
		if err != nil {
			return nil, err
		}
		installed := s.Installed.Contains(nv)
		if kind == types.RequestUpgrade {
			installed = installed && !s.Reinstall.Contains(nv)
		}
		universe = append(universe, types.UniversePackage{
			NV:        nv,
			Depends:   manifest.Depends,
			Depopts:   manifest.Depopts,
			Conflicts: manifest.Conflicts,
			Installed: installed,
			Reinstall: s.Reinstall.Contains(nv),
		})
	}
	return universe, nil
}

// Environment composes the process environment of the current switch:
// the compiler description's env block applied over the inherited
// environment, then the switch bin directory prepended to PATH.
func (s *State) Environment() (map[string]string, error) {
	env := map[string]string{}
	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok {
			env[key] = value
		}
	}
	descr, err := adapters.LoadCompilerDescr(paths.CompilerFile(s.Root, s.Compiler))
	if err == nil {
		for _, update := range descr.Env {
			applyEnvUpdate(env, update)
		}
	}
	bin := paths.BinDir(s.Root, s.Alias)
	if current, ok := env["PATH"]; ok && current != "" {
		env["PATH"] = bin + ":" + current
	} else {
		env["PATH"] = bin
	}
	return env, nil
}

// applyEnvUpdate applies one compiler env entry: assignment, colon
// prepend, or colon append.
func applyEnvUpdate(env map[string]string, update types.EnvUpdate) {
	current := env[update.Name]
	switch update.Op {
	case types.EnvOpSet:
		env[update.Name] = update.Value
	case types.EnvOpPrepend:
		if current == "" {
			env[update.Name] = update.Value
		} else {
			env[update.Name] = update.Value + ":" + current
		}
	case types.EnvOpAppend:
		if current == "" {
			env[update.Name] = update.Value
		} else {
			env[update.Name] = current + ":" + update.Value
		}
	}
}
