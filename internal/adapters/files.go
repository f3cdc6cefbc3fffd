// Package adapters implements the on-disk file layer, the repository
// backends, the root lock, and archive handling. Every document is a
// small YAML file; loads of missing optional files return the zero
// value so a fresh root reads as empty.
package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

func readYAML(path string, out interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read %s", path)).
			WithCause(err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid document %s", path)).
			WithCause(err)
	}
	return true, nil
}

func writeYAML(path string, in interface{}) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to encode %s", path)).
			WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create directory for %s", path)).
			WithCause(err)
	}
	// Write-then-rename keeps concurrent readers from observing a
	// partially written document.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", path)).
			WithCause(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", path)).
			WithCause(err)
	}
	return nil
}

// LoadGlobalConfig reads the root config. A missing file means the root
// has not been initialized.
func LoadGlobalConfig(root string) (types.GlobalConfig, error) {
	var config types.GlobalConfig
	found, err := readYAML(paths.Config(root), &config)
	if err != nil {
		return types.GlobalConfig{}, err
	}
	if !found {
		return types.GlobalConfig{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("%s does not exist, run \"opam init\" first", root))
	}
	return config, nil
}

func SaveGlobalConfig(root string, config types.GlobalConfig) error {
	return writeYAML(paths.Config(root), config)
}

func LoadAliases(root string) (types.AliasMap, error) {
	var aliases types.AliasMap
	if _, err := readYAML(paths.Aliases(root), &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}

func SaveAliases(root string, aliases types.AliasMap) error {
	return writeYAML(paths.Aliases(root), aliases)
}

// LoadIndex reads the package-name to repository-name binding.
func LoadIndex(root string) (map[string]string, error) {
	index := map[string]string{}
	if _, err := readYAML(paths.Index(root), &index); err != nil {
		return nil, err
	}
	return index, nil
}

func SaveIndex(root string, index map[string]string) error {
	return writeYAML(paths.Index(root), index)
}

// LoadNVSet reads a set-of-packages file (installed, reinstall,
// updated). Serialized as a sorted list of name/version records, so a
// version containing dots reads back unchanged.
func LoadNVSet(path string) (types.NVSet, error) {
	var entries []types.NV
	if _, err := readYAML(path, &entries); err != nil {
		return nil, err
	}
	set := types.NVSet{}
	for _, entry := range entries {
		set.Add(entry)
	}
	return set, nil
}

func SaveNVSet(path string, set types.NVSet) error {
	return writeYAML(path, set.Sorted())
}

// LoadManifest reads a package manifest and verifies that its declared
// name and version match the expected NV of its location.
func LoadManifest(path string, expected types.NV) (types.Manifest, error) {
	var manifest types.Manifest
	found, err := readYAML(path, &manifest)
	if err != nil {
		return types.Manifest{}, err
	}
	if !found {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no manifest for %s at %s", expected, path))
	}
	if manifest.NV() != expected {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("manifest %s declares %s, expected %s", path, manifest.NV(), expected))
	}
	return manifest, nil
}

func SaveManifest(path string, manifest types.Manifest) error {
	return writeYAML(path, manifest)
}

func LoadInstallDescriptor(path string) (types.InstallDescriptor, bool, error) {
	var descriptor types.InstallDescriptor
	found, err := readYAML(path, &descriptor)
	return descriptor, found, err
}

func SaveInstallDescriptor(path string, descriptor types.InstallDescriptor) error {
	return writeYAML(path, descriptor)
}

func LoadBuildConfig(path string) (types.BuildConfig, bool, error) {
	var config types.BuildConfig
	found, err := readYAML(path, &config)
	return config, found, err
}

func SaveBuildConfig(path string, config types.BuildConfig) error {
	return writeYAML(path, config)
}

func LoadCompilerDescr(path string) (types.CompilerDescr, error) {
	var descr types.CompilerDescr
	found, err := readYAML(path, &descr)
	if err != nil {
		return types.CompilerDescr{}, err
	}
	if !found {
		return types.CompilerDescr{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no compiler description at %s", path))
	}
	return descr, nil
}

func SaveCompilerDescr(path string, descr types.CompilerDescr) error {
	return writeYAML(path, descr)
}

func LoadRepoConfig(root string, name string) (types.Repository, error) {
	var repo types.Repository
	found, err := readYAML(paths.RepoConfig(root, name), &repo)
	if err != nil {
		return types.Repository{}, err
	}
	if !found {
		return types.Repository{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("repository %s has no mirror config", name))
	}
	return repo, nil
}

func SaveRepoConfig(root string, repo types.Repository) error {
	return writeYAML(paths.RepoConfig(root, repo.Name), repo)
}

// LoadDescr reads a description file: first line is the synopsis, the
// rest is the body. Missing files read as empty.
func LoadDescr(path string) (synopsis string, body string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ""
	}
	content := string(data)
	if idx := strings.Index(content, "\n"); idx >= 0 {
		return strings.TrimSpace(content[:idx]), strings.TrimRight(content[idx+1:], "\n")
	}
	return strings.TrimSpace(content), ""
}

// ListAvailable enumerates the global opam dir into the set of available
// NVs. A missing dir reads as empty.
func ListAvailable(root string) (types.NVSet, error) {
	entries, err := os.ReadDir(paths.OpamDir(root))
	if os.IsNotExist(err) {
		return types.NVSet{}, nil
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list available packages").
			WithCause(err)
	}
	available := types.NVSet{}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".opam") {
			continue
		}
		nv, err := types.ParseNV(strings.TrimSuffix(name, ".opam"))
		if err != nil {
			continue
		}
		available.Add(nv)
	}
	return available, nil
}

// WriteEnvFile persists a composed environment as KEY=VALUE lines,
// sorted for stable output.
func WriteEnvFile(path string, env map[string]string) error {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var builder strings.Builder
	for _, key := range keys {
		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(env[key])
		builder.WriteString("\n")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create directory for %s", path)).
			WithCause(err)
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", path)).
			WithCause(err)
	}
	return nil
}
