// Package paths maps logical identifiers (switch, package, repository,
// file kind) to filesystem locations under a single root directory. All
// functions are pure string computations.
package paths

import (
	"path/filepath"

	"github.com/RalfJung/opam/internal/types"
)

// Root-level files.

func Config(root string) string {
	return filepath.Join(root, "config")
}

func Aliases(root string) string {
	return filepath.Join(root, "aliases")
}

func Lock(root string) string {
	return filepath.Join(root, "lock")
}

func Index(root string) string {
	return filepath.Join(root, "repo", "index")
}

// Per-repository mirror, owned by the backend.

func RepoDir(root string, repo string) string {
	return filepath.Join(root, "repo", repo)
}

func RepoConfig(root string, repo string) string {
	return filepath.Join(RepoDir(root, repo), "config")
}

func RepoPackagesDir(root string, repo string) string {
	return filepath.Join(RepoDir(root, repo), "packages")
}

func RepoPackageDir(root string, repo string, nv types.NV) string {
	return filepath.Join(RepoPackagesDir(root, repo), nv.String())
}

func RepoOpam(root string, repo string, nv types.NV) string {
	return filepath.Join(RepoPackageDir(root, repo, nv), "opam")
}

func RepoDescr(root string, repo string, nv types.NV) string {
	return filepath.Join(RepoPackageDir(root, repo, nv), "descr")
}

func RepoArchivesDir(root string, repo string) string {
	return filepath.Join(RepoDir(root, repo), "archives")
}

func RepoArchive(root string, repo string, nv types.NV) string {
	return filepath.Join(RepoArchivesDir(root, repo), nv.String()+".tar.gz")
}

func RepoCompilersDir(root string, repo string) string {
	return filepath.Join(RepoDir(root, repo), "compilers")
}

func RepoCompiler(root string, repo string, version string) string {
	return filepath.Join(RepoCompilersDir(root, repo), version+".comp")
}

func RepoUpdated(root string, repo string) string {
	return filepath.Join(RepoDir(root, repo), "updated")
}

// Global derived views, rebuilt by update.

func OpamDir(root string) string {
	return filepath.Join(root, "opam")
}

func OpamFile(root string, nv types.NV) string {
	return filepath.Join(OpamDir(root), nv.String()+".opam")
}

func DescrDir(root string) string {
	return filepath.Join(root, "descr")
}

func DescrFile(root string, nv types.NV) string {
	return filepath.Join(DescrDir(root), nv.String())
}

func ArchiveDir(root string) string {
	return filepath.Join(root, "archive")
}

func ArchiveFile(root string, nv types.NV) string {
	return filepath.Join(ArchiveDir(root), nv.String()+".tar.gz")
}

func CompilerDir(root string) string {
	return filepath.Join(root, "compiler")
}

func CompilerFile(root string, version string) string {
	return filepath.Join(CompilerDir(root), version+".comp")
}

// Per-switch tree.

func SwitchDir(root string, alias string) string {
	return filepath.Join(root, alias)
}

func Installed(root string, alias string) string {
	return filepath.Join(SwitchDir(root, alias), "installed")
}

func Reinstall(root string, alias string) string {
	return filepath.Join(SwitchDir(root, alias), "reinstall")
}

func PkgConfig(root string, alias string, pkg string) string {
	return filepath.Join(SwitchDir(root, alias), "config", pkg+".config")
}

func PkgInstall(root string, alias string, pkg string) string {
	return filepath.Join(SwitchDir(root, alias), "install", pkg+".install")
}

func BuildDir(root string, alias string, nv types.NV) string {
	return filepath.Join(SwitchDir(root, alias), "build", nv.String())
}

func EnvFile(root string, alias string, nv types.NV) string {
	return filepath.Join(BuildDir(root, alias, nv), "environment")
}

func OldEnvFile(root string, alias string, nv types.NV) string {
	return filepath.Join(BuildDir(root, alias, nv), "environment.old")
}

func LibDir(root string, alias string, pkg string) string {
	return filepath.Join(SwitchDir(root, alias), "lib", pkg)
}

func BinDir(root string, alias string) string {
	return filepath.Join(SwitchDir(root, alias), "bin")
}

func DocDir(root string, alias string) string {
	return filepath.Join(SwitchDir(root, alias), "doc")
}

func StublibsDir(root string, alias string) string {
	return filepath.Join(SwitchDir(root, alias), "stublibs")
}
