package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

// localAddress strips an optional file:// scheme from a local repository
// address.
func localAddress(address string) string {
	return strings.TrimPrefix(address, "file://")
}

// snapshotManifests hashes every package manifest in the repository's
// mirror, keyed by NV string. Used to compute the updated set across a
// pull.
func snapshotManifests(root string, repo string) (map[string]string, error) {
	hashes := map[string]string{}
	pkgsDir := paths.RepoPackagesDir(root, repo)
	entries, err := os.ReadDir(pkgsDir)
	if os.IsNotExist(err) {
		return hashes, nil
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list repository packages").
			WithCause(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(pkgsDir, entry.Name(), "opam"))
		if err != nil {
			continue
		}
		sum := sha256.Sum256(data)
		hashes[entry.Name()] = hex.EncodeToString(sum[:])
	}
	return hashes, nil
}

// writeUpdated diffs two manifest snapshots and persists the set of new
// or changed NVs as the repository's updated file.
func writeUpdated(root string, repo string, before map[string]string, after map[string]string) error {
	updated := types.NVSet{}
	for name, hash := range after {
		if prev, ok := before[name]; ok && prev == hash {
			continue
		}
		nv, err := types.ParseNV(name)
		if err != nil {
			continue
		}
		updated.Add(nv)
	}
	return SaveNVSet(paths.RepoUpdated(root, repo), updated)
}

// copyTree recursively copies src into dst, replacing existing files.
// A missing source is not an error; repositories may lack archives or
// compilers.
func copyTree(src string, dst string) error {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to stat %s", src)).
			WithCause(err)
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read %s", src)).
			WithCause(err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create %s", dst)).
			WithCause(err)
	}
	for _, entry := range entries {
		if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to open %s", src)).
			WithCause(err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create directory for %s", dst)).
			WithCause(err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create %s", dst)).
			WithCause(err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to copy %s", src)).
			WithCause(err)
	}
	return nil
}
