package types

// Repository is one configured package source. Name is unique across the
// global config; the position in GlobalConfig.Repositories is its
// priority (earlier wins).
type Repository struct {
	Name    string   `yaml:"name"`
	Address string   `yaml:"address"`
	Kind    RepoKind `yaml:"kind"`
}

// GlobalConfig is the root-level configuration document.
type GlobalConfig struct {
	OpamVersion  string       `yaml:"opam_version"`
	Repositories []Repository `yaml:"repositories"`
	Alias        string       `yaml:"alias"`
	Jobs         int          `yaml:"jobs"`
}

// FindRepository returns the configured repository with the given name.
func (c GlobalConfig) FindRepository(name string) (Repository, bool) {
	for _, repo := range c.Repositories {
		if repo.Name == name {
			return repo, true
		}
	}
	return Repository{}, false
}

// AliasEntry binds a switch alias to a compiler version.
type AliasEntry struct {
	Alias    string `yaml:"alias"`
	Compiler string `yaml:"compiler"`
}

// AliasMap is the ordered list of switches known to the root. Insertion
// order is preserved; aliases are unique.
type AliasMap []AliasEntry

// Compiler returns the compiler version bound to the alias.
func (m AliasMap) Compiler(alias string) (string, bool) {
	for _, entry := range m {
		if entry.Alias == alias {
			return entry.Compiler, true
		}
	}
	return "", false
}

// With returns a copy of the map with the binding appended. An existing
// binding for the same alias is left in place and wins on lookup.
func (m AliasMap) With(alias string, compiler string) AliasMap {
	if _, ok := m.Compiler(alias); ok {
		return m
	}
	out := make(AliasMap, 0, len(m)+1)
	out = append(out, m...)
	return append(out, AliasEntry{Alias: alias, Compiler: compiler})
}

// Without returns a copy of the map with the alias removed.
func (m AliasMap) Without(alias string) AliasMap {
	out := make(AliasMap, 0, len(m))
	for _, entry := range m {
		if entry.Alias == alias {
			continue
		}
		out = append(out, entry)
	}
	return out
}
