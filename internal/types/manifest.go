package types

// Constraint is a version relation attached to a dependency or conflict.
// An empty Op means any version.
type Constraint struct {
	Op      ConstraintOp `yaml:"op,omitempty"`
	Version string       `yaml:"version,omitempty"`
}

// Dependency names a required package with optional version constraints.
// All constraints must hold simultaneously.
type Dependency struct {
	Name        string       `yaml:"name"`
	Constraints []Constraint `yaml:"constraints,omitempty"`
}

// Manifest is the per-package metadata document ("opam file"). The
// declared Name and Version must match the file's location.
type Manifest struct {
	Name      string       `yaml:"name"`
	Version   string       `yaml:"version"`
	Depends   []Dependency `yaml:"depends,omitempty"`
	Depopts   []string     `yaml:"depopts,omitempty"`
	Conflicts []Dependency `yaml:"conflicts,omitempty"`
	Build     [][]string   `yaml:"build,omitempty"`
	Remove    [][]string   `yaml:"remove,omitempty"`
	Substs    []string     `yaml:"substs,omitempty"`
	Libraries []string     `yaml:"libraries,omitempty"`
	Syntax    []string     `yaml:"syntax,omitempty"`
}

func (m Manifest) NV() NV {
	return NV{Name: m.Name, Version: m.Version}
}

// MovePair is one artifact copy: a build-relative source and a
// destination. For bin entries the destination is a basename under the
// switch bin directory; for misc entries it is an absolute path.
type MovePair struct {
	Src string `yaml:"src"`
	Dst string `yaml:"dst"`
}

// InstallDescriptor lists the artifacts to copy after a successful
// build: library files, renamed binaries, and misc absolute-path pairs.
type InstallDescriptor struct {
	Lib  []string   `yaml:"lib,omitempty"`
	Bin  []MovePair `yaml:"bin,omitempty"`
	Misc []MovePair `yaml:"misc,omitempty"`
}

// Section is a library or syntax extension exported by a package,
// carrying its own variables and the sections it requires.
type Section struct {
	Name      string                   `yaml:"name"`
	Kind      SectionKind              `yaml:"kind"`
	Requires  []string                 `yaml:"requires,omitempty"`
	Variables map[string]VariableValue `yaml:"variables,omitempty"`
}

// BuildConfig is the runtime-queryable configuration a package installs
// alongside itself: global variables plus per-section variables.
type BuildConfig struct {
	Variables map[string]VariableValue `yaml:"variables,omitempty"`
	Sections  []Section                `yaml:"sections,omitempty"`
}

// FindSection returns the section with the given name.
func (c BuildConfig) FindSection(name string) (Section, bool) {
	for _, section := range c.Sections {
		if section.Name == name {
			return section, true
		}
	}
	return Section{}, false
}

// EnvUpdate is one environment mutation from a compiler description.
type EnvUpdate struct {
	Name  string `yaml:"name"`
	Op    EnvOp  `yaml:"op"`
	Value string `yaml:"value"`
}

// CompilerDescr describes how to obtain and build one compiler release,
// and what the resulting switch provides.
type CompilerDescr struct {
	Version          string      `yaml:"version"`
	Source           string      `yaml:"source,omitempty"`
	Patches          []string    `yaml:"patches,omitempty"`
	Configure        []string    `yaml:"configure,omitempty"`
	Make             []string    `yaml:"make,omitempty"`
	Env              []EnvUpdate `yaml:"env,omitempty"`
	RequiredSections []string    `yaml:"required_sections,omitempty"`
	Packages         []string    `yaml:"packages,omitempty"`
	Preinstalled     bool        `yaml:"preinstalled,omitempty"`
	Bytecomp         []string    `yaml:"bytecomp,omitempty"`
	Asmcomp          []string    `yaml:"asmcomp,omitempty"`
	Bytelink         []string    `yaml:"bytelink,omitempty"`
	Asmlink          []string    `yaml:"asmlink,omitempty"`
}
