package types

// RepoKind selects the repository backend implementation.
type RepoKind string

const (
	RepoKindGit   RepoKind = "git"
	RepoKindHTTP  RepoKind = "http"
	RepoKindLocal RepoKind = "local"
)

// ConstraintOp is a version relation inside a dependency or conflict.
type ConstraintOp string

const (
	ConstraintOpNone ConstraintOp = ""
	ConstraintOpEq   ConstraintOp = "="
	ConstraintOpNe   ConstraintOp = "!="
	ConstraintOpGte  ConstraintOp = ">="
	ConstraintOpLte  ConstraintOp = "<="
	ConstraintOpGt   ConstraintOp = ">"
	ConstraintOpLt   ConstraintOp = "<"
)

// SectionKind distinguishes the two kinds of sections a package exports.
type SectionKind string

const (
	SectionKindLibrary SectionKind = "library"
	SectionKindSyntax  SectionKind = "syntax"
)

// EnvOp is the update operator of a compiler environment entry.
// "=" assigns, "+=" prepends with a colon, "=+" appends with a colon.
type EnvOp string

const (
	EnvOpSet     EnvOp = "="
	EnvOpPrepend EnvOp = "+="
	EnvOpAppend  EnvOp = "=+"
)

// BasePackage is the reserved name of the synthetic per-switch package
// that carries the compiler's prefix/lib/bin/doc variables. It cannot be
// installed or removed by user request.
const BasePackage = "base"
