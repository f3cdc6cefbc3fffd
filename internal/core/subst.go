package core

import (
	"fmt"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/types"
)

// VariableEnv resolves package-qualified variables against the current
// switch. The app-layer State implements it.
type VariableEnv interface {
	IsInstalled(pkg string) bool
	PackageConfig(pkg string) (types.BuildConfig, error)
}

// EvalVariable evaluates a full variable against the environment.
// "enable" and "installed" are synthetic and defined for every package;
// any other variable requires the package to be installed.
func EvalVariable(env VariableEnv, v types.FullVariable) (types.VariableValue, error) {
	if v.Section == "" {
		switch v.Variable {
		case "enable":
			if env.IsInstalled(v.Package) {
				return types.StringValue("enable"), nil
			}
			return types.StringValue("disable"), nil
		case "installed":
			return types.BoolValue(env.IsInstalled(v.Package)), nil
		}
	}
	if !env.IsInstalled(v.Package) {
		return types.VariableValue{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package %s is not installed", v.Package))
	}
	config, err := env.PackageConfig(v.Package)
	if err != nil {
		return types.VariableValue{}, err
	}
	if v.Section == "" {
		if value, ok := config.Variables[v.Variable]; ok {
			return value, nil
		}
	} else if section, ok := config.FindSection(v.Section); ok {
		if value, ok := section.Variables[v.Variable]; ok {
			return value, nil
		}
	}
	return types.VariableValue{}, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("unknown variable %s", v.String()))
}

// SubstString replaces every %{f}% occurrence whose body parses as a
// full variable with the string form of its value. Bytes outside the
// markers pass through unchanged, each occurrence is replaced exactly
// once, and replacement text is never re-scanned. Markers whose body
// does not parse are left verbatim.
func SubstString(env VariableEnv, input string) (string, error) {
	var out strings.Builder
	rest := input
	for {
		start := strings.Index(rest, "%{")
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		end := strings.Index(rest[start+2:], "}%")
		if end < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		body := rest[start+2 : start+2+end]
		out.WriteString(rest[:start])
		variable, err := types.ParseFullVariable(body)
		if err != nil {
			out.WriteString(rest[start : start+2+end+2])
		} else {
			value, err := EvalVariable(env, variable)
			if err != nil {
				return "", err
			}
			out.WriteString(value.String())
		}
		rest = rest[start+2+end+2:]
	}
}

// SubstFile reads base+".in" and writes base with substitutions applied,
// preserving the file byte-for-byte outside marker occurrences.
func SubstFile(env VariableEnv, base string) error {
	data, err := os.ReadFile(base + ".in")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("substitution template %s.in not found", base)).
			WithCause(err)
	}
	substituted, err := SubstString(env, string(data))
	if err != nil {
		return err
	}
	if err := os.WriteFile(base, []byte(substituted), 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write substituted file %s", base)).
			WithCause(err)
	}
	return nil
}
