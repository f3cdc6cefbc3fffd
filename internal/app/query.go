package app

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/core"
	"github.com/RalfJung/opam/internal/paths"
	"github.com/RalfJung/opam/internal/types"
)

// List prints every known package with its installed version (or "--")
// and its synopsis, padded to column widths computed over the set.
func (s *Service) List() error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	names := map[string]struct{}{}
	for nv := range state.Available {
		names[nv.Name] = struct{}{}
	}
	for nv := range state.Installed {
		names[nv.Name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	type row struct {
		name     string
		version  string
		synopsis string
	}
	rows := make([]row, 0, len(sorted))
	nameWidth, versionWidth := 0, 0
	for _, name := range sorted {
		version := "--"
		var descrNV types.NV
		if nv, ok := state.Installed.FindName(name); ok {
			version = nv.Version
			descrNV = nv
		} else if latest, ok := s.Versions.Latest(state.AvailableVersions(name)); ok {
			descrNV = types.NV{Name: name, Version: latest}
		}
		synopsis, _ := adapters.LoadDescr(paths.DescrFile(s.Root, descrNV))
		rows = append(rows, row{name: name, version: version, synopsis: synopsis})
		if len(name) > nameWidth {
			nameWidth = len(name)
		}
		if len(version) > versionWidth {
			versionWidth = len(version)
		}
	}
	for _, r := range rows {
		fmt.Printf("%-*s  %-*s  %s\n", nameWidth, r.name, versionWidth, r.version, r.synopsis)
	}
	return nil
}

// Info prints one package's installed version, its other available
// versions, its library and syntax sections, and its description.
func (s *Service) Info(name string) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	versions := state.AvailableVersions(name)
	installed, isInstalled := state.Installed.FindName(name)
	if len(versions) == 0 && !isInstalled {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown package %s", name))
	}

	fmt.Printf("package: %s\n", name)
	if isInstalled {
		fmt.Printf("installed-version: %s\n", installed.Version)
	}
	var others []string
	for _, version := range s.Versions.SortAscending(versions) {
		if isInstalled && version == installed.Version {
			continue
		}
		others = append(others, version)
	}
	if len(others) > 0 {
		fmt.Printf("available-versions: %s\n", strings.Join(others, ", "))
	}

	manifestNV := installed
	if !isInstalled {
		latest, _ := s.Versions.Latest(versions)
		manifestNV = types.NV{Name: name, Version: latest}
	}
	if manifest, err := state.Manifest(manifestNV); err == nil {
		if len(manifest.Libraries) > 0 {
			fmt.Printf("librairies: %s\n", strings.Join(manifest.Libraries, ", "))
		}
		if len(manifest.Syntax) > 0 {
			fmt.Printf("syntax: %s\n", strings.Join(manifest.Syntax, ", "))
		}
	}
	synopsis, body := adapters.LoadDescr(paths.DescrFile(s.Root, manifestNV))
	fmt.Printf("description: %s\n", synopsis)
	if body != "" {
		fmt.Println(body)
	}
	return nil
}

// ConfigEnv prints the composed switch environment as KEY=VALUE lines.
func (s *Service) ConfigEnv() error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	env, err := state.Environment()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%s=%s\n", key, env[key])
	}
	return nil
}

// ConfigListVars enumerates every global and section variable of every
// installed package.
func (s *Service) ConfigListVars() error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	for _, pkg := range state.InstalledNames() {
		config, err := state.PackageConfig(pkg)
		if err != nil {
			continue
		}
		printVariables(pkg, "", config.Variables)
		for _, section := range config.Sections {
			printVariables(pkg, section.Name, section.Variables)
		}
	}
	return nil
}

func printVariables(pkg string, section string, variables map[string]types.VariableValue) {
	keys := make([]string, 0, len(variables))
	for key := range variables {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		reference := types.FullVariable{Package: pkg, Section: section, Variable: key}
		fmt.Printf("%s=%s\n", reference, variables[key])
	}
}

// ConfigVariable prints the value of one full variable.
func (s *Service) ConfigVariable(reference string) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	variable, err := types.ParseFullVariable(reference)
	if err != nil {
		return err
	}
	value, err := core.EvalVariable(state, variable)
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

// ConfigSubst applies file substitution to each named template.
func (s *Service) ConfigSubst(files []string) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := core.SubstFile(state, file); err != nil {
			return err
		}
	}
	return nil
}

// ConfigIncludes prints -I flags for the given installed packages,
// transitively closed over dependencies when recursive is set.
func (s *Service) ConfigIncludes(recursive bool, names []string) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	targets := names
	if recursive {
		targets, err = core.PackageClosure(state, names)
		if err != nil {
			return err
		}
	}
	for _, name := range targets {
		if !state.IsInstalled(name) {
			return errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("package %s is not installed", name))
		}
		fmt.Printf("-I %s\n", paths.LibDir(s.Root, state.Alias, name))
	}
	return nil
}

// ConfigCompil computes the section closure of the given sections plus
// the compiler's required ones, and emits the compiler's flag list for
// the mode followed by each section's matching flags in topological
// order.
func (s *Service) ConfigCompil(mode string, sections []string) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	switch mode {
	case "bytecomp", "asmcomp", "bytelink", "asmlink":
	default:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown compilation mode %q", mode))
	}
	var compilerFlags []string
	seeds := append([]string{}, sections...)
	if descr, err := adapters.LoadCompilerDescr(paths.CompilerFile(s.Root, state.Compiler)); err == nil {
		seeds = append(descr.RequiredSections, seeds...)
		switch mode {
		case "bytecomp":
			compilerFlags = descr.Bytecomp
		case "asmcomp":
			compilerFlags = descr.Asmcomp
		case "bytelink":
			compilerFlags = descr.Bytelink
		case "asmlink":
			compilerFlags = descr.Asmlink
		}
	}
	closure, err := core.SectionClosure(state, seeds)
	if err != nil {
		return err
	}
	if len(compilerFlags) > 0 {
		fmt.Println(strings.Join(compilerFlags, " "))
	}
	for _, ref := range closure {
		if value, ok := ref.Section.Variables[mode]; ok {
			fmt.Println(value.String())
		}
	}
	return nil
}

// CompilerList prints every compiler description available in the
// global view, marking the current switch's compiler.
func (s *Service) CompilerList() error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(paths.CompilerDir(s.Root))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list compilers").
			WithCause(err)
	}
	var versions []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".comp") {
			versions = append(versions, strings.TrimSuffix(entry.Name(), ".comp"))
		}
	}
	for _, version := range s.Versions.SortAscending(versions) {
		marker := "  "
		if version == state.Compiler {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, version)
	}
	return nil
}
