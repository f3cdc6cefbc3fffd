package types

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"
)

// VariableValue is a tagged boolean or string. The zero value is the
// empty string.
type VariableValue struct {
	Bool   bool
	Str    string
	IsBool bool
}

func BoolValue(b bool) VariableValue {
	return VariableValue{Bool: b, IsBool: true}
}

func StringValue(s string) VariableValue {
	return VariableValue{Str: s}
}

// String renders the value the way substitution writes it: "true" or
// "false" for booleans, the raw string otherwise.
func (v VariableValue) String() string {
	if v.IsBool {
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return v.Str
}

func (v VariableValue) MarshalYAML() (interface{}, error) {
	if v.IsBool {
		return v.Bool, nil
	}
	return v.Str, nil
}

func (v *VariableValue) UnmarshalYAML(node *yaml.Node) error {
	var b bool
	if err := node.Decode(&b); err == nil && node.Tag == "!!bool" {
		*v = BoolValue(b)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	*v = StringValue(s)
	return nil
}

// FullVariable is a package-qualified variable reference: "pkg:var" for a
// package-global variable, "pkg:section:var" for a section-local one.
type FullVariable struct {
	Package  string
	Section  string
	Variable string
}

func (f FullVariable) String() string {
	if f.Section != "" {
		return f.Package + ":" + f.Section + ":" + f.Variable
	}
	return f.Package + ":" + f.Variable
}

// ParseFullVariable parses "pkg:var" or "pkg:section:var".
func ParseFullVariable(value string) (FullVariable, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			break
		}
		return FullVariable{Package: parts[0], Variable: parts[1]}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			break
		}
		return FullVariable{Package: parts[0], Section: parts[1], Variable: parts[2]}, nil
	}
	return FullVariable{}, errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("not a variable reference: %q", value))
}
