// Package buildutil extracts call arguments from Starlark-syntax descriptor
// files parsed with buildtools.
package buildutil

import (
	"github.com/bazelbuild/buildtools/build"
)

// Arg returns the right-hand side of the named argument, or nil.
func Arg(call *build.CallExpr, name string) build.Expr {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		if lhs, ok := assign.LHS.(*build.Ident); ok && lhs.Name == name {
			return assign.RHS
		}
	}
	return nil
}

// Has reports whether the call passes the named argument.
func Has(call *build.CallExpr, name string) bool {
	return Arg(call, name) != nil
}

// String extracts a string argument by name. If name is empty, the first
// positional string argument is returned.
// Returns empty string if the argument is missing or not a string.
func String(call *build.CallExpr, name string) string {
	if name == "" {
		if len(call.List) > 0 {
			if str, ok := call.List[0].(*build.StringExpr); ok {
				return str.Value
			}
		}
		return ""
	}
	if str, ok := Arg(call, name).(*build.StringExpr); ok {
		return str.Value
	}
	return ""
}

// Bool extracts a True/False argument by name, returning def when it is
// missing or not a boolean identifier.
func Bool(call *build.CallExpr, name string, def bool) bool {
	ident, ok := Arg(call, name).(*build.Ident)
	if !ok {
		return def
	}
	switch ident.Name {
	case "True":
		return true
	case "False":
		return false
	}
	return def
}

// StringList extracts a list of strings by name. A single string is
// returned as a one-element list. Non-string elements are skipped.
func StringList(call *build.CallExpr, name string) []string {
	switch v := Arg(call, name).(type) {
	case *build.StringExpr:
		return []string{v.Value}
	case *build.ListExpr:
		result := make([]string, 0, len(v.List))
		for _, elem := range v.List {
			if str, ok := elem.(*build.StringExpr); ok {
				result = append(result, str.Value)
			}
		}
		return result
	}
	return nil
}

// FuncName returns the function name from a CallExpr.
// Returns empty string for method calls like foo.bar().
func FuncName(call *build.CallExpr) string {
	if ident, ok := call.X.(*build.Ident); ok {
		return ident.Name
	}
	return ""
}

// IsFuncCall returns true if the call is for the specified function name.
func IsFuncCall(call *build.CallExpr, name string) bool {
	return FuncName(call) == name
}

// Call builds name(key = value, ...) with string, bool and string list
// values. Empty strings and nil lists are left out.
func Call(name string, args ...Attr) *build.CallExpr {
	call := &build.CallExpr{X: &build.Ident{Name: name}}
	for _, a := range args {
		var rhs build.Expr
		switch v := a.Value.(type) {
		case string:
			if v == "" {
				continue
			}
			rhs = &build.StringExpr{Value: v}
		case bool:
			if v {
				rhs = &build.Ident{Name: "True"}
			} else {
				rhs = &build.Ident{Name: "False"}
			}
		case []string:
			if len(v) == 0 {
				continue
			}
			list := &build.ListExpr{}
			for _, s := range v {
				list.List = append(list.List, &build.StringExpr{Value: s})
			}
			rhs = list
		default:
			continue
		}
		call.List = append(call.List, &build.AssignExpr{
			LHS: &build.Ident{Name: a.Name},
			Op:  "=",
			RHS: rhs,
		})
	}
	return call
}

// Attr is one keyword argument for Call.
type Attr struct {
	Name  string
	Value any
}
