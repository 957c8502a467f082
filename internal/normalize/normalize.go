// Package normalize rewrites directive expressions and method receivers so
// generated declarations can refer to the builder's subject by its fully
// applied type.
package normalize

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/model"
)

// SelfName is the placeholder for the builder's subject type.
const SelfName = "Self"

// Self replaces every Self identifier in expr with self. Selector fields and
// composite literal keys are left alone.
func Self(expr ast.Expr, self ast.Expr) ast.Expr {
	return rename(expr, func(name string) ast.Expr {
		if name == SelfName {
			return self
		}
		return nil
	})
}

// ContainsSelf reports whether expr refers to Self.
func ContainsSelf(expr ast.Expr) bool {
	found := false
	rename(expr, func(name string) ast.Expr {
		if name == SelfName {
			found = true
		}
		return nil
	})
	return found
}

// Rename substitutes identifiers by name.
func Rename(expr ast.Expr, names map[string]string) ast.Expr {
	return rename(expr, func(name string) ast.Expr {
		if to, ok := names[name]; ok {
			return ast.NewIdent(to)
		}
		return nil
	})
}

func rename(expr ast.Expr, fn func(string) ast.Expr) ast.Expr {
	if expr == nil {
		return nil
	}
	out := astutil.Apply(expr, func(c *astutil.Cursor) bool {
		id, ok := c.Node().(*ast.Ident)
		if !ok {
			return true
		}
		switch c.Parent().(type) {
		case *ast.SelectorExpr:
			if c.Name() == "Sel" {
				return true
			}
		case *ast.KeyValueExpr:
			if c.Name() == "Key" {
				return true
			}
		case *ast.Field:
			if c.Name() == "Names" {
				return true
			}
		}
		if repl := fn(id.Name); repl != nil {
			c.Replace(repl)
		}
		return true
	}, nil)
	return out.(ast.Expr)
}

// Clone deep-copies expr by printing and re-parsing it. Positions in the copy
// are meaningless.
func Clone(fset *token.FileSet, expr ast.Expr) (ast.Expr, error) {
	if expr == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, expr); err != nil {
		return nil, err
	}
	out, err := parser.ParseExpr(buf.String())
	if err != nil {
		return nil, fmt.Errorf("clone %q: %w", buf.String(), err)
	}
	return out, nil
}

// Receiver binds a method receiver to the declaration of its type. Parameter
// names come from the receiver, blank names get fresh ones, and constraints
// come from the type declaration with its parameter names substituted.
func Receiver(fset *token.FileSet, field *ast.Field, types map[string]*ast.TypeSpec) (*model.Receiver, error) {
	r := &model.Receiver{}
	if len(field.Names) > 0 && field.Names[0].Name != "_" {
		r.Name = field.Names[0].Name
	}

	typ := field.Type
	if star, ok := typ.(*ast.StarExpr); ok {
		r.Pointer = true
		typ = star.X
	}

	var args []ast.Expr
	switch t := typ.(type) {
	case *ast.Ident:
		r.Base = t.Name
	case *ast.IndexExpr:
		args = []ast.Expr{t.Index}
		typ = t.X
	case *ast.IndexListExpr:
		args = t.Indices
		typ = t.X
	}
	if r.Base == "" {
		id, ok := typ.(*ast.Ident)
		if !ok {
			return nil, diag.Errorf(diag.GenericsNormalizationFailure, field, "receiver type must be a named type declared in this package")
		}
		r.Base = id.Name
	}

	spec, ok := types[r.Base]
	if !ok {
		return nil, diag.Errorf(diag.GenericsNormalizationFailure, field, "receiver type %s is not declared in this package", r.Base)
	}
	decl := model.GenericsOf(spec.TypeParams)
	if decl.Len() != len(args) {
		return nil, diag.Errorf(diag.GenericsNormalizationFailure, field, "receiver %s has %d type parameters, its declaration has %d", r.Base, len(args), decl.Len())
	}

	used := map[string]bool{}
	for _, a := range args {
		id, ok := a.(*ast.Ident)
		if !ok {
			return nil, diag.Errorf(diag.GenericsNormalizationFailure, a, "receiver type parameters must be identifiers")
		}
		used[id.Name] = true
	}

	names := make([]string, len(args))
	for i, a := range args {
		name := a.(*ast.Ident).Name
		if name == "_" {
			name = fresh(decl.Params[i].Name, used)
		}
		names[i] = name
	}

	subst := map[string]string{}
	for i, p := range decl.Params {
		if p.Name != names[i] {
			subst[p.Name] = names[i]
		}
	}
	for i, p := range decl.Params {
		c, err := Clone(fset, p.Constraint)
		if err != nil {
			return nil, diag.Wrap(diag.GenericsNormalizationFailure, field, err)
		}
		r.Generics.Params = append(r.Generics.Params, model.TypeParam{
			Name:       names[i],
			Constraint: Rename(c, subst),
		})
	}
	r.Type = model.Applied(r.Base, r.Generics)
	return r, nil
}

// fresh returns base, or base with a numeric suffix, unused by any receiver
// parameter name.
func fresh(base string, used map[string]bool) string {
	name := base
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	used[name] = true
	return name
}
