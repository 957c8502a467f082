// Package input reads annotated declarations into builder specs.
package input

import (
	"errors"
	"go/ast"
	"go/token"

	"github.com/cmmoran/buildergen/internal/builder"
	"github.com/cmmoran/buildergen/internal/config"
	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/model"
	"github.com/cmmoran/buildergen/internal/normalize"
	"github.com/cmmoran/buildergen/internal/render"
)

// Env is the package a declaration lives in.
type Env struct {
	PkgPath  string
	Fset     *token.FileSet
	Types    map[string]*ast.TypeSpec // package-level type declarations
	Scope    *builder.Scope
	Renderer *render.Renderer // bound to the declaration's file
}

// Adapter reads one declaration shape. Receiver is called before Fields and
// Fields before Finish.
type Adapter interface {
	// Spec describes the declaration without members.
	Spec() builder.Spec
	// Receiver binds the method receiver, nil for structs and functions.
	Receiver() (*model.Receiver, error)
	// Fields returns the members in declaration order.
	Fields() ([]*model.Field, error)
	// Finish describes what the finish function does.
	Finish() builder.Finish
}

// Build runs an adapter and validates the result.
func Build(a Adapter, env *Env) (*builder.Context, error) {
	spec := a.Spec()
	recv, err := a.Receiver()
	if err != nil {
		return nil, err
	}
	if recv != nil {
		spec.Receiver = recv
		spec.Generics = recv.Generics
	}
	if spec.Fields, err = a.Fields(); err != nil {
		return nil, err
	}
	spec.Finish = a.Finish()
	return builder.New(spec, env.Scope, env.Renderer)
}

// Annotated returns adapters for the declarations of file carrying a gen
// directive, in source order. Errors of different declarations are joined.
func Annotated(file *ast.File, env *Env) ([]Adapter, error) {
	var out []Adapter
	var errs []error
	add := func(a Adapter, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		if a != nil {
			out = append(out, a)
		}
	}

	for _, d := range file.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			item, ok, err := gen(d.Doc, true)
			if err != nil || !ok {
				add(nil, err)
				continue
			}
			add(NewFunc(d, item, env))
		case *ast.GenDecl:
			for _, s := range d.Specs {
				doc := specDoc(d, s)
				item, ok, err := gen(doc, false)
				if err != nil || !ok {
					add(nil, err)
					continue
				}
				ts, isType := s.(*ast.TypeSpec)
				if !isType {
					add(nil, diag.Errorf(diag.UnsupportedFields, s, "builder:gen applies to struct types and functions"))
					continue
				}
				add(NewStruct(ts, doc, item, env))
			}
		}
	}
	return out, errors.Join(errs...)
}

func specDoc(d *ast.GenDecl, s ast.Spec) *ast.CommentGroup {
	var doc *ast.CommentGroup
	switch s := s.(type) {
	case *ast.TypeSpec:
		doc = s.Doc
	case *ast.ValueSpec:
		doc = s.Doc
	}
	if doc == nil && !d.Lparen.IsValid() {
		doc = d.Doc
	}
	return doc
}

// gen finds the gen directive in doc. Param directives are only valid on
// functions.
func gen(doc *ast.CommentGroup, params bool) (config.Item, bool, error) {
	var item config.Item
	found := false
	for _, d := range config.Directives(doc) {
		switch d.Name {
		case config.DirectiveGen:
			if found {
				return item, false, diag.Errorf(diag.InvalidOption, d.Comment, "duplicate builder:gen directive")
			}
			found = true
			var err error
			if item, err = config.ParseItem(d); err != nil {
				return item, false, err
			}
		case config.DirectiveParam:
			if !params {
				return item, false, diag.Errorf(diag.InvalidOption, d.Comment, "builder:param is only valid on functions")
			}
		default:
			return item, false, diag.Errorf(diag.InvalidOption, d.Comment, "unknown directive builder:%s", d.Name)
		}
	}
	if ds := config.Directives(doc); !found && len(ds) > 0 {
		return item, false, diag.Errorf(diag.InvalidOption, ds[0].Comment, "builder:%s without builder:gen", ds[0].Name)
	}
	return item, found, nil
}

// selfRewriter rewrites Self in member option expressions, or rejects it
// when the declaration has no type to refer to.
func selfRewriter(env *Env, self ast.Expr, node ast.Node) func(ast.Expr) (ast.Expr, error) {
	return func(e ast.Expr) (ast.Expr, error) {
		if _, declared := env.Scope.Lookup(normalize.SelfName); declared || !normalize.ContainsSelf(e) {
			return e, nil
		}
		if self == nil {
			return nil, diag.Errorf(diag.GenericsNormalizationFailure, node, "Self can only be used in builders of struct types and methods")
		}
		return normalize.Self(e, self), nil
	}
}
