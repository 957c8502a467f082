package input

import (
	"go/ast"

	"github.com/cmmoran/buildergen/internal/builder"
)

// Collect indexes the type declarations of a package and records every
// package-level identifier and type member in a fresh scope.
func Collect(files []*ast.File) (map[string]*ast.TypeSpec, *builder.Scope) {
	types := map[string]*ast.TypeSpec{}
	scope := builder.NewScope()
	for _, file := range files {
		for _, d := range file.Decls {
			switch d := d.(type) {
			case *ast.GenDecl:
				for _, s := range d.Specs {
					switch s := s.(type) {
					case *ast.TypeSpec:
						types[s.Name.Name] = s
						scope.Declare(s.Name.Name)
						if st, ok := s.Type.(*ast.StructType); ok {
							for _, f := range st.Fields.List {
								for _, n := range memberNames(f) {
									scope.DeclareMember(s.Name.Name, n)
								}
							}
						}
					case *ast.ValueSpec:
						for _, n := range s.Names {
							scope.Declare(n.Name)
						}
					}
				}
			case *ast.FuncDecl:
				if d.Recv == nil || len(d.Recv.List) == 0 {
					if d.Name.Name != "init" {
						scope.Declare(d.Name.Name)
					}
					continue
				}
				if base := baseName(d.Recv.List[0].Type); base != "" {
					scope.DeclareMember(base, d.Name.Name)
				}
			}
		}
	}
	return types, scope
}

func memberNames(f *ast.Field) []string {
	if len(f.Names) == 0 {
		return []string{baseName(f.Type)}
	}
	out := make([]string, len(f.Names))
	for i, n := range f.Names {
		out[i] = n.Name
	}
	return out
}

// baseName returns the type name of T, *T, pkg.T and T[...] expressions.
func baseName(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return baseName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return baseName(t.X)
	case *ast.IndexListExpr:
		return baseName(t.X)
	case *ast.ParenExpr:
		return baseName(t.X)
	}
	return ""
}
