package render

import (
	"fmt"
	"go/ast"
	"path"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"
)

// Imports tracks the packages referenced by one generated file.
type Imports struct {
	byPath map[string]importSpec
	byName map[string]string
}

type importSpec struct {
	name    string
	aliased bool
}

// NewImports creates an empty import table.
func NewImports() *Imports {
	return &Imports{
		byPath: map[string]importSpec{},
		byName: map[string]string{},
	}
}

func (im *Imports) use(p string, spec importSpec) {
	if _, ok := im.byPath[p]; ok {
		return
	}
	if other, ok := im.byName[spec.name]; ok && other != p {
		// jen picks a unique alias on its own.
		im.byPath[p] = importSpec{}
		return
	}
	im.byPath[p] = spec
	im.byName[spec.name] = p
}

// Register declares the referenced packages on f under the names the source
// used for them.
func (im *Imports) Register(f *jen.File) {
	for p, spec := range im.byPath {
		switch {
		case spec.name == "":
		case spec.aliased:
			f.ImportAlias(p, spec.name)
		default:
			f.ImportName(p, spec.name)
		}
	}
}

// Renderer converts expressions from one source file into jen code.
type Renderer struct {
	imports map[string]string // local name → path
	aliased map[string]bool
	table   *Imports
}

// NewRenderer builds a renderer resolving package selectors through the
// imports of file. names maps import paths to the names the packages declare;
// paths missing from it get the conventional name of the path. Referenced
// packages are recorded in table.
func NewRenderer(file *ast.File, table *Imports, names map[string]string) *Renderer {
	r := &Renderer{
		imports: map[string]string{},
		aliased: map[string]bool{},
		table:   table,
	}
	if file == nil {
		return r
	}
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		name, ok := names[p]
		if !ok || name == "" {
			name = guessName(p)
		}
		if imp.Name != nil {
			if imp.Name.Name == "_" || imp.Name.Name == "." {
				continue
			}
			name = imp.Name.Name
			r.aliased[name] = true
		}
		r.imports[name] = p
	}
	return r
}

// ImportPaths returns the paths imported by files, without duplicates.
func ImportPaths(files ...*ast.File) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range files {
		for _, imp := range f.Imports {
			p, err := strconv.Unquote(imp.Path.Value)
			if err != nil || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// guessName returns the conventional package name of an import path:
// gopkg.in/yaml.v3 is yaml and github.com/x/go-foo/v2 is foo.
func guessName(p string) string {
	base := path.Base(p)
	if len(base) > 1 && base[0] == 'v' && strings.Trim(base[1:], "0123456789") == "" {
		base = path.Base(path.Dir(p))
	}
	if i := strings.Index(base, ".v"); i > 0 {
		base = base[:i]
	}
	base = strings.TrimPrefix(base, "go-")
	base = strings.TrimSuffix(base, "-go")
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '.' {
			return -1
		}
		return r
	}, base)
}

// ImportPath reports the import path bound to a local package name.
func (r *Renderer) ImportPath(name string) (string, bool) {
	p, ok := r.imports[name]
	return p, ok
}

// IsQualified reports whether e is the selector pkgPath.name.
func (r *Renderer) IsQualified(e ast.Expr, pkgPath, name string) bool {
	sel, ok := e.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != name {
		return false
	}
	id, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	p, ok := r.imports[id.Name]
	return ok && p == pkgPath
}

// Expr renders an expression or type expression.
func (r *Renderer) Expr(e ast.Expr) (*jen.Statement, error) {
	switch x := e.(type) {
	case nil:
		return nil, fmt.Errorf("missing expression")
	case *ast.Ident:
		return jen.Id(x.Name), nil
	case *ast.BasicLit:
		return jen.Op(x.Value), nil
	case *ast.SelectorExpr:
		if id, ok := x.X.(*ast.Ident); ok {
			if p, ok := r.imports[id.Name]; ok {
				r.table.use(p, importSpec{name: id.Name, aliased: r.aliased[id.Name]})
				return jen.Qual(p, x.Sel.Name), nil
			}
		}
		inner, err := r.Expr(x.X)
		if err != nil {
			return nil, err
		}
		return inner.Dot(x.Sel.Name), nil
	case *ast.ParenExpr:
		inner, err := r.Expr(x.X)
		if err != nil {
			return nil, err
		}
		return jen.Parens(inner), nil
	case *ast.StarExpr:
		inner, err := r.Expr(x.X)
		if err != nil {
			return nil, err
		}
		return jen.Op("*").Add(inner), nil
	case *ast.UnaryExpr:
		inner, err := r.Expr(x.X)
		if err != nil {
			return nil, err
		}
		return jen.Op(x.Op.String()).Add(inner), nil
	case *ast.BinaryExpr:
		l, err := r.Expr(x.X)
		if err != nil {
			return nil, err
		}
		rr, err := r.Expr(x.Y)
		if err != nil {
			return nil, err
		}
		return jen.Add(l).Op(x.Op.String()).Add(rr), nil
	case *ast.CallExpr:
		fun, err := r.Expr(x.Fun)
		if err != nil {
			return nil, err
		}
		args, err := r.List(x.Args)
		if err != nil {
			return nil, err
		}
		if x.Ellipsis.IsValid() && len(args) > 0 {
			args[len(args)-1] = jen.Add(args[len(args)-1]).Op("...")
		}
		return fun.Call(args...), nil
	case *ast.IndexExpr:
		base, err := r.Expr(x.X)
		if err != nil {
			return nil, err
		}
		idx, err := r.Expr(x.Index)
		if err != nil {
			return nil, err
		}
		return base.Index(idx), nil
	case *ast.IndexListExpr:
		base, err := r.Expr(x.X)
		if err != nil {
			return nil, err
		}
		idx, err := r.List(x.Indices)
		if err != nil {
			return nil, err
		}
		return base.Types(idx...), nil
	case *ast.SliceExpr:
		base, err := r.Expr(x.X)
		if err != nil {
			return nil, err
		}
		parts := []ast.Expr{x.Low, x.High}
		if x.Slice3 {
			parts = append(parts, x.Max)
		}
		idx := make([]jen.Code, len(parts))
		for i, p := range parts {
			if p == nil {
				idx[i] = jen.Empty()
				continue
			}
			if idx[i], err = r.Expr(p); err != nil {
				return nil, err
			}
		}
		return base.Index(idx...), nil
	case *ast.TypeAssertExpr:
		if x.Type == nil {
			return nil, fmt.Errorf("type switches are not supported")
		}
		base, err := r.Expr(x.X)
		if err != nil {
			return nil, err
		}
		typ, err := r.Expr(x.Type)
		if err != nil {
			return nil, err
		}
		return base.Assert(typ), nil
	case *ast.CompositeLit:
		elts, err := r.List(x.Elts)
		if err != nil {
			return nil, err
		}
		if x.Type == nil {
			return jen.Values(elts...), nil
		}
		typ, err := r.Expr(x.Type)
		if err != nil {
			return nil, err
		}
		return typ.Values(elts...), nil
	case *ast.KeyValueExpr:
		k, err := r.Expr(x.Key)
		if err != nil {
			return nil, err
		}
		v, err := r.Expr(x.Value)
		if err != nil {
			return nil, err
		}
		return jen.Add(k).Op(":").Add(v), nil
	case *ast.ArrayType:
		elt, err := r.Expr(x.Elt)
		if err != nil {
			return nil, err
		}
		if x.Len == nil {
			return jen.Index().Add(elt), nil
		}
		n, err := r.Expr(x.Len)
		if err != nil {
			return nil, err
		}
		return jen.Index(n).Add(elt), nil
	case *ast.Ellipsis:
		if x.Elt == nil {
			return jen.Op("..."), nil
		}
		elt, err := r.Expr(x.Elt)
		if err != nil {
			return nil, err
		}
		return jen.Op("...").Add(elt), nil
	case *ast.MapType:
		k, err := r.Expr(x.Key)
		if err != nil {
			return nil, err
		}
		v, err := r.Expr(x.Value)
		if err != nil {
			return nil, err
		}
		return jen.Map(k).Add(v), nil
	case *ast.ChanType:
		v, err := r.Expr(x.Value)
		if err != nil {
			return nil, err
		}
		switch x.Dir {
		case ast.SEND:
			return jen.Chan().Op("<-").Add(v), nil
		case ast.RECV:
			return jen.Op("<-").Chan().Add(v), nil
		}
		return jen.Chan().Add(v), nil
	case *ast.FuncType:
		return r.funcType(x)
	case *ast.InterfaceType:
		elems, err := r.fields(x.Methods, true)
		if err != nil {
			return nil, err
		}
		return jen.Interface(elems...), nil
	case *ast.StructType:
		fields, err := r.fields(x.Fields, false)
		if err != nil {
			return nil, err
		}
		return jen.Struct(fields...), nil
	case *ast.FuncLit:
		return nil, fmt.Errorf("function literals are not supported")
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

// List renders a list of expressions.
func (r *Renderer) List(es []ast.Expr) ([]jen.Code, error) {
	out := make([]jen.Code, len(es))
	for i, e := range es {
		c, err := r.Expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (r *Renderer) funcType(ft *ast.FuncType) (*jen.Statement, error) {
	params, err := r.params(ft.Params)
	if err != nil {
		return nil, err
	}
	s := jen.Func().Params(params...)
	results, err := r.Results(ft.Results)
	if err != nil {
		return nil, err
	}
	return s.Add(results), nil
}

// Results renders a result list: nothing, a single type, or a parenthesized
// list.
func (r *Renderer) Results(fl *ast.FieldList) (jen.Code, error) {
	if fl == nil || len(fl.List) == 0 {
		return jen.Null(), nil
	}
	if len(fl.List) == 1 && len(fl.List[0].Names) == 0 {
		return r.Expr(fl.List[0].Type)
	}
	params, err := r.params(fl)
	if err != nil {
		return nil, err
	}
	return jen.Params(params...), nil
}

func (r *Renderer) params(fl *ast.FieldList) ([]jen.Code, error) {
	if fl == nil {
		return nil, nil
	}
	var out []jen.Code
	for _, f := range fl.List {
		typ, err := r.Expr(f.Type)
		if err != nil {
			return nil, err
		}
		if len(f.Names) == 0 {
			out = append(out, typ)
			continue
		}
		for _, n := range f.Names {
			out = append(out, jen.Id(n.Name).Add(typ))
		}
	}
	return out, nil
}

func (r *Renderer) fields(fl *ast.FieldList, iface bool) ([]jen.Code, error) {
	if fl == nil {
		return nil, nil
	}
	var out []jen.Code
	for _, f := range fl.List {
		var typ *jen.Statement
		var err error
		if ft, ok := f.Type.(*ast.FuncType); ok && iface && len(f.Names) > 0 {
			params, err := r.params(ft.Params)
			if err != nil {
				return nil, err
			}
			results, err := r.Results(ft.Results)
			if err != nil {
				return nil, err
			}
			out = append(out, jen.Id(f.Names[0].Name).Params(params...).Add(results))
			continue
		}
		if typ, err = r.Expr(f.Type); err != nil {
			return nil, err
		}
		var tag jen.Code = jen.Null()
		if f.Tag != nil {
			tag = jen.Op(f.Tag.Value)
		}
		if len(f.Names) == 0 {
			out = append(out, jen.Add(typ).Add(tag))
			continue
		}
		for _, n := range f.Names {
			out = append(out, jen.Id(n.Name).Add(typ).Add(tag))
		}
	}
	return out, nil
}

// Conversion renders typ(v), parenthesizing types that would otherwise bind
// wrongly, such as *T.
func (r *Renderer) Conversion(typ ast.Expr, v jen.Code) (*jen.Statement, error) {
	t, err := r.Expr(typ)
	if err != nil {
		return nil, err
	}
	switch typ.(type) {
	case *ast.Ident, *ast.SelectorExpr, *ast.IndexExpr, *ast.IndexListExpr, *ast.ArrayType, *ast.MapType, *ast.ParenExpr:
		return t.Call(v), nil
	}
	return jen.Parens(t).Call(v), nil
}
