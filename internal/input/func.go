package input

import (
	"go/ast"
	"strings"

	"github.com/cmmoran/buildergen/internal/builder"
	"github.com/cmmoran/buildergen/internal/config"
	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/model"
	"github.com/cmmoran/buildergen/internal/normalize"
)

// Func adapts a function or method declaration. The finish function calls
// it with the collected arguments.
type Func struct {
	fn       *ast.FuncDecl
	item     config.Item
	env      *Env
	params   map[string]config.Member
	ctx      *builder.Param
	recv     *model.Receiver
	generics model.Generics
}

// NewFunc reads the param directives of fn and detects a leading context
// parameter.
func NewFunc(fn *ast.FuncDecl, item config.Item, env *Env) (*Func, error) {
	a := &Func{
		fn:       fn,
		item:     item,
		env:      env,
		params:   map[string]config.Member{},
		generics: model.GenericsOf(fn.Type.TypeParams),
	}

	names := map[string]bool{}
	for _, f := range fn.Type.Params.List {
		for _, n := range f.Names {
			names[n.Name] = true
		}
	}

	if list := fn.Type.Params.List; len(list) > 0 && env.Renderer.IsQualified(list[0].Type, "context", "Context") {
		first := list[0]
		switch {
		case len(first.Names) == 0 || first.Names[0].Name == "_":
			return nil, diag.Errorf(diag.UnnamedMember, first, "context parameter of %s must be named", fn.Name.Name)
		case len(first.Names) > 1:
			return nil, diag.Errorf(diag.UnsupportedFields, first, "only one leading context parameter is supported")
		}
		a.ctx = &builder.Param{Name: first.Names[0].Name, Type: first.Type}
	}

	for _, d := range config.Directives(fn.Doc) {
		if d.Name != config.DirectiveParam {
			continue
		}
		name, args, _ := strings.Cut(d.Args, " ")
		switch {
		case name == "":
			return nil, diag.Errorf(diag.InvalidOption, d.Comment, "builder:param requires a parameter name")
		case !names[name]:
			return nil, diag.Errorf(diag.InvalidOption, d.Comment, "%s has no parameter %s", fn.Name.Name, name)
		case a.ctx != nil && name == a.ctx.Name:
			return nil, diag.Errorf(diag.InvalidOption, d.Comment, "context parameter %s is passed to the finish function and takes no options", name)
		}
		if _, dup := a.params[name]; dup {
			return nil, diag.Errorf(diag.InvalidOption, d.Comment, "duplicate builder:param for %s", name)
		}
		m, err := config.ParseMember(strings.TrimSpace(args), d.Comment)
		if err != nil {
			return nil, err
		}
		a.params[name] = m
	}
	return a, nil
}

func (a *Func) Spec() builder.Spec {
	s := builder.Spec{
		Subject:  builder.Func,
		Decl:     a.fn.Name.Name,
		Pos:      a.fn.Name.Pos(),
		PkgPath:  a.env.PkgPath,
		Doc:      model.DocLines(a.fn.Doc),
		Generics: a.generics,
		Item:     a.item,
	}
	if a.fn.Recv != nil {
		s.Subject = builder.Method
	}
	return s
}

func (a *Func) Receiver() (*model.Receiver, error) {
	if a.fn.Recv == nil || len(a.fn.Recv.List) == 0 {
		return nil, nil
	}
	r, err := normalize.Receiver(a.env.Fset, a.fn.Recv.List[0], a.env.Types)
	if err != nil {
		return nil, err
	}
	a.recv = r
	return r, nil
}

func (a *Func) Fields() ([]*model.Field, error) {
	var self ast.Expr
	if a.recv != nil {
		self = a.recv.Type
	}
	exported := builder.BuilderExported(a.item, a.fn.Name.Name, a.recv)

	var out []*model.Field
	for i, f := range a.fn.Type.Params.List {
		if i == 0 && a.ctx != nil {
			continue
		}
		for _, raw := range model.RawFields(f) {
			opts := a.params[raw.Name]
			if err := opts.Rewrite(selfRewriter(a.env, self, opts.Node)); err != nil {
				return nil, err
			}
			field, err := model.NewField(raw, opts, exported)
			if err != nil {
				return nil, err
			}
			out = append(out, field)
		}
	}
	return out, nil
}

func (a *Func) Finish() builder.Finish {
	f := builder.Finish{
		Results: a.fn.Type.Results,
		Ctx:     a.ctx,
	}
	if a.recv != nil {
		f.Method = a.fn.Name.Name
	} else {
		f.Target = model.Applied(a.fn.Name.Name, a.generics)
	}
	return f
}
