package builder

import (
	"fmt"
	"go/ast"

	"github.com/dave/jennifer/jen"

	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/model"
)

type decl struct {
	doc  []string
	code jen.Code
}

// Emit adds the builder declarations to f. Nothing is added when any of them
// fails to render.
func (c *Context) Emit(f *jen.File) error {
	var out []decl
	for _, step := range []func() ([]decl, error){
		c.builderDecl,
		c.stateDecls,
		c.implDecl,
		c.startDecl,
		c.setterDecls,
		c.finishDecl,
	} {
		ds, err := step()
		if err != nil {
			return err
		}
		out = append(out, ds...)
	}
	for _, d := range out {
		for _, l := range d.doc {
			if l == "" {
				f.Comment("//")
				continue
			}
			f.Comment("// " + l)
		}
		f.Add(d.code)
		f.Line()
	}
	c.commit()
	return nil
}

func (c *Context) expr(e ast.Expr, pos ast.Node) (*jen.Statement, error) {
	s, err := c.r.Expr(e)
	if err != nil {
		return nil, diag.Wrap(diag.InvalidOption, pos, err)
	}
	return s, nil
}

func (c *Context) at(f *model.Field) ast.Node {
	if f == nil {
		return diag.At(c.Pos)
	}
	return diag.At(f.Pos)
}

func (c *Context) typeParams(states bool) ([]jen.Code, error) {
	var out []jen.Code
	for _, p := range c.Generics.Params {
		con, err := c.expr(p.Constraint, c.at(nil))
		if err != nil {
			return nil, err
		}
		out = append(out, jen.Id(p.Name).Add(con))
	}
	if states {
		for _, s := range c.states {
			out = append(out, jen.Id(s).Id(c.names.State))
		}
	}
	return out, nil
}

func (c *Context) typeArgs() []jen.Code {
	out := make([]jen.Code, 0, c.Generics.Len())
	for _, name := range c.Generics.Names() {
		out = append(out, jen.Id(name))
	}
	return out
}

func (c *Context) builderOf(states []string) *jen.Statement {
	args := c.typeArgs()
	for _, s := range states {
		args = append(args, jen.Id(s))
	}
	return jen.Id(c.names.Builder).Types(args...)
}

func (c *Context) implOf() *jen.Statement {
	return jen.Id(c.names.Impl).Types(c.typeArgs()...)
}

// all returns a state list with every slot set to marker.
func (c *Context) all(marker string) []string {
	out := make([]string, len(c.states))
	for i := range out {
		out[i] = marker
	}
	return out
}

// advanced returns the receiver's state list with the slot of f set.
func (c *Context) advanced(f *model.Field) []string {
	out := append([]string(nil), c.states...)
	out[c.slot[f]] = c.names.Set
	return out
}

func (c *Context) stored(f *model.Field) *jen.Statement {
	return jen.Id(c.b).Dot(c.implName).Dot(f.Name)
}

func (c *Context) flag(f *model.Field) *jen.Statement {
	return jen.Id(c.b).Dot(c.implName).Dot(c.flags[f])
}

func (c *Context) subject() string {
	switch c.Subject {
	case Func:
		return c.Decl
	case Method:
		return c.Receiver.Base + "." + c.Decl
	}
	return c.Decl
}

func (c *Context) member(f *model.Field) string {
	if c.Subject == Struct {
		return "the " + f.Name + " field"
	}
	return "the " + f.Name + " argument"
}

func (c *Context) builderDecl() ([]decl, error) {
	tps, err := c.typeParams(true)
	if err != nil {
		return nil, err
	}
	doc := []string{fmt.Sprintf("%s collects the %s of %s.", c.names.Builder, c.collects(), c.subject())}
	if len(c.states) > 0 {
		doc = append(doc, fmt.Sprintf("Its last %d type parameters track the mandatory %s set so far.", len(c.states), c.collects()))
	}
	if c.Subject == Struct && len(c.Doc) > 0 {
		doc = append(append(doc, ""), c.Doc...)
	}
	code := jen.Type().Id(c.names.Builder).Types(tps...).Struct(
		jen.Id(c.implName).Add(c.implOf()),
	)
	return []decl{{doc: doc, code: code}}, nil
}

func (c *Context) collects() string {
	if c.Subject == Struct {
		return "fields"
	}
	return "arguments"
}

func (c *Context) stateDecls() ([]decl, error) {
	if len(c.states) == 0 {
		return nil, nil
	}
	n := c.names
	return []decl{
		{
			doc:  []string{fmt.Sprintf("%s is the state of one mandatory member of %s.", n.State, n.Builder)},
			code: jen.Type().Id(n.State).Interface(jen.Id(n.Set).Op("|").Id(n.Unset)),
		},
		{code: jen.Type().Id(n.Set).Struct()},
		{code: jen.Type().Id(n.Unset).Struct()},
	}, nil
}

func (c *Context) implDecl() ([]decl, error) {
	tps, err := c.typeParams(false)
	if err != nil {
		return nil, err
	}
	var fields []jen.Code
	if c.Receiver != nil {
		rt, err := c.expr(c.Receiver.Expr(), c.at(nil))
		if err != nil {
			return nil, err
		}
		fields = append(fields, jen.Id(c.recvName).Add(rt))
	}
	for _, f := range c.Fields {
		if f.Kind == model.KindSkipped {
			continue
		}
		typ, err := c.expr(f.Type, c.at(f))
		if err != nil {
			return nil, err
		}
		fields = append(fields, jen.Id(f.Name).Add(typ))
		if flag, ok := c.flags[f]; ok {
			fields = append(fields, jen.Id(flag).Bool())
		}
	}
	code := jen.Type().Id(c.names.Impl).Types(tps...).Struct(fields...)
	return []decl{{code: code}}, nil
}

func (c *Context) startDecl() ([]decl, error) {
	unset := c.all(c.names.Unset)
	doc := []string{fmt.Sprintf("%s starts a %s with no members set.", c.names.Start, c.names.Builder)}
	if c.Subject != Method {
		tps, err := c.typeParams(false)
		if err != nil {
			return nil, err
		}
		code := jen.Func().Id(c.names.Start).Types(tps...).Params().Add(c.builderOf(unset)).Block(
			jen.Return(c.builderOf(unset).Values()),
		)
		return []decl{{doc: doc, code: code}}, nil
	}

	rt, err := c.expr(c.Receiver.Expr(), c.at(nil))
	if err != nil {
		return nil, err
	}
	code := jen.Func().Params(jen.Id(c.self).Add(rt)).Id(c.names.Start).Params().Add(c.builderOf(unset)).Block(
		jen.Return(c.builderOf(unset).Values(
			jen.Id(c.implName).Op(":").Add(c.implOf()).Values(
				jen.Id(c.recvName).Op(":").Id(c.self),
			),
		)),
	)
	return []decl{{doc: doc, code: code}}, nil
}

// next returns the builder type a setter of f returns and its return
// statement.
func (c *Context) next(f *model.Field) (*jen.Statement, jen.Code) {
	if !f.Mandatory() {
		return c.builderOf(c.states), jen.Return(jen.Id(c.b))
	}
	to := c.advanced(f)
	return c.builderOf(to), jen.Return(c.builderOf(to).Values(
		jen.Id(c.implName).Op(":").Id(c.b).Dot(c.implName),
	))
}

func (c *Context) method(name string, param jen.Code, result *jen.Statement, body ...jen.Code) jen.Code {
	return jen.Func().Params(jen.Id(c.b).Add(c.builderOf(c.states))).Id(name).
		Params(jen.Id(c.v).Add(param)).Add(result).Block(body...)
}

func (c *Context) setterDecls() ([]decl, error) {
	var out []decl
	for _, f := range c.Fields {
		if f.Kind == model.KindSkipped {
			continue
		}
		ds, err := c.setters(f)
		if err != nil {
			return nil, err
		}
		out = append(out, ds...)
	}
	return out, nil
}

func (c *Context) setters(f *model.Field) ([]decl, error) {
	at := c.at(f)
	star, isPtr := f.Type.(*ast.StarExpr)
	isPtr = isPtr && f.Kind == model.KindPointer

	var param *jen.Statement
	var err error
	switch {
	case f.Into != nil:
		param, err = c.expr(f.Into, at)
	case isPtr:
		param, err = c.expr(star.X, at)
	case f.Variadic:
		param, err = c.expr(f.Elem(), at)
		param = jen.Op("...").Add(param)
	default:
		param, err = c.expr(f.Type, at)
	}
	if err != nil {
		return nil, err
	}

	var val *jen.Statement
	plain := false
	switch {
	case f.Via != nil:
		via, err := c.expr(f.Via, at)
		if err != nil {
			return nil, err
		}
		val = via.Call(jen.Id(c.v))
	case f.Into != nil:
		target := f.Type
		if isPtr {
			target = star.X
		}
		if val, err = c.r.Conversion(target, jen.Id(c.v)); err != nil {
			return nil, diag.Wrap(diag.InvalidOption, at, err)
		}
	default:
		val = jen.Id(c.v)
		plain = true
	}

	var body []jen.Code
	switch {
	case isPtr && plain:
		body = append(body, c.stored(f).Op("=").Op("&").Id(c.v))
	case isPtr:
		body = append(body,
			jen.Id(c.x).Op(":=").Add(val),
			c.stored(f).Op("=").Op("&").Id(c.x),
		)
	default:
		body = append(body, c.stored(f).Op("=").Add(val))
	}
	if _, ok := c.flags[f]; ok {
		body = append(body, c.flag(f).Op("=").True())
	}
	result, ret := c.next(f)
	body = append(body, ret)

	doc := []string{fmt.Sprintf("%s sets %s.", f.Setter, c.member(f))}
	if len(f.Doc) > 0 {
		doc = append(append(doc, ""), f.Doc...)
	}
	out := []decl{{doc: doc, code: c.method(f.Setter, param, result, body...)}}

	if c.hasMaybe(f) {
		d, err := c.maybe(f, isPtr)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if f.Each != "" {
		d, err := c.each(f)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (c *Context) maybe(f *model.Field, isPtr bool) (decl, error) {
	typ, err := c.expr(f.Type, c.at(f))
	if err != nil {
		return decl{}, err
	}
	name := c.maybeName(f)
	result, ret := c.next(f)

	if isPtr {
		return decl{
			doc: []string{fmt.Sprintf("%s sets %s to v, which may be nil.", name, c.member(f))},
			code: c.method(name, typ, result,
				c.stored(f).Op("=").Id(c.v),
				ret,
			),
		}, nil
	}

	deref := jen.Op("*").Id(c.v)
	if _, ok := c.flags[f]; ok {
		return decl{
			doc: []string{fmt.Sprintf("%s sets %s from v and keeps the default when v is nil.", name, c.member(f))},
			code: c.method(name, jen.Op("*").Add(typ), result,
				jen.If(jen.Id(c.v).Op("!=").Nil()).Block(
					c.stored(f).Op("=").Add(deref),
				),
				c.flag(f).Op("=").Id(c.v).Op("!=").Nil(),
				ret,
			),
		}, nil
	}

	zero, err := c.expr(f.Type, c.at(f))
	if err != nil {
		return decl{}, err
	}
	return decl{
		doc: []string{fmt.Sprintf("%s sets %s from v, or to its zero value when v is nil.", name, c.member(f))},
		code: c.method(name, jen.Op("*").Add(typ), result,
			jen.Var().Id(c.x).Add(zero),
			jen.If(jen.Id(c.v).Op("!=").Nil()).Block(
				jen.Id(c.x).Op("=").Add(deref),
			),
			c.stored(f).Op("=").Id(c.x),
			ret,
		),
	}, nil
}

func (c *Context) each(f *model.Field) (decl, error) {
	elem, err := c.expr(f.Elem(), c.at(f))
	if err != nil {
		return decl{}, err
	}
	body := []jen.Code{
		c.stored(f).Op("=").Append(c.stored(f), jen.Id(c.v)),
	}
	if _, ok := c.flags[f]; ok {
		body = append(body, c.flag(f).Op("=").True())
	}
	result, ret := c.next(f)
	body = append(body, ret)
	return decl{
		doc:  []string{fmt.Sprintf("%s appends v to %s.", f.Each, c.member(f))},
		code: c.method(f.Each, elem, result, body...),
	}, nil
}

func (c *Context) finishDecl() ([]decl, error) {
	tps, err := c.typeParams(false)
	if err != nil {
		return nil, err
	}
	var params []jen.Code
	if ctx := c.Finish.Ctx; ctx != nil {
		typ, err := c.expr(ctx.Type, c.at(nil))
		if err != nil {
			return nil, err
		}
		params = append(params, jen.Id(c.ctxName).Add(typ))
	}
	params = append(params, jen.Id(c.b).Add(c.builderOf(c.all(c.names.Set))))

	var results jen.Code
	if c.Subject == Struct {
		results, err = c.expr(c.Finish.Target, c.at(nil))
	} else {
		results, err = c.r.Results(c.Finish.Results)
	}
	if err != nil {
		return nil, diag.Wrap(diag.InvalidOption, c.at(nil), err)
	}

	var body []jen.Code
	for _, f := range c.Fields {
		local, ok := c.locals[f]
		if !ok {
			continue
		}
		def, err := c.expr(f.Default, c.at(f))
		if err != nil {
			return nil, err
		}
		body = append(body,
			jen.Id(local).Op(":=").Add(c.stored(f)),
			jen.If(jen.Op("!").Add(c.flag(f))).Block(
				jen.Id(local).Op("=").Add(def),
			),
		)
	}

	var doc []string
	if c.Subject == Struct {
		lit, err := c.literal()
		if err != nil {
			return nil, err
		}
		body = append(body, jen.Return(lit))
		doc = []string{fmt.Sprintf("%s returns the %s collected by b.", c.names.Finish, c.Decl)}
	} else {
		call, err := c.call()
		if err != nil {
			return nil, err
		}
		if c.Finish.Results != nil && len(c.Finish.Results.List) > 0 {
			body = append(body, jen.Return(call))
		} else {
			body = append(body, call)
		}
		doc = []string{fmt.Sprintf("%s calls %s with the arguments collected by b.", c.names.Finish, c.subject())}
		if len(c.Doc) > 0 {
			doc = append(append(doc, ""), c.Doc...)
		}
	}

	code := jen.Func().Id(c.names.Finish).Types(tps...).Params(params...).Add(results).Block(body...)
	return []decl{{doc: doc, code: code}}, nil
}

// value returns the expression passed for f by the finish function, or nil
// when f is left out.
func (c *Context) value(f *model.Field) (jen.Code, error) {
	switch {
	case f.Kind == model.KindSkipped && f.Skip != nil:
		return c.expr(f.Skip, c.at(f))
	case f.Kind == model.KindSkipped:
		if c.Subject == Struct || f.Variadic {
			return nil, nil
		}
		typ, err := c.expr(f.Type, c.at(f))
		if err != nil {
			return nil, err
		}
		return jen.Op("*").Id("new").Call(typ), nil
	}
	if local, ok := c.locals[f]; ok {
		return jen.Id(local), nil
	}
	return c.stored(f), nil
}

func (c *Context) literal() (jen.Code, error) {
	typ, err := c.expr(c.Finish.Target, c.at(nil))
	if err != nil {
		return nil, err
	}
	var elems []jen.Code
	for _, f := range c.Fields {
		v, err := c.value(f)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		elems = append(elems, jen.Line().Id(f.Name).Op(":").Add(v))
	}
	if len(elems) > 0 {
		elems = append(elems, jen.Line())
	}
	return typ.Values(elems...), nil
}

func (c *Context) call() (jen.Code, error) {
	var args []jen.Code
	if c.Finish.Ctx != nil {
		args = append(args, jen.Id(c.ctxName))
	}
	for _, f := range c.Fields {
		v, err := c.value(f)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if f.Variadic {
			v = jen.Add(v).Op("...")
		}
		args = append(args, v)
	}

	if c.Subject == Method {
		return jen.Id(c.b).Dot(c.implName).Dot(c.recvName).Dot(c.Finish.Method).Call(args...), nil
	}
	fn, err := c.expr(c.Finish.Target, c.at(nil))
	if err != nil {
		return nil, err
	}
	return fn.Call(args...), nil
}
