// Package builder turns a normalized declaration into the declarations of a
// type-state builder.
//
// A builder for
//
//	type Sut[T any] struct {
//		A string
//		B *int
//	}
//
// is a generic struct carrying one extra type parameter per mandatory field.
// Each parameter is either the Set or the Unset marker, setters of mandatory
// fields return the builder with their slot moved to Set, and the finish
// function only accepts the builder with every slot Set:
//
//	type SutBuilder[T any, SA _SutBuilder_1a2b3c4dState] struct{ impl _SutBuilder_1a2b3c4dImpl[T] }
//
//	func BuildSut[T any](b SutBuilder[T, _SutBuilder_1a2b3c4dStateSet]) Sut[T]
//
// Leaving out a mandatory setter is therefore a compile error.
package builder

import (
	"go/ast"
	"go/token"

	"github.com/cmmoran/buildergen/internal/config"
	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/model"
	"github.com/cmmoran/buildergen/internal/render"
)

// Subject is the shape of the declaration a builder is generated for.
type Subject int

const (
	Struct Subject = iota
	Func
	Method
)

func (s Subject) String() string {
	switch s {
	case Struct:
		return "struct"
	case Func:
		return "function"
	case Method:
		return "method"
	}
	return "unknown"
}

// Param is a named parameter forwarded unchanged to the finish function.
type Param struct {
	Name string
	Type ast.Expr
}

// Finish describes what the finish function does with the collected values.
type Finish struct {
	// Target is the struct type of the composite literal, or the function
	// being called, applied to its type parameters. Unused for methods.
	Target ast.Expr
	// Method is called on the stored receiver.
	Method string
	// Results of the called function, mirrored by the finish function.
	Results *ast.FieldList
	// Ctx is a leading context parameter of the called function.
	Ctx *Param
}

// Spec is the shape-agnostic description of one annotated declaration.
type Spec struct {
	Subject  Subject
	Decl     string // struct, function or method name
	Pos      token.Pos
	PkgPath  string
	Doc      []string
	Fields   []*model.Field
	Generics model.Generics // receiver generics for methods
	Receiver *model.Receiver
	Item     config.Item
	Finish   Finish
}

// Context is a validated builder ready for emission. It is built once and
// emitted once.
type Context struct {
	Spec

	names Names
	scope *Scope
	r     *render.Renderer

	states   []string // type parameter per mandatory field, in field order
	slot     map[*model.Field]int
	implName string // builder field holding the storage
	recvName string // storage field holding the receiver
	flags    map[*model.Field]string
	locals   map[*model.Field]string
	self     string // start method receiver
	ctxName  string
	b, v, x  string
}

// New validates spec against the package scope and resolves every generated
// identifier.
func New(spec Spec, scope *Scope, r *render.Renderer) (*Context, error) {
	c := &Context{
		Spec:   spec,
		scope:  scope,
		r:      r,
		slot:   map[*model.Field]int{},
		flags:  map[*model.Field]string{},
		locals: map[*model.Field]string{},
	}
	if (c.Subject == Method) != (c.Receiver != nil) {
		return nil, diag.Errorf(diag.InvalidBuilderConfig, diag.At(c.Pos), "%s %s: receiver mismatch", c.Subject, c.Decl)
	}
	if err := c.deriveNames(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.resolve()
	return c, nil
}

// Names returns the generated package-level identifiers.
func (c *Context) Names() Names { return c.names }

// Mandatory returns the fields owning a type-state slot.
func (c *Context) Mandatory() []*model.Field {
	var out []*model.Field
	for _, f := range c.Fields {
		if f.Mandatory() {
			out = append(out, f)
		}
	}
	return out
}

func (c *Context) validate() error {
	n := c.names
	at := c.Item.Node
	if at == nil {
		at = diag.At(c.Pos)
	}

	if n.Start == n.Finish {
		return diag.Errorf(diag.InvalidBuilderConfig, at, "start and finish are both named %s", n.Start)
	}
	for _, name := range []string{n.Start, n.Finish} {
		if name == n.Builder || name == c.Decl {
			return diag.Errorf(diag.InvalidBuilderConfig, at, "%s is already the name of the builder or of %s", name, c.Decl)
		}
	}
	if n.Builder == c.Decl {
		return diag.Errorf(diag.InvalidBuilderConfig, at, "builder type cannot be named after %s", c.Decl)
	}

	setters := map[string]*model.Field{}
	claim := func(name string, f *model.Field) error {
		if token.IsKeyword(name) {
			return diag.Errorf(diag.InvalidBuilderConfig, diag.At(f.Pos), "setter name %s is a keyword, rename it with name=", name)
		}
		if prev, ok := setters[name]; ok {
			return diag.Errorf(diag.InvalidBuilderConfig, diag.At(f.Pos), "setter %s of %s collides with a setter of %s", name, f.Name, prev.Name)
		}
		setters[name] = f
		return nil
	}
	for _, f := range c.Fields {
		if f.Kind == model.KindSkipped {
			continue
		}
		if err := claim(f.Setter, f); err != nil {
			return err
		}
		if c.hasMaybe(f) {
			if err := claim(c.maybeName(f), f); err != nil {
				return err
			}
		}
		if f.Each != "" {
			if err := claim(f.Each, f); err != nil {
				return err
			}
		}
	}

	for _, name := range c.packageNames() {
		owner, ok := c.scope.Lookup(name)
		if !ok {
			continue
		}
		if owner != "" {
			return diag.Errorf(diag.InvalidBuilderConfig, at, "%s is already generated for builder %s", name, owner)
		}
		return diag.Errorf(diag.InvalidBuilderConfig, at, "%s is already declared in package", name)
	}
	if c.Subject == Method {
		if owner, ok := c.scope.LookupMember(c.Receiver.Base, n.Start); ok {
			if owner != "" {
				return diag.Errorf(diag.InvalidBuilderConfig, at, "start method %s.%s is already generated for builder %s", c.Receiver.Base, n.Start, owner)
			}
			return diag.Errorf(diag.InvalidBuilderConfig, at, "%s already has a member named %s", c.Receiver.Base, n.Start)
		}
	}
	return nil
}

// packageNames returns the package-level identifiers the builder declares.
func (c *Context) packageNames() []string {
	n := c.names
	out := []string{n.Builder, n.Impl, n.Finish}
	if len(c.Mandatory()) > 0 {
		out = append(out, n.State, n.Set, n.Unset)
	}
	if c.Subject != Method {
		out = append(out, n.Start)
	}
	return out
}

func (c *Context) hasMaybe(f *model.Field) bool {
	switch f.Kind {
	case model.KindPointer:
		return true
	case model.KindValue:
		return !f.Variadic
	}
	return false
}

func (c *Context) maybeName(f *model.Field) string {
	return model.SetCase("Maybe"+model.UpperFirst(f.Setter), ast.IsExported(c.names.Builder))
}

// resolve picks the identifiers used inside generated declarations so none of
// them shadows a name referenced by the user's types and expressions.
func (c *Context) resolve() {
	var nodes []ast.Node
	for _, f := range c.Fields {
		for _, e := range []ast.Expr{f.Type, f.Default, f.Skip, f.Into, f.Via} {
			if e != nil {
				nodes = append(nodes, e)
			}
		}
	}
	for _, p := range c.Generics.Params {
		nodes = append(nodes, p.Constraint)
	}
	if c.Receiver != nil {
		nodes = append(nodes, c.Receiver.Type)
	}
	if c.Finish.Target != nil {
		nodes = append(nodes, c.Finish.Target)
	}
	if c.Finish.Results != nil {
		nodes = append(nodes, c.Finish.Results)
	}
	if c.Finish.Ctx != nil {
		nodes = append(nodes, c.Finish.Ctx.Type)
	}

	n := c.names
	ns := NewNS(c.Decl, n.Builder, n.State, n.Set, n.Unset, n.Impl, n.Start, n.Finish,
		"append", "new", "nil", "true", "false")
	for _, name := range c.Generics.Names() {
		ns.Reserve(name)
	}
	for name := range model.Idents(nodes...) {
		ns.Reserve(name)
	}

	if ctx := c.Finish.Ctx; ctx != nil {
		c.ctxName = ctx.Name
		if !ns.Reserve(ctx.Name) {
			c.ctxName = ns.Name(ctx.Name)
		}
	}
	for _, f := range c.Fields {
		if f.Mandatory() {
			c.slot[f] = len(c.states)
			c.states = append(c.states, ns.Name("S"+model.UpperFirst(f.Name)))
		}
	}
	c.b = ns.Name("b")
	c.v = ns.Name("v")
	c.x = ns.Name("x")
	if c.Receiver != nil {
		c.self = c.Receiver.Name
		if c.self == "" || !ns.Reserve(c.self) {
			c.self = ns.Name("r")
		}
	}
	for _, f := range c.Fields {
		if f.Kind == model.KindValue && f.Default != nil {
			c.locals[f] = ns.Name(model.LowerFirst(f.Name))
		}
	}

	builderMembers := NewNS()
	for _, f := range c.Fields {
		if f.Kind == model.KindSkipped {
			continue
		}
		builderMembers.Reserve(f.Setter)
		if f.Each != "" {
			builderMembers.Reserve(f.Each)
		}
		if c.hasMaybe(f) {
			builderMembers.Reserve(c.maybeName(f))
		}
	}
	c.implName = builderMembers.Name("impl")

	implMembers := NewNS()
	for _, f := range c.Fields {
		implMembers.Reserve(f.Name)
	}
	if c.Receiver != nil {
		c.recvName = implMembers.Name("recv")
	}
	for _, f := range c.Fields {
		if f.Kind == model.KindValue && f.Default != nil {
			c.flags[f] = implMembers.Name(f.Name + "Set")
		}
	}
}

func (c *Context) commit() {
	c.scope.claim(c.names.Builder, c.packageNames()...)
	if c.Subject == Method {
		c.scope.claimMember(c.names.Builder, c.Receiver.Base, c.names.Start)
	}
}
