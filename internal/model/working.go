package model

import (
	"go/ast"
	"go/token"

	"github.com/cmmoran/buildergen/internal/config"
	"github.com/cmmoran/buildergen/internal/diag"
)

// Kind is how a field participates in the builder.
type Kind int

const (
	KindInvalid Kind = iota
	// KindMandatory fields carry a type-state slot and must be set before
	// finishing.
	KindMandatory
	// KindPointer fields are optional pointers. The setter takes the element
	// and a Maybe setter takes the pointer.
	KindPointer
	// KindValue fields are optional values with a default or the zero value.
	KindValue
	// KindSkipped fields have no setter.
	KindSkipped
)

func (k Kind) String() string {
	switch k {
	case KindMandatory:
		return "mandatory"
	case KindPointer:
		return "pointer"
	case KindValue:
		return "value"
	case KindSkipped:
		return "skipped"
	}
	return "invalid"
}

// Field is a normalized builder member.
type Field struct {
	Name    string   // Go identifier of the member
	Type    ast.Expr // member type; []T for variadic parameters
	Kind    Kind
	Default ast.Expr // KindValue only; nil means the zero value
	Skip    ast.Expr // KindSkipped only; nil means the zero value
	Into    ast.Expr // setter parameter type, converted to Type
	Via     ast.Expr // function applied to the setter argument
	Setter  string   // setter method name
	Each    string   // appender method name, "" when absent

	Variadic bool
	Doc      []string
	Pos      token.Pos
}

// Mandatory reports whether the field owns a type-state slot.
func (f *Field) Mandatory() bool { return f.Kind == KindMandatory }

// Elem returns the element type of a slice field, or nil.
func (f *Field) Elem() ast.Expr {
	if at, ok := f.Type.(*ast.ArrayType); ok && at.Len == nil {
		return at.Elt
	}
	return nil
}

// NewField normalizes a raw member and its options. Setter names follow
// exported, the visibility of the builder.
func NewField(raw *RawField, opts config.Member, exported bool) (*Field, error) {
	node := raw.Node
	if opts.Node != nil {
		node = opts.Node
	}
	if raw.IsEmbedded || raw.Name == "" {
		return nil, diag.Errorf(diag.UnnamedMember, raw.Node, "builder members must be named; embedded fields and unnamed parameters are not supported")
	}
	if raw.Name == "_" {
		return nil, diag.Errorf(diag.UnnamedMember, raw.Node, "blank member cannot be set by a builder")
	}

	f := &Field{
		Name:     raw.Name,
		Type:     raw.TypeExpr,
		Into:     opts.Into,
		Via:      opts.Via,
		Variadic: raw.IsVariadic,
		Doc:      raw.Doc,
		Pos:      Position(raw.Node),
	}

	_, isPtr := raw.TypeExpr.(*ast.StarExpr)
	switch {
	case opts.Skip:
		f.Kind = KindSkipped
		f.Skip = opts.SkipExpr
	case opts.Required:
		f.Kind = KindMandatory
	case opts.Default:
		f.Kind = KindValue
		f.Default = opts.DefaultExpr
	case opts.Optional, raw.IsVariadic:
		f.Kind = KindValue
	case isPtr:
		f.Kind = KindPointer
	default:
		f.Kind = KindMandatory
	}

	if raw.IsVariadic && f.Into != nil {
		return nil, diag.Errorf(diag.InvalidOption, node, "into cannot be used on a variadic parameter")
	}

	if f.Kind == KindSkipped {
		return f, nil
	}

	f.Setter = opts.Name
	if f.Setter == "" {
		f.Setter = SetCase(Camel(raw.Name), exported)
		if token.IsKeyword(f.Setter) {
			f.Setter += "_"
		}
	}
	if opts.Each {
		if f.Elem() == nil {
			return nil, diag.Errorf(diag.InvalidOption, node, "each requires a slice member, %s is not a slice", raw.Name)
		}
		f.Each = opts.EachName
		if f.Each == "" {
			f.Each = SetCase("Add"+UpperFirst(Singular(Camel(raw.Name))), exported)
		}
	}
	return f, nil
}

// TypeParam is one declared type parameter.
type TypeParam struct {
	Name       string
	Constraint ast.Expr
}

// Generics is the ordered type parameter list of a declaration.
type Generics struct {
	Params []TypeParam
}

// GenericsOf flattens a type parameter list; `A, B any` becomes two params.
func GenericsOf(fl *ast.FieldList) Generics {
	var g Generics
	if fl == nil {
		return g
	}
	for _, f := range fl.List {
		for _, n := range f.Names {
			g.Params = append(g.Params, TypeParam{Name: n.Name, Constraint: f.Type})
		}
	}
	return g
}

// Len returns the number of type parameters.
func (g Generics) Len() int { return len(g.Params) }

// Names returns the parameter names in order.
func (g Generics) Names() []string {
	out := make([]string, len(g.Params))
	for i, p := range g.Params {
		out[i] = p.Name
	}
	return out
}

// Applied returns name instantiated with the parameters themselves, e.g.
// Sut[T, U].
func Applied(name string, g Generics) ast.Expr {
	id := ast.NewIdent(name)
	switch len(g.Params) {
	case 0:
		return id
	case 1:
		return &ast.IndexExpr{X: id, Index: ast.NewIdent(g.Params[0].Name)}
	}
	idx := make([]ast.Expr, len(g.Params))
	for i, p := range g.Params {
		idx[i] = ast.NewIdent(p.Name)
	}
	return &ast.IndexListExpr{X: id, Indices: idx}
}

// Receiver is a normalized method receiver.
type Receiver struct {
	Name     string   // receiver variable name
	Base     string   // receiver type name
	Type     ast.Expr // fully applied receiver type without the pointer
	Pointer  bool
	Generics Generics // bound to the receiver's parameter names
}

// Expr returns the receiver type as declared, including the pointer.
func (r *Receiver) Expr() ast.Expr {
	if r.Pointer {
		return &ast.StarExpr{X: r.Type}
	}
	return r.Type
}
