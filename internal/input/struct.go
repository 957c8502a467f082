package input

import (
	"go/ast"

	"github.com/cmmoran/buildergen/internal/builder"
	"github.com/cmmoran/buildergen/internal/config"
	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/model"
)

// Struct adapts a struct type declaration. The finish function returns a
// composite literal of the struct.
type Struct struct {
	spec     *ast.TypeSpec
	st       *ast.StructType
	doc      *ast.CommentGroup
	item     config.Item
	env      *Env
	generics model.Generics
}

// NewStruct rejects type declarations that are not structs with named fields.
func NewStruct(ts *ast.TypeSpec, doc *ast.CommentGroup, item config.Item, env *Env) (*Struct, error) {
	if ts.Assign.IsValid() {
		return nil, diag.Errorf(diag.UnsupportedFields, ts, "%s is an alias, builders are generated for struct declarations", ts.Name.Name)
	}
	st, ok := ts.Type.(*ast.StructType)
	if !ok {
		return nil, diag.Errorf(diag.UnsupportedFields, ts, "%s is not a struct type", ts.Name.Name)
	}
	if st.Fields == nil || len(st.Fields.List) == 0 {
		return nil, diag.Errorf(diag.UnsupportedFields, ts, "%s has no fields", ts.Name.Name)
	}
	return &Struct{
		spec:     ts,
		st:       st,
		doc:      doc,
		item:     item,
		env:      env,
		generics: model.GenericsOf(ts.TypeParams),
	}, nil
}

func (s *Struct) Spec() builder.Spec {
	return builder.Spec{
		Subject:  builder.Struct,
		Decl:     s.spec.Name.Name,
		Pos:      s.spec.Name.Pos(),
		PkgPath:  s.env.PkgPath,
		Doc:      model.DocLines(s.doc),
		Generics: s.generics,
		Item:     s.item,
	}
}

func (s *Struct) Receiver() (*model.Receiver, error) { return nil, nil }

func (s *Struct) Fields() ([]*model.Field, error) {
	self := model.Applied(s.spec.Name.Name, s.generics)
	exported := builder.BuilderExported(s.item, s.spec.Name.Name, nil)

	var out []*model.Field
	for _, f := range s.st.Fields.List {
		opts, err := config.ParseTag(f.Tag)
		if err != nil {
			return nil, err
		}
		if err := opts.Rewrite(selfRewriter(s.env, self, f)); err != nil {
			return nil, err
		}
		for _, raw := range model.RawFields(f) {
			field, err := model.NewField(raw, opts, exported)
			if err != nil {
				return nil, err
			}
			out = append(out, field)
		}
	}
	return out, nil
}

func (s *Struct) Finish() builder.Finish {
	return builder.Finish{Target: model.Applied(s.spec.Name.Name, s.generics)}
}
