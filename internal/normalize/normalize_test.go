package normalize

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/model"
)

func expr(t *testing.T, s string) ast.Expr {
	t.Helper()
	e, err := parser.ParseExpr(s)
	require.NoError(t, err)
	return e
}

func TestSelf(t *testing.T) {
	self := model.Applied("Sut", model.Generics{Params: []model.TypeParam{{Name: "T"}, {Name: "U"}}})
	tests := []struct {
		in, want string
	}{
		{"Self{}", "Sut[T, U]{}"},
		{"Self{Self: 1}.Value()", "Sut[T, U]{…}.Value()"},
		{"x.Self", "x.Self"},
		{"[]Self{}", "[]Sut[T, U]{}"},
		{"NewSelf()", "NewSelf()"},
		{"Self", "Sut[T, U]"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Self(expr(t, tt.in), self)
			assert.Equal(t, tt.want, types.ExprString(got))
		})
	}
}

func TestSelfKeepsKeys(t *testing.T) {
	self := ast.NewIdent("Sut")
	got := Self(expr(t, "Self{Self: Self{}}"), self).(*ast.CompositeLit)
	assert.Same(t, self, got.Type)
	kv := got.Elts[0].(*ast.KeyValueExpr)
	assert.Equal(t, "Self", kv.Key.(*ast.Ident).Name)
	assert.Same(t, self, kv.Value.(*ast.CompositeLit).Type)
}

func TestContainsSelf(t *testing.T) {
	assert.True(t, ContainsSelf(expr(t, "pkg.F(Self{})")))
	assert.False(t, ContainsSelf(expr(t, "pkg.Self")))
	assert.False(t, ContainsSelf(nil))
}

func TestClone(t *testing.T) {
	fset := token.NewFileSet()
	orig := expr(t, "map[string][]int{\"a\": {1, 2}}")
	c, err := Clone(fset, orig)
	require.NoError(t, err)
	assert.NotSame(t, orig, c)

	Rename(c, map[string]string{"int": "int64"})
	assert.Equal(t, `map[string][]int{…}`, types.ExprString(orig))
	assert.Equal(t, `map[string][]int64{…}`, types.ExprString(c))
}

func parseTypes(t *testing.T, src string) (*token.FileSet, map[string]*ast.TypeSpec, []*ast.FuncDecl) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "r.go", src, 0)
	require.NoError(t, err)
	specs := map[string]*ast.TypeSpec{}
	var funcs []*ast.FuncDecl
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.GenDecl:
			for _, s := range d.Specs {
				if ts, ok := s.(*ast.TypeSpec); ok {
					specs[ts.Name.Name] = ts
				}
			}
		case *ast.FuncDecl:
			funcs = append(funcs, d)
		}
	}
	return fset, specs, funcs
}

func TestReceiver(t *testing.T) {
	fset, specs, funcs := parseTypes(t, `package r

type Store[K comparable, V interface{ ~[]K }] struct{}

func (s *Store[A, B]) Put() {}
func (Store[V, _]) Get() {}
func (s Plain) Do() {}

type Plain struct{}
`)
	r, err := Receiver(fset, funcs[0].Recv.List[0], specs)
	require.NoError(t, err)
	assert.Equal(t, "s", r.Name)
	assert.True(t, r.Pointer)
	assert.Equal(t, []string{"A", "B"}, r.Generics.Names())
	assert.Equal(t, "comparable", types.ExprString(r.Generics.Params[0].Constraint))
	assert.Equal(t, "interface{~[]A}", types.ExprString(r.Generics.Params[1].Constraint))
	assert.Equal(t, "*Store[A, B]", types.ExprString(r.Expr()))

	r, err = Receiver(fset, funcs[1].Recv.List[0], specs)
	require.NoError(t, err)
	assert.Empty(t, r.Name)
	assert.False(t, r.Pointer)
	assert.Equal(t, []string{"V", "V2"}, r.Generics.Names())
	assert.Equal(t, "interface{~[]V}", types.ExprString(r.Generics.Params[1].Constraint))

	r, err = Receiver(fset, funcs[2].Recv.List[0], specs)
	require.NoError(t, err)
	assert.Equal(t, "Plain", types.ExprString(r.Type))
	assert.Zero(t, r.Generics.Len())
}

func TestReceiverFailures(t *testing.T) {
	fset, specs, funcs := parseTypes(t, `package r

type Pair[A, B any] struct{}

func (p Pair[A]) One() {}
func (m Missing) Two() {}
`)
	_, err := Receiver(fset, funcs[0].Recv.List[0], specs)
	assert.Equal(t, diag.GenericsNormalizationFailure, diag.KindOf(err))

	_, err = Receiver(fset, funcs[1].Recv.List[0], specs)
	assert.Equal(t, diag.GenericsNormalizationFailure, diag.KindOf(err))
}
