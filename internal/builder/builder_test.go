package builder

import (
	"bytes"
	"errors"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/dave/jennifer/jen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmmoran/buildergen/internal/config"
	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/model"
	"github.com/cmmoran/buildergen/internal/normalize"
	"github.com/cmmoran/buildergen/internal/render"
)

const pkgPath = "example.com/p"

type fixture struct {
	t     *testing.T
	fset  *token.FileSet
	file  *ast.File
	src   string
	types map[string]*ast.TypeSpec
	funcs map[string]*ast.FuncDecl
	table *render.Imports
	r     *render.Renderer
}

func newFixture(t *testing.T, src string) *fixture {
	t.Helper()
	fx := &fixture{
		t:     t,
		fset:  token.NewFileSet(),
		src:   src,
		types: map[string]*ast.TypeSpec{},
		funcs: map[string]*ast.FuncDecl{},
		table: render.NewImports(),
	}
	var err error
	fx.file, err = parser.ParseFile(fx.fset, "p.go", src, parser.ParseComments)
	require.NoError(t, err)
	for _, d := range fx.file.Decls {
		switch d := d.(type) {
		case *ast.GenDecl:
			for _, s := range d.Specs {
				if ts, ok := s.(*ast.TypeSpec); ok {
					fx.types[ts.Name.Name] = ts
				}
			}
		case *ast.FuncDecl:
			fx.funcs[d.Name.Name] = d
		}
	}
	fx.r = render.NewRenderer(fx.file, fx.table, nil)
	return fx
}

// fields builds the members of a field list, taking options from tag, which
// maps member names to option strings.
func (fx *fixture) fields(fl *ast.FieldList, tags map[string]string, exported bool, skip int) []*model.Field {
	fx.t.Helper()
	var out []*model.Field
	for i, f := range fl.List {
		if i < skip {
			continue
		}
		for _, raw := range model.RawFields(f) {
			opts, err := config.ParseMember(tags[raw.Name], raw.Node)
			require.NoError(fx.t, err)
			fld, err := model.NewField(raw, opts, exported)
			require.NoError(fx.t, err)
			out = append(out, fld)
		}
	}
	return out
}

func (fx *fixture) structSpec(name string, tags map[string]string, item config.Item) Spec {
	ts := fx.types[name]
	g := model.GenericsOf(ts.TypeParams)
	st := ts.Type.(*ast.StructType)
	return Spec{
		Subject:  Struct,
		Decl:     name,
		Pos:      ts.Pos(),
		PkgPath:  pkgPath,
		Fields:   fx.fields(st.Fields, tags, BuilderExported(item, name, nil), 0),
		Generics: g,
		Item:     item,
		Finish:   Finish{Target: model.Applied(name, g)},
	}
}

func (fx *fixture) emit(specs ...Spec) (string, error) {
	fx.t.Helper()
	scope := NewScope()
	for name := range fx.types {
		scope.Declare(name)
	}
	for name, fn := range fx.funcs {
		if fn.Recv == nil {
			scope.Declare(name)
		}
	}
	f := jen.NewFilePathName(pkgPath, "p")
	for _, s := range specs {
		c, err := New(s, scope, fx.r)
		if err != nil {
			return "", err
		}
		if err := c.Emit(f); err != nil {
			return "", err
		}
	}
	fx.table.Register(f)
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// typecheck checks the source, the generated file and a usage file together
// and returns the errors reported in the usage file.
func (fx *fixture) typecheck(generated, usage string) []error {
	fx.t.Helper()
	fset := token.NewFileSet()
	var files []*ast.File
	for name, src := range map[string]string{"p.go": fx.src, "builder_gen.go": generated, "use.go": usage} {
		f, err := parser.ParseFile(fset, name, src, 0)
		require.NoError(fx.t, err, name)
		files = append(files, f)
	}
	var errs []error
	conf := types.Config{
		Importer: importer.ForCompiler(fset, "source", nil),
		Error:    func(err error) { errs = append(errs, err) },
	}
	_, _ = conf.Check(pkgPath, fset, files, nil)

	var inUsage []error
	for _, err := range errs {
		var te types.Error
		require.True(fx.t, errors.As(err, &te))
		if fset.Position(te.Pos).Filename != "use.go" {
			fx.t.Fatalf("generated code does not type-check: %v\n%s", err, generated)
		}
		inUsage = append(inUsage, err)
	}
	return inUsage
}

const sutSrc = `package p

import "fmt"

type name string

func (n name) String() string { return string(n) }

// Sut is the subject under test.
type Sut[T any, U fmt.Stringer] struct {
	A string
	// B is optional.
	B *int
	C T
	D []U
	e [3]int
	f bool
}

func (s Sut[T, U]) fallback() T {
	var zero T
	return zero
}
`

var sutTags = map[string]string{
	"C": "default=Sut[T, U]{}.fallback()",
	"D": "optional,each",
	"f": "skip=true",
}

func TestStructBuilder(t *testing.T) {
	fx := newFixture(t, sutSrc)
	out, err := fx.emit(fx.structSpec("Sut", sutTags, config.Item{}))
	require.NoError(t, err)

	h := Hash(pkgPath + ".Sut")
	state := "_SutBuilder_" + h + "State"
	assert.Contains(t, out, "type SutBuilder[T any, U fmt.Stringer, SA "+state+", SE "+state+"] struct")
	assert.Contains(t, out, "type "+state+" interface {\n\t"+state+"Set | "+state+"Unset\n}")
	assert.Contains(t, out, "func NewSutBuilder[T any, U fmt.Stringer]() SutBuilder[T, U, "+state+"Unset, "+state+"Unset]")
	assert.Contains(t, out, "func BuildSut[T any, U fmt.Stringer](b SutBuilder[T, U, "+state+"Set, "+state+"Set]) Sut[T, U]")
	assert.Contains(t, out, "// B sets the B field.\n//\n// B is optional.\n")
	assert.Contains(t, out, "func (b SutBuilder[T, U, SA, SE]) MaybeB(v *int)")
	assert.Contains(t, out, "func (b SutBuilder[T, U, SA, SE]) AddD(v U)")
	assert.Contains(t, out, "f: true,")
	assert.Equal(t, 1, strings.Count(out, "package p"))

	errs := fx.typecheck(out, `package p

func use() {
	n := 3
	s := BuildSut(NewSutBuilder[int, name]().E([3]int{}).AddD("x").C(42).A("a").B(n))
	_ = s
	_ = BuildSut(NewSutBuilder[int, name]().A("a").E([3]int{}).MaybeB(nil).MaybeC(nil).D(nil))
	var _ Sut[int, name] = BuildSut(NewSutBuilder[int, name]().E([3]int{}).A("a"))
}
`)
	assert.Empty(t, errs)
}

func TestStructBuilderMissingMandatory(t *testing.T) {
	fx := newFixture(t, sutSrc)
	out, err := fx.emit(fx.structSpec("Sut", sutTags, config.Item{}))
	require.NoError(t, err)

	for _, chain := range []string{
		`NewSutBuilder[int, name]().A("a")`,
		`NewSutBuilder[int, name]().E([3]int{}).C(1)`,
		`NewSutBuilder[int, name]()`,
	} {
		t.Run(chain, func(t *testing.T) {
			errs := fx.typecheck(out, "package p\n\nvar _ = BuildSut("+chain+")\n")
			assert.NotEmpty(t, errs)
		})
	}
}

func TestStructBuilderNoMandatory(t *testing.T) {
	fx := newFixture(t, `package p

type opts struct {
	Name  *string
	Count int `+"`builder:\"default=10\"`"+`
	Debug bool `+"`builder:\"optional\"`"+`
}
`)
	spec := fx.structSpec("opts", nil, config.Item{})
	spec.Fields = fx.fields(fx.types["opts"].Type.(*ast.StructType).Fields, map[string]string{
		"Count": "default=10",
		"Debug": "optional",
	}, false, 0)
	out, err := fx.emit(spec)
	require.NoError(t, err)

	assert.NotContains(t, out, "State interface")
	assert.Contains(t, out, "func newOptsBuilder() optsBuilder")
	assert.Contains(t, out, "func buildOpts(b optsBuilder) opts")
	assert.Contains(t, out, "func (b optsBuilder) maybeCount(v *int) optsBuilder")
	assert.Contains(t, out, "CountSet bool")

	errs := fx.typecheck(out, `package p

func use() {
	s := "x"
	_ = buildOpts(newOptsBuilder())
	_ = buildOpts(newOptsBuilder().name(s).count(1).maybeDebug(nil).debug(true))
}
`)
	assert.Empty(t, errs)
}

func TestFuncBuilder(t *testing.T) {
	fx := newFixture(t, `package p

func sut[T any](arg *****T) int { return 0 }
`)
	fn := fx.funcs["sut"]
	g := model.GenericsOf(fn.Type.TypeParams)
	spec := Spec{
		Subject:  Func,
		Decl:     "sut",
		Pos:      fn.Pos(),
		PkgPath:  pkgPath,
		Fields:   fx.fields(fn.Type.Params, nil, false, 0),
		Generics: g,
		Finish:   Finish{Target: model.Applied("sut", g), Results: fn.Type.Results},
	}
	out, err := fx.emit(spec)
	require.NoError(t, err)
	assert.Contains(t, out, "func callSut[T any](b sutBuilder[T]) int")
	assert.Contains(t, out, "return sut[T](b.impl.arg)")
	assert.Contains(t, out, "func (b sutBuilder[T]) arg(v ****T) sutBuilder[T]")

	errs := fx.typecheck(out, `package p

func use() int {
	var p ****int
	return callSut(newSutBuilder[int]().arg(p)) + callSut(newSutBuilder[int]())
}
`)
	assert.Empty(t, errs)
}

const storeSrc = `package p

import "context"

type Store[K comparable, V any] struct {
	m map[K][]V
}

// Put stores vals under key.
func (s *Store[K, V]) Put(ctx context.Context, key K, vals ...V) (int, error) {
	s.m[key] = append(s.m[key], vals...)
	return len(vals), ctx.Err()
}

func (Store[_, V]) Touch(b int, v V) {}
`

func (fx *fixture) methodSpec(name string, params int) Spec {
	fn := fx.funcs[name]
	recv, err := normalize.Receiver(fx.fset, fn.Recv.List[0], fx.types)
	require.NoError(fx.t, err)
	spec := Spec{
		Subject:  Method,
		Decl:     name,
		Pos:      fn.Pos(),
		PkgPath:  pkgPath,
		Doc:      model.DocLines(fn.Doc),
		Generics: recv.Generics,
		Receiver: recv,
		Finish:   Finish{Method: name, Results: fn.Type.Results},
	}
	skip := 0
	if params > 0 {
		p := fn.Type.Params.List[0]
		spec.Finish.Ctx = &Param{Name: p.Names[0].Name, Type: p.Type}
		skip = 1
	}
	spec.Fields = fx.fields(fn.Type.Params, nil, BuilderExported(config.Item{}, name, recv), skip)
	return spec
}

func TestMethodBuilder(t *testing.T) {
	fx := newFixture(t, storeSrc)
	out, err := fx.emit(fx.methodSpec("Put", 1), fx.methodSpec("Touch", 0))
	require.NoError(t, err)

	assert.Contains(t, out, "func (s *Store[K, V]) PutBuilder() StorePutBuilder[K, V, ")
	assert.Contains(t, out, "func CallStorePut[K comparable, V any](ctx context.Context, b StorePutBuilder[K, V, ")
	assert.Contains(t, out, "return b.impl.recv.Put(ctx, b.impl.key, b.impl.vals...)")
	assert.Contains(t, out, "// Put stores vals under key.")
	assert.Contains(t, out, "func (b StorePutBuilder[K, V, SKey]) Vals(v ...V)")
	assert.Contains(t, out, "func (r Store[K, V]) TouchBuilder()")
	assert.Contains(t, out, "func (b StoreTouchBuilder[K, V, SB, SV]) V(v V)")

	errs := fx.typecheck(out, `package p

import "context"

func use() (int, error) {
	s := &Store[string, int]{m: map[string][]int{}}
	CallStoreTouch(Store[string, int]{}.TouchBuilder().V(1).B(2))
	return CallStorePut(context.Background(), s.PutBuilder().Vals(1, 2).Key("k"))
}
`)
	assert.Empty(t, errs)

	errs = fx.typecheck(out, `package p

import "context"

var _, _ = CallStorePut(context.Background(), (&Store[string, int]{}).PutBuilder().Vals(1))
`)
	assert.NotEmpty(t, errs)
}

func TestShadowing(t *testing.T) {
	fx := newFixture(t, `package p

type b int

var v = 7

type Sut struct {
	X b
	Y int `+"`builder:\"default=v\"`"+`
}
`)
	spec := fx.structSpec("Sut", map[string]string{"Y": "default=v"}, config.Item{})
	out, err := fx.emit(spec)
	require.NoError(t, err)
	assert.Contains(t, out, "func (b2 SutBuilder[SX]) X(v2 b)")
	assert.Contains(t, out, "y = v")

	errs := fx.typecheck(out, `package p

var _ = BuildSut(NewSutBuilder().X(1).Y(2))
`)
	assert.Empty(t, errs)
}

func TestNames(t *testing.T) {
	tests := []struct {
		name    string
		subject Subject
		decl    string
		recv    *model.Receiver
		item    config.Item
		want    Names
	}{
		{
			name: "exported struct", subject: Struct, decl: "Sut",
			want: Names{Builder: "SutBuilder", Start: "NewSutBuilder", Finish: "BuildSut"},
		},
		{
			name: "unexported function", subject: Func, decl: "sut",
			want: Names{Builder: "sutBuilder", Start: "newSutBuilder", Finish: "callSut"},
		},
		{
			name: "method", subject: Method, decl: "Put", recv: &model.Receiver{Base: "store"},
			want: Names{Builder: "StorePutBuilder", Start: "PutBuilder", Finish: "CallStorePut"},
		},
		{
			name: "overrides", subject: Struct, decl: "Sut",
			item: config.Item{Type: "Fluent", Start: "make", Finish: "Done"},
			want: Names{Builder: "Fluent", Start: "make", Finish: "Done"},
		},
		{
			name: "visibility", subject: Struct, decl: "Sut",
			item: config.Item{StartVis: config.VisUnexported, Finish: "Done", FinishVis: config.VisExported},
			want: Names{Builder: "SutBuilder", Start: "newSutBuilder", Finish: "Done"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Context{Spec: Spec{Subject: tt.subject, Decl: tt.decl, Receiver: tt.recv, Item: tt.item, PkgPath: pkgPath}}
			require.NoError(t, c.deriveNames())
			got := c.Names()
			assert.Equal(t, tt.want.Builder, got.Builder)
			assert.Equal(t, tt.want.Start, got.Start)
			assert.Equal(t, tt.want.Finish, got.Finish)
			assert.True(t, strings.HasPrefix(got.State, "_"+got.Builder+"_"))
			assert.Equal(t, got.State+"Set", got.Set)
			assert.Equal(t, got.State+"Unset", got.Unset)
		})
	}
}

func TestHash(t *testing.T) {
	a := Hash("example.com/p.Sut")
	assert.Len(t, a, 8)
	assert.Equal(t, a, Hash("example.com/p.Sut"))
	assert.NotEqual(t, a, Hash("example.com/q.Sut"))
}

func TestNS(t *testing.T) {
	ns := NewNS("b", "answer42")
	assert.Equal(t, "b2", ns.Name("b"))
	assert.Equal(t, "b3", ns.Name("b"))
	assert.Equal(t, "answer42_2", ns.Name("answer42"))
	assert.Equal(t, "type_", ns.Name("type"))
	assert.False(t, ns.Reserve("b"))
	assert.True(t, ns.Has("b2"))
}

func TestValidate(t *testing.T) {
	const src = `package p

type Sut struct {
	a      string
	A      string
	B      *int
	MaybeB int
	C      int
}

type Other struct{ X int }

func NewOtherBuilder() {}
`
	tests := []struct {
		name  string
		decl  string
		tags  map[string]string
		item  config.Item
		setup func(*Scope)
		want  string
	}{
		{name: "case collision", decl: "Sut", want: "setter A of A collides with a setter of a"},
		{name: "maybe collision", decl: "Sut", tags: map[string]string{"a": "skip", "A": "skip"}, want: "setter MaybeB of MaybeB"},
		{name: "start equals finish", decl: "Other", item: config.Item{Start: "Make", Finish: "Make"}, want: "start and finish"},
		{name: "finish equals decl", decl: "Other", item: config.Item{Finish: "Other"}, want: "already the name"},
		{name: "package collision", decl: "Other", want: "NewOtherBuilder is already declared"},
		{
			name: "builder collision", decl: "Other", item: config.Item{Start: "MakeOther"},
			setup: func(s *Scope) { s.claim("SutBuilder", "BuildOther") },
			want:  "BuildOther is already generated for builder SutBuilder",
		},
		{name: "vis contradiction", decl: "Other", item: config.Item{Start: "Make", StartVis: config.VisUnexported}, want: "contradicts start_vis=unexported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, src)
			spec := fx.structSpec(tt.decl, tt.tags, tt.item)
			scope := NewScope()
			scope.Declare("Sut")
			scope.Declare("Other")
			scope.Declare("NewOtherBuilder")
			if tt.setup != nil {
				tt.setup(scope)
			}
			_, err := New(spec, scope, fx.r)
			require.Error(t, err)
			assert.Equal(t, diag.InvalidBuilderConfig, diag.KindOf(err))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidateKeywordSetter(t *testing.T) {
	fx := newFixture(t, "package p\n\ntype Sut struct{ F int }\n")
	spec := fx.structSpec("Sut", nil, config.Item{})
	spec.Fields[0].Setter = "func"
	_, err := New(spec, NewScope(), fx.r)
	assert.Equal(t, diag.InvalidBuilderConfig, diag.KindOf(err))
}

func TestKeywordFieldSetter(t *testing.T) {
	fx := newFixture(t, "package p\n\ntype sut struct {\n\tType  string\n\tRange *int\n}\n")
	out, err := fx.emit(fx.structSpec("sut", nil, config.Item{}))
	require.NoError(t, err)
	assert.Contains(t, out, ") type_(v string)")
	assert.Contains(t, out, ") range_(v int)")

	errs := fx.typecheck(out, "package p\n\nvar _ = buildSut(newSutBuilder().type_(\"t\").range_(1))\n")
	assert.Empty(t, errs)
}

func TestValidateStartMethodMember(t *testing.T) {
	fx := newFixture(t, storeSrc)
	spec := fx.methodSpec("Put", 1)
	scope := NewScope()
	scope.DeclareMember("Store", "PutBuilder")
	_, err := New(spec, scope, fx.r)
	assert.ErrorContains(t, err, "Store already has a member named PutBuilder")
}

func TestEmitReservesNames(t *testing.T) {
	fx := newFixture(t, "package p\n\ntype Sut struct{ F int }\n")
	scope := NewScope()
	f := jen.NewFilePathName(pkgPath, "p")
	c, err := New(fx.structSpec("Sut", nil, config.Item{}), scope, fx.r)
	require.NoError(t, err)
	require.NoError(t, c.Emit(f))

	owner, ok := scope.Lookup("NewSutBuilder")
	assert.True(t, ok)
	assert.Equal(t, "SutBuilder", owner)

	_, err = New(fx.structSpec("Sut", nil, config.Item{Finish: "Finish"}), scope, fx.r)
	assert.ErrorContains(t, err, "is already generated for builder SutBuilder")
}
