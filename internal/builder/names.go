package builder

import (
	"fmt"
	"go/ast"

	"github.com/cespare/xxhash/v2"

	"github.com/cmmoran/buildergen/internal/config"
	"github.com/cmmoran/buildergen/internal/diag"
	"github.com/cmmoran/buildergen/internal/model"
)

// Names are the package-level identifiers generated for one builder.
type Names struct {
	Builder string
	State   string
	Set     string
	Unset   string
	Impl    string
	Start   string // a method on the receiver type for method builders
	Finish  string
}

// Hash returns the first eight hex digits of the xxhash64 of key.
func Hash(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))[:8]
}

// BuilderName returns the builder type name for a declaration. The name of a
// method builder is prefixed by its receiver type.
func BuilderName(item config.Item, decl string, recv *model.Receiver) string {
	if item.Type != "" {
		return item.Type
	}
	base := model.UpperFirst(decl)
	if recv != nil {
		base = model.UpperFirst(recv.Base) + base
	}
	return model.SetCase(base+"Builder", ast.IsExported(decl))
}

// BuilderExported reports whether setters of the builder are exported.
func BuilderExported(item config.Item, decl string, recv *model.Receiver) bool {
	return ast.IsExported(BuilderName(item, decl, recv))
}

func (c *Context) deriveNames() error {
	exported := ast.IsExported(c.Decl)
	n := Names{Builder: BuilderName(c.Item, c.Decl, c.Receiver)}

	key := c.PkgPath + "."
	if c.Receiver != nil {
		key += c.Receiver.Base + "."
	}
	key += c.Decl
	hidden := "_" + n.Builder + "_" + Hash(key)
	n.State = hidden + "State"
	n.Set = n.State + "Set"
	n.Unset = n.State + "Unset"
	n.Impl = hidden + "Impl"

	var start, finish string
	switch c.Subject {
	case Struct:
		start = "New" + model.UpperFirst(n.Builder)
		finish = "Build" + model.UpperFirst(c.Decl)
	case Func:
		start = "New" + model.UpperFirst(n.Builder)
		finish = "Call" + model.UpperFirst(c.Decl)
	case Method:
		start = model.UpperFirst(c.Decl) + "Builder"
		finish = "Call" + model.UpperFirst(c.Receiver.Base) + model.UpperFirst(c.Decl)
	}

	var err error
	if n.Start, err = pick(c.Item.Start, c.Item.StartVis, start, exported, "start", c.Item.Node); err != nil {
		return err
	}
	if n.Finish, err = pick(c.Item.Finish, c.Item.FinishVis, finish, exported, "finish", c.Item.Node); err != nil {
		return err
	}
	c.names = n
	return nil
}

// pick resolves an explicit name against its explicit visibility, or derives
// one from def.
func pick(name string, vis config.Vis, def string, exported bool, what string, node ast.Node) (string, error) {
	if name == "" {
		return model.SetCase(def, vis.Exported(exported)), nil
	}
	if vis != config.VisDefault && ast.IsExported(name) != vis.Exported(exported) {
		want := "unexported"
		if vis.Exported(exported) {
			want = "exported"
		}
		return "", diag.Errorf(diag.InvalidBuilderConfig, node, "%s name %s contradicts %s_vis=%s", what, name, what, want)
	}
	return name, nil
}
