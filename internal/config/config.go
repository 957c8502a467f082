package config

import (
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"github.com/fatih/structtag"

	"github.com/cmmoran/buildergen/internal/diag"
)

const (
	// Prefix starts every directive comment.
	Prefix = "//builder:"
	// TagKey is the struct tag key holding member options.
	TagKey = "builder"

	DirectiveGen   = "gen"
	DirectiveParam = "param"
)

// Vis is an explicit visibility request.
type Vis int

const (
	VisDefault Vis = iota
	VisExported
	VisUnexported
)

// Exported resolves the visibility, falling back to def when unset.
func (v Vis) Exported(def bool) bool {
	switch v {
	case VisExported:
		return true
	case VisUnexported:
		return false
	}
	return def
}

// Item is the declaration level configuration from `//builder:gen`.
type Item struct {
	Type      string
	Start     string
	StartVis  Vis
	Finish    string
	FinishVis Vis

	Node ast.Node
}

// Member is the configuration of one struct field or function parameter.
type Member struct {
	Skip        bool
	SkipExpr    ast.Expr
	Default     bool
	DefaultExpr ast.Expr
	Optional    bool
	Required    bool
	Into        ast.Expr
	Via         ast.Expr
	Name        string
	Each        bool
	EachName    string

	// Node locates the option source for diagnostics.
	Node ast.Node
}

// Exprs returns the expressions carried by the member's options.
func (m *Member) Exprs() []ast.Expr {
	var out []ast.Expr
	for _, e := range []ast.Expr{m.SkipExpr, m.DefaultExpr, m.Into, m.Via} {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Rewrite replaces every expression carried by the member's options with the
// result of fn.
func (m *Member) Rewrite(fn func(ast.Expr) (ast.Expr, error)) error {
	for _, p := range []*ast.Expr{&m.SkipExpr, &m.DefaultExpr, &m.Into, &m.Via} {
		if *p == nil {
			continue
		}
		e, err := fn(*p)
		if err != nil {
			return err
		}
		*p = e
	}
	return nil
}

// Directive is a single `//builder:<name> <args>` comment line.
type Directive struct {
	Name    string
	Args    string
	Comment *ast.Comment
}

// IsDirective reports whether c is a builder directive.
func IsDirective(c *ast.Comment) bool {
	return strings.HasPrefix(c.Text, Prefix)
}

// Directives returns the builder directives found in cg, in source order.
func Directives(cg *ast.CommentGroup) []Directive {
	if cg == nil {
		return nil
	}
	var out []Directive
	for _, c := range cg.List {
		if !IsDirective(c) {
			continue
		}
		rest := strings.TrimPrefix(c.Text, Prefix)
		name, args, _ := strings.Cut(rest, " ")
		out = append(out, Directive{
			Name:    strings.TrimSpace(name),
			Args:    strings.TrimSpace(args),
			Comment: c,
		})
	}
	return out
}

// ParseItem parses the options of a `//builder:gen` directive.
func ParseItem(d Directive) (Item, error) {
	item := Item{Node: d.Comment}
	opts, err := Split(d.Args)
	if err != nil {
		return item, diag.Wrap(diag.InvalidOption, d.Comment, err)
	}
	seen := map[string]bool{}
	for _, o := range opts {
		if seen[o.Key] {
			return item, diag.Errorf(diag.InvalidOption, d.Comment, "duplicate option %q", o.Key)
		}
		seen[o.Key] = true

		switch o.Key {
		case "type", "start", "finish":
			name, err := identValue(o, d.Comment)
			if err != nil {
				return item, err
			}
			switch o.Key {
			case "type":
				item.Type = name
			case "start":
				item.Start = name
			default:
				item.Finish = name
			}
		case "start_vis", "finish_vis":
			vis, err := visValue(o, d.Comment)
			if err != nil {
				return item, err
			}
			if o.Key == "start_vis" {
				item.StartVis = vis
			} else {
				item.FinishVis = vis
			}
		default:
			return item, diag.Errorf(diag.InvalidOption, d.Comment, "unknown option %q", o.Key)
		}
	}
	return item, nil
}

// ParseTag parses the `builder` key of a struct field tag. A missing tag or
// key yields an empty Member.
func ParseTag(lit *ast.BasicLit) (Member, error) {
	if lit == nil {
		return Member{}, nil
	}
	raw, err := strconv.Unquote(lit.Value)
	if err != nil {
		return Member{Node: lit}, diag.Wrap(diag.InvalidOption, lit, err)
	}
	tags, err := structtag.Parse(raw)
	if err != nil {
		// Keys other than ours may be malformed; only fail when ours is.
		if v, ok := reflect.StructTag(raw).Lookup(TagKey); ok {
			return ParseMember(v, lit)
		}
		if strings.Contains(raw, TagKey+":") {
			return Member{Node: lit}, diag.Wrap(diag.InvalidOption, lit, err)
		}
		return Member{Node: lit}, nil
	}
	tag, err := tags.Get(TagKey)
	if err != nil {
		return Member{Node: lit}, nil
	}
	return ParseMember(tag.Value(), lit)
}

// ParseMember parses a member option list. The node locates diagnostics.
func ParseMember(args string, node ast.Node) (Member, error) {
	m := Member{Node: node}
	opts, err := Split(args)
	if err != nil {
		return m, diag.Wrap(diag.InvalidOption, node, err)
	}

	seen := map[string]bool{}
	var order []string
	for _, o := range opts {
		if seen[o.Key] {
			return m, diag.Errorf(diag.InvalidOption, node, "duplicate option %q", o.Key)
		}
		seen[o.Key] = true
		order = append(order, o.Key)

		switch o.Key {
		case "skip":
			m.Skip = true
			if m.SkipExpr, err = optionalExpr(o, node); err != nil {
				return m, err
			}
		case "default":
			m.Default = true
			if m.DefaultExpr, err = optionalExpr(o, node); err != nil {
				return m, err
			}
		case "optional", "required":
			if o.HasValue {
				return m, diag.Errorf(diag.InvalidOption, node, "option %q takes no value", o.Key)
			}
			if o.Key == "optional" {
				m.Optional = true
			} else {
				m.Required = true
			}
		case "into", "via":
			if !o.HasValue || o.Value == "" {
				return m, diag.Errorf(diag.InvalidOption, node, "option %q requires a value", o.Key)
			}
			e, err := parseExpr(o, node)
			if err != nil {
				return m, err
			}
			if o.Key == "into" {
				m.Into = e
			} else {
				m.Via = e
			}
		case "name":
			if m.Name, err = identValue(o, node); err != nil {
				return m, err
			}
		case "each":
			m.Each = true
			if o.HasValue {
				if m.EachName, err = identValue(o, node); err != nil {
					return m, err
				}
			}
		default:
			return m, diag.Errorf(diag.InvalidOption, node, "unknown option %q", o.Key)
		}
	}

	if m.Skip && len(order) > 1 {
		for _, k := range order {
			if k != "skip" {
				return m, diag.Errorf(diag.ConflictingOption, node, "skip cannot be combined with %s", k)
			}
		}
	}
	if m.Required {
		switch {
		case m.Default:
			return m, diag.Errorf(diag.ConflictingOption, node, "required cannot be combined with default")
		case m.Optional:
			return m, diag.Errorf(diag.ConflictingOption, node, "required cannot be combined with optional")
		}
	}
	if m.Default && m.Optional {
		return m, diag.Errorf(diag.ConflictingOption, node, "default already makes a member optional")
	}
	if m.Via != nil && m.Into == nil {
		return m, diag.Errorf(diag.MissingRequiredOption, node, "via requires into to name the setter's parameter type")
	}
	return m, nil
}

func identValue(o Option, node ast.Node) (string, error) {
	if !o.HasValue || o.Value == "" {
		return "", diag.Errorf(diag.InvalidOption, node, "option %q requires a value", o.Key)
	}
	if !token.IsIdentifier(o.Value) || o.Value == "_" {
		return "", diag.Errorf(diag.InvalidOption, node, "option %s: %q is not a valid identifier", o.Key, o.Value)
	}
	return o.Value, nil
}

func visValue(o Option, node ast.Node) (Vis, error) {
	switch o.Value {
	case "exported":
		return VisExported, nil
	case "unexported":
		return VisUnexported, nil
	case "":
		return VisDefault, diag.Errorf(diag.InvalidOption, node, "option %q requires a value", o.Key)
	}
	return VisDefault, diag.Errorf(diag.InvalidOption, node, "option %s: want exported or unexported, got %q", o.Key, o.Value)
}

func optionalExpr(o Option, node ast.Node) (ast.Expr, error) {
	if !o.HasValue {
		return nil, nil
	}
	if o.Value == "" {
		return nil, diag.Errorf(diag.InvalidOption, node, "option %q has an empty value", o.Key)
	}
	return parseExpr(o, node)
}

func parseExpr(o Option, node ast.Node) (ast.Expr, error) {
	e, err := parser.ParseExpr(o.Value)
	if err != nil {
		return nil, diag.Errorf(diag.InvalidOption, node, "option %s: cannot parse %q", o.Key, o.Value)
	}
	var lit ast.Node
	ast.Inspect(e, func(n ast.Node) bool {
		if _, ok := n.(*ast.FuncLit); ok && lit == nil {
			lit = n
		}
		return lit == nil
	})
	if lit != nil {
		return nil, diag.Errorf(diag.InvalidOption, node, "option %s: function literals are not supported", o.Key)
	}
	return e, nil
}
