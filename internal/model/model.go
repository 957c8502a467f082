package model

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/cmmoran/buildergen/internal/config"
)

// RawField is a struct field or function parameter as written in source.
type RawField struct {
	Name       string   // "" for embedded fields and unnamed parameters
	Node       ast.Node // the field or parameter, for diagnostics
	TypeExpr   ast.Expr // AST for the type (pointer, slice, selector, …)
	Doc        []string // doc and trailing comment lines, directives removed
	IsEmbedded bool
	IsVariadic bool // last parameter declared as ...T
}

// RawFields expands an *ast.Field into one RawField per name.
//
//	X, Y string
//
// yields two entries sharing the type expression.
func RawFields(f *ast.Field) []*RawField {
	if f == nil {
		return nil
	}
	doc := append(DocLines(f.Doc), DocLines(f.Comment)...)
	typ := f.Type
	variadic := false
	if e, ok := typ.(*ast.Ellipsis); ok {
		typ = &ast.ArrayType{Lbrack: e.Pos(), Elt: e.Elt}
		variadic = true
	}

	if len(f.Names) == 0 {
		return []*RawField{{
			Node:       f,
			TypeExpr:   typ,
			Doc:        doc,
			IsEmbedded: true,
			IsVariadic: variadic,
		}}
	}

	out := make([]*RawField, 0, len(f.Names))
	for _, id := range f.Names {
		out = append(out, &RawField{
			Name:       id.Name,
			Node:       id,
			TypeExpr:   typ,
			Doc:        doc,
			IsVariadic: variadic,
		})
	}
	return out
}

// DocLines returns the text lines of cg without comment markers, dropping
// builder directives.
func DocLines(cg *ast.CommentGroup) []string {
	if cg == nil {
		return nil
	}
	var out []string
	for _, c := range cg.List {
		if config.IsDirective(c) {
			continue
		}
		txt := c.Text
		switch {
		case strings.HasPrefix(txt, "//"):
			out = append(out, strings.TrimPrefix(strings.TrimPrefix(txt, "//"), " "))
		case strings.HasPrefix(txt, "/*"):
			body := strings.TrimSuffix(strings.TrimPrefix(txt, "/*"), "*/")
			for _, l := range strings.Split(body, "\n") {
				out = append(out, strings.TrimSpace(l))
			}
		}
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	for len(out) > 0 && strings.TrimSpace(out[0]) == "" {
		out = out[1:]
	}
	return out
}

// Idents collects every identifier name appearing in the given nodes.
func Idents(nodes ...ast.Node) map[string]bool {
	out := map[string]bool{}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		ast.Inspect(n, func(n ast.Node) bool {
			if id, ok := n.(*ast.Ident); ok {
				out[id.Name] = true
			}
			return true
		})
	}
	return out
}

// Position returns the position of n, or token.NoPos when n is nil.
func Position(n ast.Node) token.Pos {
	if n == nil {
		return token.NoPos
	}
	return n.Pos()
}
