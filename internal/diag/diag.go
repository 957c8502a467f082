package diag

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"slices"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// InvalidOption reports an unknown or malformed option or directive.
	InvalidOption Kind = iota + 1
	// ConflictingOption reports options that cannot be combined.
	ConflictingOption
	// MissingRequiredOption reports an option that depends on another one.
	MissingRequiredOption
	// UnnamedMember reports embedded fields and unnamed or blank parameters.
	UnnamedMember
	// UnsupportedFields reports declarations with no usable named fields.
	UnsupportedFields
	// InvalidBuilderConfig reports naming and visibility collisions.
	InvalidBuilderConfig
	// GenericsNormalizationFailure reports a failure to resolve Self or
	// receiver type parameters.
	GenericsNormalizationFailure
)

var kindNames = map[Kind]string{
	InvalidOption:                "invalid option",
	ConflictingOption:            "conflicting option",
	MissingRequiredOption:        "missing required option",
	UnnamedMember:                "unnamed member",
	UnsupportedFields:            "unsupported fields",
	InvalidBuilderConfig:         "invalid builder config",
	GenericsNormalizationFailure: "generics normalization failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Diagnostic indicates where a problem occurred in the user's source code.
type Diagnostic struct {
	Kind Kind
	Msg  string
	Pos  token.Pos
	End  token.Pos
	Fset *token.FileSet
}

// Error implements the error interface. If the position is valid and a file
// set is attached, the position is prepended to the message.
func (d *Diagnostic) Error() string {
	if !d.Pos.IsValid() || d.Fset == nil {
		return d.Msg
	}
	return fmt.Sprintf("%s: %s", d.Fset.Position(d.Pos), d.Msg)
}

// At locates a diagnostic at a bare position.
type At token.Pos

func (a At) Pos() token.Pos { return token.Pos(a) }
func (a At) End() token.Pos { return token.Pos(a) }

// Errorf formats a diagnostic of the given kind located at node. The node may
// be nil.
func Errorf(kind Kind, node ast.Node, format string, args ...any) error {
	d := &Diagnostic{Kind: kind, Msg: fmt.Sprintf(format, args...)}
	if node != nil {
		d.Pos, d.End = node.Pos(), node.End()
	}
	return d
}

// Wrap turns err into a diagnostic of the given kind located at node. A
// diagnostic passes through unchanged.
func Wrap(kind Kind, node ast.Node, err error) error {
	if err == nil {
		return nil
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return err
	}
	return Errorf(kind, node, "%s", err.Error())
}

// KindOf returns the kind of the first diagnostic in err, or 0.
func KindOf(err error) Kind {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Kind
	}
	return 0
}

// Is reports whether err contains a diagnostic of the given kind.
func Is(err error, kind Kind) bool {
	for _, e := range Flatten(err) {
		var d *Diagnostic
		if errors.As(e, &d) && d.Kind == kind {
			return true
		}
	}
	return false
}

// Flatten expands errors joined with errors.Join into a flat list.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range j.Unwrap() {
			out = append(out, Flatten(e)...)
		}
		return out
	}
	return []error{err}
}

// WithFileSet attaches fset to every diagnostic in err that has none yet.
func WithFileSet(err error, fset *token.FileSet) error {
	for _, e := range Flatten(err) {
		var d *Diagnostic
		if errors.As(e, &d) && d.Fset == nil {
			d.Fset = fset
		}
	}
	return err
}

// Sort flattens err and orders diagnostics by file position. Errors without a
// position keep their relative order and come last.
func Sort(err error) []error {
	errs := Flatten(err)
	slices.SortStableFunc(errs, func(a, b error) int {
		pa, oka := position(a)
		pb, okb := position(b)
		switch {
		case !oka && !okb:
			return 0
		case !oka:
			return 1
		case !okb:
			return -1
		}
		if pa.Filename != pb.Filename {
			if pa.Filename < pb.Filename {
				return -1
			}
			return 1
		}
		if pa.Line != pb.Line {
			return pa.Line - pb.Line
		}
		return pa.Column - pb.Column
	})
	return errs
}

func position(err error) (token.Position, bool) {
	var d *Diagnostic
	if !errors.As(err, &d) || d.Fset == nil || !d.Pos.IsValid() {
		return token.Position{}, false
	}
	return d.Fset.Position(d.Pos), true
}
