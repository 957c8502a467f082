package builder

import (
	"fmt"
	"go/token"
	"iter"
)

// NS manages unique names in a namespace.
type NS map[string]struct{}

// NewNS creates a namespace with the given names reserved.
func NewNS(names ...string) NS {
	ns := make(NS)
	for _, n := range names {
		ns.Reserve(n)
	}
	return ns
}

// Reserve marks a name as used. If the name is already used, it returns
// false.
func (ns NS) Reserve(name string) bool {
	if _, ok := ns[name]; ok {
		return false
	}
	ns[name] = struct{}{}
	return true
}

// Has reports whether name is used.
func (ns NS) Has(name string) bool {
	_, ok := ns[name]
	return ok
}

// Name returns a unique name derived from name and reserves it. Keywords get
// a trailing underscore.
//
// Panics if the name is empty.
func (ns NS) Name(name string) string {
	if name == "" {
		panic("empty name")
	}
	if token.IsKeyword(name) {
		name += "_"
	}
	for n := range disambiguate(name) {
		if ns.Reserve(n) {
			return n
		}
	}
	panic("unreachable")
}

// disambiguate yields name, then name with increasing numeric suffixes.
// "answer42_2" is better than "answer422".
func disambiguate(name string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !yield(name) {
			return
		}
		sep := ""
		if last := name[len(name)-1]; last >= '0' && last <= '9' {
			sep = "_"
		}
		for i := 2; ; i++ {
			if !yield(fmt.Sprintf("%s%s%d", name, sep, i)) {
				return
			}
		}
	}
}
