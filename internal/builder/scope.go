package builder

// Scope records the package-level identifiers and type members of one
// package, plus the names claimed by builders generated so far.
type Scope struct {
	names   map[string]string            // name → owner, "" for source declarations
	members map[string]map[string]string // type → member → owner
}

func NewScope() *Scope {
	return &Scope{
		names:   map[string]string{},
		members: map[string]map[string]string{},
	}
}

// Declare records a package-level identifier from source.
func (s *Scope) Declare(name string) {
	if name == "" || name == "_" {
		return
	}
	s.names[name] = ""
}

// DeclareMember records a method or field of a named type.
func (s *Scope) DeclareMember(typ, name string) {
	if name == "" || name == "_" {
		return
	}
	m, ok := s.members[typ]
	if !ok {
		m = map[string]string{}
		s.members[typ] = m
	}
	m[name] = ""
}

// Lookup returns the owner of a package-level name. The owner is empty for
// source declarations and the builder name for generated ones.
func (s *Scope) Lookup(name string) (owner string, ok bool) {
	owner, ok = s.names[name]
	return owner, ok
}

// LookupMember is Lookup for members of typ.
func (s *Scope) LookupMember(typ, name string) (owner string, ok bool) {
	owner, ok = s.members[typ][name]
	return owner, ok
}

func (s *Scope) claim(owner string, names ...string) {
	for _, n := range names {
		s.names[n] = owner
	}
}

func (s *Scope) claimMember(owner, typ, name string) {
	s.DeclareMember(typ, name)
	s.members[typ][name] = owner
}
