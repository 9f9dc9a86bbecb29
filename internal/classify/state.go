package classify

import "sort"

// AddressSet is an unordered set of property addresses.
type AddressSet map[string]struct{}

// NewAddressSet builds a set from addrs.
func NewAddressSet(addrs ...string) AddressSet {
	s := make(AddressSet, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

func (s AddressSet) Add(addr string)      { s[addr] = struct{}{} }
func (s AddressSet) Remove(addr string)   { delete(s, addr) }
func (s AddressSet) Has(addr string) bool { _, ok := s[addr]; return ok }
func (s AddressSet) Len() int             { return len(s) }

// Sorted returns the members in lexical order.
func (s AddressSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s AddressSet) Clone() AddressSet {
	c := make(AddressSet, len(s))
	for a := range s {
		c[a] = struct{}{}
	}
	return c
}

// Difference returns the members of s that are not in other.
func (s AddressSet) Difference(other AddressSet) AddressSet {
	d := make(AddressSet)
	for a := range s {
		if !other.Has(a) {
			d[a] = struct{}{}
		}
	}
	return d
}

// Intersect returns the members present in both sets.
func (s AddressSet) Intersect(other AddressSet) AddressSet {
	d := make(AddressSet)
	for a := range s {
		if other.Has(a) {
			d[a] = struct{}{}
		}
	}
	return d
}

// State is the persisted classification: two disjoint address sets.
type State struct {
	Possible AddressSet
	Rejected AddressSet
}

// NewState builds a State from loaded address lists. An address present in
// both lists is kept only in Rejected, which restores disjointness for
// files written by older versions.
func NewState(possible, rejected []string) *State {
	st := &State{
		Possible: NewAddressSet(possible...),
		Rejected: NewAddressSet(rejected...),
	}
	for a := range st.Rejected {
		st.Possible.Remove(a)
	}
	return st
}

// MarkPossible records addr as a match.
func (st *State) MarkPossible(addr string) {
	st.Rejected.Remove(addr)
	st.Possible.Add(addr)
}

// MarkRejected records addr as a non-match. A previously possible address
// that no longer matches moves across.
func (st *State) MarkRejected(addr string) {
	st.Possible.Remove(addr)
	st.Rejected.Add(addr)
}
