package parcel

import (
	"errors"
	"fmt"
	"sort"
)

// ErrAlreadyBound is returned by Bind when the name already holds a parcel.
var ErrAlreadyBound = errors.New("parcel name already bound")

// Set is a write-once mapping from name to parcel with an index of the
// families present per base name.
//
// Set is not safe for concurrent mutation. The engine binds into a Set only
// between rounds, so readers inside a round observe a stable snapshot.
type Set struct {
	parcels  map[string]Parcel
	families map[string]map[int]struct{}
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{
		parcels:  make(map[string]Parcel),
		families: make(map[string]map[int]struct{}),
	}
}

// Bind adds p to the set. Names are write-once: binding a name that is
// already present returns ErrAlreadyBound and leaves the set unchanged.
func (s *Set) Bind(p Parcel) error {
	key := p.name.String()
	if _, exists := s.parcels[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, key)
	}

	s.parcels[key] = p
	if p.name.Indexed {
		fam := s.families[p.name.Base]
		if fam == nil {
			fam = make(map[int]struct{})
			s.families[p.name.Base] = fam
		}
		fam[p.name.Index] = struct{}{}
	}
	return nil
}

// Lookup returns the parcel bound to name.
func (s *Set) Lookup(name Name) (Parcel, bool) {
	p, ok := s.parcels[name.String()]
	return p, ok
}

// Has reports whether name is bound, regardless of its value.
func (s *Set) Has(name Name) bool {
	_, ok := s.parcels[name.String()]
	return ok
}

// HasFamily reports whether at least one base[i] is bound.
func (s *Set) HasFamily(base string) bool {
	return len(s.families[base]) > 0
}

// Indices returns the bound indices of the base family in ascending order.
// The result may be sparse.
func (s *Set) Indices(base string) []int {
	fam := s.families[base]
	if len(fam) == 0 {
		return nil
	}
	out := make([]int, 0, len(fam))
	for i := range fam {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of bound names.
func (s *Set) Len() int {
	return len(s.parcels)
}

// Names returns every bound name, sorted.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.parcels))
	for k := range s.parcels {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Values returns a name→value copy of the set.
func (s *Set) Values() map[string]any {
	out := make(map[string]any, len(s.parcels))
	for k, p := range s.parcels {
		out[k] = p.value
	}
	return out
}

// Parcels returns the bound parcels in name order.
func (s *Set) Parcels() []Parcel {
	names := s.Names()
	out := make([]Parcel, len(names))
	for i, n := range names {
		out[i] = s.parcels[n]
	}
	return out
}

// Clone returns an independent copy. Parcel values are shared, not copied.
func (s *Set) Clone() *Set {
	c := &Set{
		parcels:  make(map[string]Parcel, len(s.parcels)),
		families: make(map[string]map[int]struct{}, len(s.families)),
	}
	for k, p := range s.parcels {
		c.parcels[k] = p
	}
	for base, fam := range s.families {
		cf := make(map[int]struct{}, len(fam))
		for i := range fam {
			cf[i] = struct{}{}
		}
		c.families[base] = cf
	}
	return c
}
