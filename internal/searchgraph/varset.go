package searchgraph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// VarSet is an ordered, duplicate-free set of variable indices. Construct it
// with NewVarSet; the zero value is the empty set.
type VarSet []int

// Key is the canonical encoding of a VarSet and the identity of a node.
type Key string

// RootKey identifies the Root node.
const RootKey Key = ""

// NewVarSet sorts and deduplicates ids. Negative indices are rejected.
func NewVarSet(ids ...int) (VarSet, error) {
	vs := make(VarSet, 0, len(ids))
	for _, id := range ids {
		if id < 0 {
			return nil, fmt.Errorf("negative variable index %d", id)
		}
		vs = append(vs, id)
	}
	sort.Ints(vs)
	out := vs[:0]
	for _, id := range vs {
		if len(out) > 0 && out[len(out)-1] == id {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// MustVarSet is NewVarSet for literals in tests and fixtures.
func MustVarSet(ids ...int) VarSet {
	vs, err := NewVarSet(ids...)
	if err != nil {
		panic(err)
	}
	return vs
}

// Len returns the number of variables.
func (vs VarSet) Len() int { return len(vs) }

// Key returns the canonical map key.
func (vs VarSet) Key() Key {
	if len(vs) == 0 {
		return RootKey
	}
	var b strings.Builder
	for i, id := range vs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return Key(b.String())
}

// Without returns a copy of vs with the element at position i removed.
func (vs VarSet) Without(i int) VarSet {
	out := make(VarSet, 0, len(vs)-1)
	out = append(out, vs[:i]...)
	return append(out, vs[i+1:]...)
}

// IntersectionSize counts the elements shared by vs and other.
func (vs VarSet) IntersectionSize(other VarSet) int {
	n, i, j := 0, 0, 0
	for i < len(vs) && j < len(other) {
		switch {
		case vs[i] == other[j]:
			n++
			i++
			j++
		case vs[i] < other[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// String renders the set the way the search log prints it: {1 2 3}.
func (vs VarSet) String() string {
	parts := make([]string, len(vs))
	for i, id := range vs {
		parts[i] = strconv.Itoa(id)
	}
	return "{" + strings.Join(parts, " ") + "}"
}
