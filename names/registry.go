// Package names assigns exported names that are unique without regard to
// case.
package names

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// ID identifies a source object for the lifetime of one export run.
type ID uint64

type key struct {
	id        ID
	requested string
}

type entry struct {
	id        ID
	final     string
	requested string
}

// Registry maps (identity, requested name) pairs to exported names. A
// Registry belongs to a single export run and is not safe for concurrent
// use.
type Registry struct {
	fold     cases.Caser
	assigned map[key]string
	taken    map[string]*entry
	first    map[ID]string
	order    []*entry
}

func New() *Registry {
	r := &Registry{fold: cases.Fold()}
	r.Clear()
	return r
}

// Clear forgets every assignment.
func (r *Registry) Clear() {
	r.assigned = make(map[key]string)
	r.taken = make(map[string]*entry)
	r.first = make(map[ID]string)
	r.order = nil
}

// Sanitize replaces every character outside [A-Za-z0-9_ -] with '_'.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '_' || c == ' ' || c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (r *Registry) folded(s string) string {
	return r.fold.String(s)
}

// Resolve returns the exported name for requested on behalf of id. The same
// pair always yields the same name within a run.
func (r *Registry) Resolve(id ID, requested string) string {
	k := key{id, requested}
	if name, ok := r.assigned[k]; ok {
		return name
	}
	base := Sanitize(requested)
	name := base
	for n := 1; ; n++ {
		if _, ok := r.taken[r.folded(name)]; !ok {
			break
		}
		name = base + "-" + strconv.Itoa(n)
	}
	e := &entry{id: id, final: name, requested: requested}
	r.assigned[k] = name
	r.taken[r.folded(name)] = e
	if _, ok := r.first[id]; !ok {
		r.first[id] = requested
	}
	r.order = append(r.order, e)
	return name
}

// Original returns the requested name of the first registration of id.
func (r *Registry) Original(id ID) (string, bool) {
	name, ok := r.first[id]
	return name, ok
}

// Lookup returns the identity that was assigned name, compared without
// regard to case.
func (r *Registry) Lookup(name string) (ID, bool) {
	e, ok := r.taken[r.folded(name)]
	if !ok {
		return 0, false
	}
	return e.id, true
}

// Names returns every assigned name in assignment order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, e := range r.order {
		out[i] = e.final
	}
	return out
}

// Len returns the number of assigned names.
func (r *Registry) Len() int { return len(r.order) }
