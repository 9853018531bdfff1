package directory

import (
	"context"
	"strings"
	"sync"

	"meetdir/pkg/dn"
	"meetdir/pkg/platform/sentinel"
)

// Change is one row of the reference backend's change log: the latest state
// written to (DN, Attr). Nil Values records a removal (of the attribute, or
// of the whole entry when Attr is "dn"). A later write to the same (DN, Attr)
// supersedes the earlier row rather than appending a second one.
type Change struct {
	DN     string
	Attr   string
	Values []string
}

// Memory is the in-memory reference backend. It pins the query semantics the
// domain layer relies on and doubles as the test double for the live adapter.
//
// Entries are indexed two ways: by exact DN for base-scoped lookups, and per
// parent base as (a) the full entry list and (b) posting lists keyed by the
// equality filter text, so presence and exact-equality searches are list
// lookups rather than scans. Wildcard equality falls back to a linear scan of
// the base's full list. All mutations keep both indexes consistent.
type Memory struct {
	mu      sync.RWMutex
	byDN    map[string]*record
	byBase  map[string]*bucket
	changes []Change
}

type record struct {
	dn    string
	attrs map[string][]string
}

type bucket struct {
	all []*record
	eq  map[string][]*record
}

func NewMemory() *Memory {
	return &Memory{
		byDN:   make(map[string]*record),
		byBase: make(map[string]*bucket),
	}
}

func (m *Memory) Search(_ context.Context, req SearchRequest) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if req.Scope == ScopeBase {
		rec, ok := m.byDN[req.Base]
		if !ok {
			return nil, nil
		}
		e := rec.entry()
		if req.Filter != nil && !req.Filter.Matches(e) {
			return nil, nil
		}
		return []Entry{e}, nil
	}

	b, ok := m.byBase[req.Base]
	if !ok {
		return nil, nil
	}
	recs := b.evaluate(req.Filter)
	entries := make([]Entry, len(recs))
	for i, rec := range recs {
		entries[i] = rec.entry()
	}
	return entries, nil
}

// evaluate resolves a filter to records in insertion order. Disjunctions
// union their sub-results with duplicates removed by DN.
func (b *bucket) evaluate(f *Filter) []*record {
	if f == nil {
		return b.all
	}
	switch f.op {
	case opPresent:
		var out []*record
		for _, rec := range b.all {
			if len(rec.attrs[f.attr]) > 0 {
				out = append(out, rec)
			}
		}
		return out
	case opEq:
		if f.Wildcard() {
			var out []*record
			for _, rec := range b.all {
				if f.Matches(rec.entry()) {
					out = append(out, rec)
				}
			}
			return out
		}
		return b.eq[f.String()]
	case opOr:
		var out []*record
		seen := make(map[string]bool)
		for _, sub := range f.subs {
			for _, rec := range b.evaluate(sub) {
				if !seen[rec.dn] {
					seen[rec.dn] = true
					out = append(out, rec)
				}
			}
		}
		return out
	}
	return nil
}

func (m *Memory) Add(_ context.Context, entryDN string, attrs map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byDN[entryDN]; ok {
		return sentinel.ErrExists
	}

	rec := &record{dn: entryDN, attrs: make(map[string][]string)}
	for attr, values := range attrs {
		attr = strings.ToLower(attr)
		values = nonEmpty(values)
		if len(values) == 0 {
			continue
		}
		rec.attrs[attr] = values
	}

	m.byDN[entryDN] = rec
	b := m.bucketFor(dn.Parent(entryDN))
	b.all = append(b.all, rec)
	for attr, values := range rec.attrs {
		b.index(attr, values, rec)
	}

	m.recordChange(entryDN, "dn", []string{entryDN})
	for attr, values := range rec.attrs {
		m.recordChange(entryDN, attr, values)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, entryDN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byDN[entryDN]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(m.byDN, entryDN)

	b := m.bucketFor(dn.Parent(entryDN))
	b.all = removeRecord(b.all, rec)
	for attr, values := range rec.attrs {
		b.unindex(attr, values, rec)
	}

	m.recordChange(entryDN, "dn", nil)
	return nil
}

func (m *Memory) AddAttribute(_ context.Context, entryDN, attr string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byDN[entryDN]
	if !ok {
		return sentinel.ErrNotFound
	}
	attr = strings.ToLower(attr)
	values = nonEmpty(values)

	rec.attrs[attr] = append(rec.attrs[attr], values...)
	m.bucketFor(dn.Parent(entryDN)).index(attr, values, rec)

	m.recordChange(entryDN, attr, rec.attrs[attr])
	return nil
}

func (m *Memory) ReplaceAttribute(_ context.Context, entryDN, attr string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byDN[entryDN]
	if !ok {
		return sentinel.ErrNotFound
	}
	attr = strings.ToLower(attr)
	values = nonEmpty(values)

	b := m.bucketFor(dn.Parent(entryDN))
	b.unindex(attr, rec.attrs[attr], rec)
	if len(values) == 0 {
		delete(rec.attrs, attr)
		m.recordChange(entryDN, attr, nil)
		return nil
	}
	rec.attrs[attr] = values
	b.index(attr, values, rec)

	m.recordChange(entryDN, attr, values)
	return nil
}

func (m *Memory) DeleteAttribute(_ context.Context, entryDN, attr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byDN[entryDN]
	if !ok {
		return sentinel.ErrNotFound
	}
	attr = strings.ToLower(attr)
	values, ok := rec.attrs[attr]
	if !ok {
		return sentinel.ErrNoSuchAttribute
	}
	delete(rec.attrs, attr)
	m.bucketFor(dn.Parent(entryDN)).unindex(attr, values, rec)

	m.recordChange(entryDN, attr, nil)
	return nil
}

// Changes returns a copy of the change log in order.
func (m *Memory) Changes() []Change {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Change, len(m.changes))
	copy(out, m.changes)
	return out
}

// ClearChanges resets the change log without touching entries.
func (m *Memory) ClearChanges() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = nil
}

func (m *Memory) bucketFor(base string) *bucket {
	b, ok := m.byBase[base]
	if !ok {
		b = &bucket{eq: make(map[string][]*record)}
		m.byBase[base] = b
	}
	return b
}

func (b *bucket) index(attr string, values []string, rec *record) {
	for _, v := range values {
		key := Eq(attr, v).String()
		b.eq[key] = append(b.eq[key], rec)
	}
}

func (b *bucket) unindex(attr string, values []string, rec *record) {
	for _, v := range values {
		key := Eq(attr, v).String()
		b.eq[key] = removeRecord(b.eq[key], rec)
		if len(b.eq[key]) == 0 {
			delete(b.eq, key)
		}
	}
}

func (m *Memory) recordChange(entryDN, attr string, values []string) {
	for i, c := range m.changes {
		if c.DN == entryDN && c.Attr == attr {
			m.changes = append(m.changes[:i], m.changes[i+1:]...)
			break
		}
	}
	var copied []string
	if values != nil {
		copied = append([]string(nil), values...)
	}
	m.changes = append(m.changes, Change{DN: entryDN, Attr: attr, Values: copied})
}

func (r *record) entry() Entry {
	attrs := make(map[string][]string, len(r.attrs))
	for attr, values := range r.attrs {
		attrs[attr] = append([]string(nil), values...)
	}
	return Entry{DN: r.dn, Attrs: attrs}
}

func removeRecord(recs []*record, rec *record) []*record {
	for i, r := range recs {
		if r == rec {
			return append(recs[:i], recs[i+1:]...)
		}
	}
	return recs
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
