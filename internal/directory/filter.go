package directory

import "strings"

// Filter is an immutable predicate over an entry's attributes. Three node
// kinds exist: attribute presence, attribute equality (values may carry *
// wildcards), and disjunction. Filters are pure values with no I/O; backends
// decide how to evaluate them.
type Filter struct {
	op    filterOp
	attr  string
	value string
	subs  []*Filter
}

type filterOp int

const (
	opPresent filterOp = iota
	opEq
	opOr
)

// Present matches entries holding at least one value for attr.
func Present(attr string) *Filter {
	return &Filter{op: opPresent, attr: strings.ToLower(attr)}
}

// Eq matches entries holding value for attr. A value containing * is a glob:
// literal segments must appear in order, anchored at either end unless the
// pattern starts or ends with *.
func Eq(attr, value string) *Filter {
	return &Filter{op: opEq, attr: strings.ToLower(attr), value: value}
}

// Or matches entries matched by any of the given filters.
func Or(filters ...*Filter) *Filter {
	return &Filter{op: opOr, subs: filters}
}

// Wildcard reports whether this node is an equality with a glob value.
func (f *Filter) Wildcard() bool {
	return f.op == opEq && strings.ContainsRune(f.value, '*')
}

// Matches evaluates the filter against a single entry.
func (f *Filter) Matches(e Entry) bool {
	switch f.op {
	case opPresent:
		return e.Has(f.attr)
	case opEq:
		for _, v := range e.Values(f.attr) {
			if matchGlob(f.value, v) {
				return true
			}
		}
		return false
	case opOr:
		for _, sub := range f.subs {
			if sub.Matches(e) {
				return true
			}
		}
		return false
	}
	return false
}

// String renders the RFC 4515 text form, e.g. "(uid=bob)" or
// "(|(uid=*q*)(cn=*q*))". The form doubles as the reference backend's
// posting-list key, so it must be stable and canonical.
func (f *Filter) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Filter) write(b *strings.Builder) {
	switch f.op {
	case opPresent:
		b.WriteString("(")
		b.WriteString(f.attr)
		b.WriteString("=*)")
	case opEq:
		b.WriteString("(")
		b.WriteString(f.attr)
		b.WriteString("=")
		b.WriteString(escapeValue(f.value))
		b.WriteString(")")
	case opOr:
		b.WriteString("(|")
		for _, sub := range f.subs {
			sub.write(b)
		}
		b.WriteString(")")
	}
}

// escapeValue hex-escapes the RFC 4515 specials. The * is left alone: it is
// the wildcard marker, and literal asterisks do not occur in this schema.
func escapeValue(v string) string {
	if !strings.ContainsAny(v, "()\\\x00") {
		return v
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '(':
			b.WriteString(`\28`)
		case ')':
			b.WriteString(`\29`)
		case '\\':
			b.WriteString(`\5c`)
		case 0:
			b.WriteString(`\00`)
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

// matchGlob matches value against a pattern whose * segments match any run of
// characters. Comparison is exact (case-sensitive), mirroring the reference
// backend's posting-list semantics for the non-wildcard case.
func matchGlob(pattern, value string) bool {
	if !strings.ContainsRune(pattern, '*') {
		return pattern == value
	}
	segs := strings.Split(pattern, "*")
	if first := segs[0]; first != "" {
		if !strings.HasPrefix(value, first) {
			return false
		}
		value = value[len(first):]
	}
	last := segs[len(segs)-1]
	for _, seg := range segs[1 : len(segs)-1] {
		if seg == "" {
			continue
		}
		idx := strings.Index(value, seg)
		if idx < 0 {
			return false
		}
		value = value[idx+len(seg):]
	}
	if last == "" {
		return true
	}
	return strings.HasSuffix(value, last) && len(value) >= len(last)
}
