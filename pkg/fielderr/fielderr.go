// Package fielderr carries validation outcomes as data. Hard errors are
// field-scoped and block persistence; warnings are advisory and only block
// until the caller acknowledges them by key. Neither is ever raised as a Go
// error value: backend failures are errors, validation findings are not.
package fielderr

import (
	"sort"
	"strings"
)

// Kind classifies a hard validation error.
type Kind string

const (
	KindRequired     Kind = "required"
	KindFormat       Kind = "format"
	KindLength       Kind = "length"
	KindUniqueness   Kind = "uniqueness"
	KindDomainPolicy Kind = "domain_policy"
)

// Error is one hard validation finding against one field.
type Error struct {
	Field   string
	Kind    Kind
	Message string
}

// Set accumulates hard errors by field. The zero value is usable.
type Set map[string][]Error

// Add appends a finding for field.
func (s Set) Add(field string, kind Kind, message string) {
	s[field] = append(s[field], Error{Field: field, Kind: kind, Message: message})
}

// Empty reports whether no findings were recorded.
func (s Set) Empty() bool {
	return len(s) == 0
}

// Messages returns the messages recorded against field.
func (s Set) Messages(field string) []string {
	errs := s[field]
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return msgs
}

// Without returns a copy with all findings for the given fields removed.
// Used by the save path, which tolerates fields the invitee fills in later.
func (s Set) Without(fields ...string) Set {
	out := make(Set, len(s))
	for field, errs := range s {
		skip := false
		for _, f := range fields {
			if field == f {
				skip = true
				break
			}
		}
		if !skip {
			out[field] = errs
		}
	}
	return out
}

// Fields returns the fields with findings, sorted for stable reporting.
func (s Set) Fields() []string {
	fields := make([]string, 0, len(s))
	for f := range s {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Warnings maps a warning key to its advisory message. Keys double as the
// acknowledgement currency: a warning is cleared only when its key appears in
// the caller's Acks.
type Warnings map[string]string

// Keys returns the raised warning keys, sorted.
func (w Warnings) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Acks is the set of warning keys the caller has acknowledged. It is supplied
// on every call and never stored, since warnings are recomputed against live
// directory state each time.
type Acks map[string]bool

// ParseAcks parses the comma-separated acknowledgement form ("first_name,last_name").
func ParseAcks(s string) Acks {
	acks := make(Acks)
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			acks[k] = true
		}
	}
	return acks
}

// Covers reports whether every raised warning key is acknowledged.
func (a Acks) Covers(w Warnings) bool {
	for k := range w {
		if !a[k] {
			return false
		}
	}
	return true
}
