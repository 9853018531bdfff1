package directory

import (
	"context"
	"strings"
)

// Schema attribute names. These mirror the live directory bit for bit; the
// reference backend and the entity mappers share them.
const (
	AttrObjectClass     = "objectclass"
	AttrUID             = "uid"
	AttrUIDNumber       = "uidnumber"
	AttrGIDNumber       = "gidnumber"
	AttrCommonName      = "cn"
	AttrGivenName       = "givenname"
	AttrSurname         = "sn"
	AttrMail            = "mail"
	AttrMailAlias       = "meetalias"
	AttrDestination     = "destinationindicator"
	AttrShadowExpire    = "shadowexpire"
	AttrHomeDirectory   = "homedirectory"
	AttrLoginShell      = "loginshell"
	AttrUserPassword    = "userpassword"
	AttrDescription     = "description"
	AttrLongDescription = "meetlongdescription"
	AttrMemberUID       = "memberuid"
	AttrOU              = "ou"
	AttrLabeledURI      = "labeleduri"
	AttrManager         = "manager"
)

// Namespace RDNs under the directory base.
const (
	NamespaceUsers   = "ou=users"
	NamespaceGroups  = "ou=groups"
	NamespaceApps    = "ou=apps"
	NamespaceInvites = "ou=newusers"
)

// Entry is one directory record: a distinguished name plus an attribute
// multimap. An absent attribute and an attribute with no values are the same
// thing; backends normalize on write so callers never see empty slices.
type Entry struct {
	DN    string
	Attrs map[string][]string
}

// First returns the first value of attr, or "" when absent.
func (e Entry) First(attr string) string {
	if vs := e.Attrs[strings.ToLower(attr)]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns all values of attr in order. Never mutate the result.
func (e Entry) Values(attr string) []string {
	return e.Attrs[strings.ToLower(attr)]
}

// Has reports whether attr carries at least one value.
func (e Entry) Has(attr string) bool {
	return len(e.Attrs[strings.ToLower(attr)]) > 0
}

// Scope restricts a search to a whole namespace subtree or to exactly one
// known entry.
type Scope int

const (
	ScopeSubtree Scope = iota
	ScopeBase
)

// SearchRequest describes one scoped search. A nil Filter matches everything
// under the base.
type SearchRequest struct {
	Base   string
	Filter *Filter
	Scope  Scope
}

// Backend is the capability a directory session needs: scoped search plus
// entry and attribute mutation. The in-memory reference implementation pins
// the semantics; the ldap adapter carries them to a live service.
//
// Mutations return sentinel.ErrNotFound when the entry is missing,
// sentinel.ErrExists when an Add collides with an existing DN, and
// sentinel.ErrNoSuchAttribute when a DeleteAttribute targets an attribute
// with no values.
type Backend interface {
	Search(ctx context.Context, req SearchRequest) ([]Entry, error)
	Add(ctx context.Context, dn string, attrs map[string][]string) error
	Delete(ctx context.Context, dn string) error
	AddAttribute(ctx context.Context, dn, attr string, values ...string) error
	ReplaceAttribute(ctx context.Context, dn, attr string, values ...string) error
	DeleteAttribute(ctx context.Context, dn, attr string) error
}
