// Package dn holds the distinguished-name string conventions used by the
// directory schema: how entry DNs are assembled per namespace and how the
// mail domain is derived from a DN's dc components.
package dn

import "strings"

// Join builds a DN from a leading RDN and a base, e.g.
// Join("uid=bob", "ou=users,dc=example,dc=com").
func Join(rdn, base string) string {
	if base == "" {
		return rdn
	}
	return rdn + "," + base
}

// Parent returns everything after the first RDN, or "" when the DN has a
// single component.
func Parent(dn string) string {
	if _, rest, ok := strings.Cut(dn, ","); ok {
		return rest
	}
	return ""
}

// RDNValue returns the value of the leading RDN, e.g. "bob" for
// "uid=bob,ou=users,dc=example,dc=com".
func RDNValue(dn string) string {
	first, _, _ := strings.Cut(dn, ",")
	if _, v, ok := strings.Cut(first, "="); ok {
		return v
	}
	return first
}

// Domain derives the mail domain from a DN by joining its dc components with
// dots. Components before the first dc (ou=, uid=, cn=) are dropped, so
// "uid=bob,ou=users,dc=example,dc=com" yields "example.com".
func Domain(dn string) string {
	var parts []string
	for _, comp := range strings.Split(dn, ",") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(comp), "dc="); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ".")
}
