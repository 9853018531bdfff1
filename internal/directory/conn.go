package directory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"meetdir/pkg/dn"
	"meetdir/pkg/platform/sentinel"
)

// FirstUserNumber is the numeric id handed out when the users namespace is
// empty. It doubles as the fixed gid for every account.
const FirstUserNumber = 1000

// Conn is one directory session: a backend plus the base DN everything hangs
// under. Callers construct and own it; there is no process-wide connection.
// The finders are thin, named filter compositions over fixed namespace bases;
// entity mapping happens a layer up.
type Conn struct {
	backend Backend
	base    string

	// uidMu guards the allocation high-water mark. Within a session a
	// number is never handed out twice, even before the entry using it
	// lands. The window across sessions remains the backend's problem, so
	// callers must treat sentinel.ErrExists from the subsequent Add as
	// retryable.
	uidMu          sync.Mutex
	lastUserNumber int
}

func NewConn(backend Backend, base string) *Conn {
	return &Conn{backend: backend, base: base}
}

// Base returns the configured base DN.
func (c *Conn) Base() string { return c.base }

// BaseDomain derives the mail domain from the base DN's dc components.
func (c *Conn) BaseDomain() string { return dn.Domain(c.base) }

func (c *Conn) namespace(ns string) string { return dn.Join(ns, c.base) }

// UserDN builds the DN for a username; InviteDN and GroupDN likewise. The
// RDN conventions are part of the schema, not a backend detail.
func (c *Conn) UserDN(username string) string {
	return dn.Join("uid="+username, c.namespace(NamespaceUsers))
}

func (c *Conn) GroupDN(name string) string {
	return dn.Join("cn="+name, c.namespace(NamespaceGroups))
}

func (c *Conn) InviteDN(token string) string {
	return dn.Join("cn="+token, c.namespace(NamespaceInvites))
}

func (c *Conn) AppDN(name string) string {
	return dn.Join("ou="+name, c.namespace(NamespaceApps))
}

// FindByDN retrieves exactly one entry by path.
func (c *Conn) FindByDN(ctx context.Context, entryDN string) (Entry, error) {
	return c.one(ctx, SearchRequest{Base: entryDN, Scope: ScopeBase})
}

// FindByDNWithAttr retrieves the entry at path only if it carries attr.
func (c *Conn) FindByDNWithAttr(ctx context.Context, entryDN, attr string) (Entry, error) {
	return c.one(ctx, SearchRequest{Base: entryDN, Scope: ScopeBase, Filter: Present(attr)})
}

func (c *Conn) AllUsers(ctx context.Context) ([]Entry, error) {
	return c.search(ctx, NamespaceUsers, Present(AttrUID))
}

func (c *Conn) FindUserByID(ctx context.Context, username string) (Entry, error) {
	return c.oneIn(ctx, NamespaceUsers, Eq(AttrUID, username))
}

// FindUsersByMatch runs the simple substring search over usernames and
// display names.
func (c *Conn) FindUsersByMatch(ctx context.Context, query string) ([]Entry, error) {
	return c.search(ctx, NamespaceUsers,
		Or(Eq(AttrUID, "*"+query+"*"), Eq(AttrCommonName, "*"+query+"*")))
}

func (c *Conn) FindUsersByMail(ctx context.Context, mail string) ([]Entry, error) {
	return c.search(ctx, NamespaceUsers, Eq(AttrMail, mail))
}

func (c *Conn) FindUserByAlias(ctx context.Context, mail string) (Entry, error) {
	return c.oneIn(ctx, NamespaceUsers, Eq(AttrMailAlias, mail))
}

func (c *Conn) AllGroups(ctx context.Context) ([]Entry, error) {
	return c.search(ctx, NamespaceGroups, Present(AttrCommonName))
}

func (c *Conn) FindGroupByName(ctx context.Context, name string) (Entry, error) {
	return c.oneIn(ctx, NamespaceGroups, Eq(AttrCommonName, name))
}

func (c *Conn) FindGroupsByMember(ctx context.Context, username string) ([]Entry, error) {
	return c.search(ctx, NamespaceGroups, Eq(AttrMemberUID, username))
}

func (c *Conn) FindGroupsByMatch(ctx context.Context, query string) ([]Entry, error) {
	return c.search(ctx, NamespaceGroups,
		Or(Eq(AttrCommonName, "*"+query+"*"), Eq(AttrDescription, "*"+query+"*")))
}

func (c *Conn) FindGroupByAlias(ctx context.Context, mail string) (Entry, error) {
	return c.oneIn(ctx, NamespaceGroups, Eq(AttrMailAlias, mail))
}

func (c *Conn) FindAppByURL(ctx context.Context, url string) (Entry, error) {
	return c.oneIn(ctx, NamespaceApps, Eq(AttrLabeledURI, url))
}

func (c *Conn) AllInvites(ctx context.Context) ([]Entry, error) {
	return c.search(ctx, NamespaceInvites, Present(AttrCommonName))
}

func (c *Conn) FindInviteByToken(ctx context.Context, token string) (Entry, error) {
	return c.oneIn(ctx, NamespaceInvites, Eq(AttrCommonName, token))
}

func (c *Conn) FindInvitesByMail(ctx context.Context, mail string) ([]Entry, error) {
	return c.search(ctx, NamespaceInvites, Eq(AttrMail, mail))
}

func (c *Conn) FindInviteByID(ctx context.Context, username string) (Entry, error) {
	return c.oneIn(ctx, NamespaceInvites, Eq(AttrUID, username))
}

// AllocateUserNumber hands out the next free numeric user id:
// max(uidnumber)+1 over the users namespace, or FirstUserNumber when the
// namespace is empty. Allocation is serialized per session; see uidMu.
func (c *Conn) AllocateUserNumber(ctx context.Context) (int, error) {
	c.uidMu.Lock()
	defer c.uidMu.Unlock()

	entries, err := c.search(ctx, NamespaceUsers, Present(AttrUID))
	if err != nil {
		return 0, err
	}
	next := FirstUserNumber
	for _, e := range entries {
		n, err := strconv.Atoi(e.First(AttrUIDNumber))
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	if next <= c.lastUserNumber {
		next = c.lastUserNumber + 1
	}
	c.lastUserNumber = next
	return next, nil
}

// Mutation passthroughs. Entities go through the Conn so a session stays the
// single choke point for writes.

func (c *Conn) Add(ctx context.Context, entryDN string, attrs map[string][]string) error {
	return c.backend.Add(ctx, entryDN, attrs)
}

func (c *Conn) Delete(ctx context.Context, entryDN string) error {
	return c.backend.Delete(ctx, entryDN)
}

func (c *Conn) AddAttribute(ctx context.Context, entryDN, attr string, values ...string) error {
	return c.backend.AddAttribute(ctx, entryDN, attr, values...)
}

func (c *Conn) ReplaceAttribute(ctx context.Context, entryDN, attr string, values ...string) error {
	return c.backend.ReplaceAttribute(ctx, entryDN, attr, values...)
}

func (c *Conn) DeleteAttribute(ctx context.Context, entryDN, attr string) error {
	return c.backend.DeleteAttribute(ctx, entryDN, attr)
}

func (c *Conn) search(ctx context.Context, ns string, f *Filter) ([]Entry, error) {
	entries, err := c.backend.Search(ctx, SearchRequest{Base: c.namespace(ns), Filter: f})
	if err != nil {
		return nil, fmt.Errorf("search %s %s: %w", ns, f, err)
	}
	return entries, nil
}

func (c *Conn) oneIn(ctx context.Context, ns string, f *Filter) (Entry, error) {
	entries, err := c.search(ctx, ns, f)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, sentinel.ErrNotFound
	}
	return entries[0], nil
}

func (c *Conn) one(ctx context.Context, req SearchRequest) (Entry, error) {
	entries, err := c.backend.Search(ctx, req)
	if err != nil {
		return Entry{}, fmt.Errorf("lookup %s: %w", req.Base, err)
	}
	if len(entries) == 0 {
		return Entry{}, sentinel.ErrNotFound
	}
	return entries[0], nil
}
