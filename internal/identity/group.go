package identity

import (
	"context"
	"errors"
	"strings"

	"meetdir/internal/directory"
	"meetdir/pkg/dn"
	"meetdir/pkg/platform/sentinel"
)

// longDescriptionSeparator is the literal paragraph separator the schema uses
// inside the single-valued long-description attribute.
const longDescriptionSeparator = " $ "

// Group is a named collection of member ids. A member id usually names a
// user, but may name another group by mail or be a bare external address.
type Group struct {
	conn *directory.Conn

	DN              string
	Name            string
	DisplayName     string
	LongDescription string
	MemberIDs       []string
	Aliases         []string
}

// Member is anything a group's member-id list can resolve to.
type Member interface {
	MemberName() string
}

// MailMember is a bare external address in a member list: the id resolved to
// neither a user nor a group.
type MailMember struct {
	Mail string
}

func (m MailMember) MemberName() string { return m.Mail }

func (u *User) MemberName() string { return u.Name }

func (g *Group) MemberName() string { return g.DisplayName }

// NewGroup maps an entry onto a Group bound to the session it was read from.
func NewGroup(conn *directory.Conn, e directory.Entry) *Group {
	return &Group{
		conn:            conn,
		DN:              e.DN,
		Name:            e.First(directory.AttrCommonName),
		DisplayName:     e.First(directory.AttrDescription),
		LongDescription: strings.Join(strings.Split(e.First(directory.AttrLongDescription), longDescriptionSeparator), "\n"),
		MemberIDs:       e.Values(directory.AttrMemberUID),
		Aliases:         e.Values(directory.AttrMailAlias),
	}
}

// FindGroup looks a group up by name.
func FindGroup(ctx context.Context, conn *directory.Conn, name string) (*Group, error) {
	e, err := conn.FindGroupByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewGroup(conn, e), nil
}

// FindGroupByMail resolves a group from its derived address. Only addresses
// inside the directory's own domain can name a group.
func FindGroupByMail(ctx context.Context, conn *directory.Conn, mail string) (*Group, error) {
	name, domain, ok := strings.Cut(mail, "@")
	if !ok || domain != conn.BaseDomain() {
		return nil, sentinel.ErrNotFound
	}
	return FindGroup(ctx, conn, name)
}

// AllGroups lists every group.
func AllGroups(ctx context.Context, conn *directory.Conn) ([]*Group, error) {
	entries, err := conn.AllGroups(ctx)
	if err != nil {
		return nil, err
	}
	return groupsFrom(conn, entries), nil
}

// GroupsByMember finds the groups listing username as a member.
func GroupsByMember(ctx context.Context, conn *directory.Conn, username string) ([]*Group, error) {
	entries, err := conn.FindGroupsByMember(ctx, username)
	if err != nil {
		return nil, err
	}
	return groupsFrom(conn, entries), nil
}

// SearchGroups finds groups whose name or display name contains query.
func SearchGroups(ctx context.Context, conn *directory.Conn, query string) ([]*Group, error) {
	entries, err := conn.FindGroupsByMatch(ctx, query)
	if err != nil {
		return nil, err
	}
	return groupsFrom(conn, entries), nil
}

func groupsFrom(conn *directory.Conn, entries []directory.Entry) []*Group {
	groups := make([]*Group, len(entries))
	for i, e := range entries {
		groups[i] = NewGroup(conn, e)
	}
	return groups
}

// Mail is the group's derived address: its name at the domain taken from the
// entry path.
func (g *Group) Mail() string {
	return g.Name + "@" + dn.Domain(g.DN)
}

// Members resolves the member-id list in order: user by id, then group by
// mail, then bare address. Resolved fresh on every call.
func (g *Group) Members(ctx context.Context) ([]Member, error) {
	members := make([]Member, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		m, err := g.resolveMember(ctx, id)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func (g *Group) resolveMember(ctx context.Context, id string) (Member, error) {
	u, err := FindUser(ctx, g.conn, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	grp, err := FindGroupByMail(ctx, g.conn, id)
	if err == nil {
		return grp, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	return MailMember{Mail: id}, nil
}

func (g *Group) String() string { return g.Name }
