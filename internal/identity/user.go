// Package identity maps raw directory entries into typed domain entities.
// Entities are constructed fresh from a query result every time they are
// needed; nothing is cached across calls, so staleness is bounded by call
// latency. Mutators issue exactly one attribute-level write and then rehydrate
// the entity from a fresh read of its own entry.
package identity

import (
	"context"
	"errors"

	"meetdir/internal/directory"
	"meetdir/pkg/dn"
	"meetdir/pkg/platform/sentinel"
)

// Reserved group names with elevated standing.
const (
	AdminsGroup   = "admins"
	ManagersGroup = "managers"
)

// User is a live account entry.
type User struct {
	conn *directory.Conn

	DN          string
	Username    string
	FirstName   string
	LastName    string
	Name        string
	MailForward string
	MailInbox   bool
	Aliases     []string
	Enabled     bool
}

// NewUser maps an entry onto a User bound to the session it was read from.
func NewUser(conn *directory.Conn, e directory.Entry) *User {
	u := &User{
		conn:        conn,
		DN:          e.DN,
		Username:    e.First(directory.AttrUID),
		FirstName:   e.First(directory.AttrGivenName),
		LastName:    e.First(directory.AttrSurname),
		Name:        e.First(directory.AttrCommonName),
		MailForward: e.First(directory.AttrMail),
		MailInbox:   e.First(directory.AttrDestination) == "inbox",
		Aliases:     e.Values(directory.AttrMailAlias),
		Enabled:     !e.Has(directory.AttrShadowExpire),
	}
	if u.Name == "" {
		u.Name = u.FirstName + " " + u.LastName
	}
	return u
}

// FindUser looks a user up by username.
func FindUser(ctx context.Context, conn *directory.Conn, username string) (*User, error) {
	e, err := conn.FindUserByID(ctx, username)
	if err != nil {
		return nil, err
	}
	return NewUser(conn, e), nil
}

// AllUsers lists every account.
func AllUsers(ctx context.Context, conn *directory.Conn) ([]*User, error) {
	entries, err := conn.AllUsers(ctx)
	if err != nil {
		return nil, err
	}
	return usersFrom(conn, entries), nil
}

// SearchUsers finds users whose username or display name contains query.
func SearchUsers(ctx context.Context, conn *directory.Conn, query string) ([]*User, error) {
	entries, err := conn.FindUsersByMatch(ctx, query)
	if err != nil {
		return nil, err
	}
	return usersFrom(conn, entries), nil
}

func usersFrom(conn *directory.Conn, entries []directory.Entry) []*User {
	users := make([]*User, len(entries))
	for i, e := range entries {
		users[i] = NewUser(conn, e)
	}
	return users
}

// Mail is the user's address inside the directory's own domain, derived from
// the entry path; MailForward is where delivery actually goes.
func (u *User) Mail() string {
	return u.Username + "@" + dn.Domain(u.DN)
}

// Groups resolves the user's groups by reverse member lookup. Queried on
// every call, never cached on the instance.
func (u *User) Groups(ctx context.Context) ([]*Group, error) {
	return GroupsByMember(ctx, u.conn, u.Username)
}

// Is reports whether the two objects name the same account.
func (u *User) Is(other *User) bool {
	return other != nil && u.Username == other.Username
}

// IsAdmin reports whether this user outranks other: admins outrank everyone,
// managers outrank anyone who is not an admin.
func (u *User) IsAdmin(ctx context.Context, other *User) (bool, error) {
	groups, err := u.Groups(ctx)
	if err != nil {
		return false, err
	}
	if containsGroup(groups, AdminsGroup) {
		return true, nil
	}
	if !containsGroup(groups, ManagersGroup) {
		return false, nil
	}
	otherGroups, err := other.Groups(ctx)
	if err != nil {
		return false, err
	}
	return !containsGroup(otherGroups, AdminsGroup), nil
}

// IsManager reports membership in either elevated group.
func (u *User) IsManager(ctx context.Context) (bool, error) {
	groups, err := u.Groups(ctx)
	if err != nil {
		return false, err
	}
	return containsGroup(groups, AdminsGroup) || containsGroup(groups, ManagersGroup), nil
}

func containsGroup(groups []*Group, name string) bool {
	for _, g := range groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// SetMailForward replaces the forwarding address.
func (u *User) SetMailForward(ctx context.Context, mail string) error {
	if err := u.conn.ReplaceAttribute(ctx, u.DN, directory.AttrMail, mail); err != nil {
		return err
	}
	return u.rehydrate(ctx)
}

// SetEnabled flips the account's disabled marker. Disabling stores an expired
// shadowexpire value; enabling removes it.
func (u *User) SetEnabled(ctx context.Context, enabled bool) error {
	err := u.conn.DeleteAttribute(ctx, u.DN, directory.AttrShadowExpire)
	if err != nil && !errors.Is(err, sentinel.ErrNoSuchAttribute) {
		return err
	}
	if !enabled {
		if err := u.conn.AddAttribute(ctx, u.DN, directory.AttrShadowExpire, "0"); err != nil {
			return err
		}
	}
	return u.rehydrate(ctx)
}

// SetMailInbox records whether delivery also lands in the local inbox.
func (u *User) SetMailInbox(ctx context.Context, inbox bool) error {
	err := u.conn.DeleteAttribute(ctx, u.DN, directory.AttrDestination)
	if err != nil && !errors.Is(err, sentinel.ErrNoSuchAttribute) {
		return err
	}
	if inbox {
		if err := u.conn.AddAttribute(ctx, u.DN, directory.AttrDestination, "inbox"); err != nil {
			return err
		}
	}
	return u.rehydrate(ctx)
}

// Passworded reports whether a credential is set. The credential itself is
// opaque and one-way; presence is the only query.
func (u *User) Passworded(ctx context.Context) (bool, error) {
	_, err := u.conn.FindByDNWithAttr(ctx, u.DN, directory.AttrUserPassword)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetPassword hashes the plaintext with the default SSHA hasher and stores
// the result. No plaintext is retained anywhere.
func (u *User) SetPassword(ctx context.Context, password string) error {
	return u.SetPasswordWith(ctx, password, SSHA)
}

// SetPasswordWith is SetPassword with a caller-chosen hash function.
func (u *User) SetPasswordWith(ctx context.Context, password string, hash Hasher) error {
	hashed, err := hash(password)
	if err != nil {
		return err
	}
	if err := u.conn.ReplaceAttribute(ctx, u.DN, directory.AttrUserPassword, hashed); err != nil {
		return err
	}
	return u.rehydrate(ctx)
}

func (u *User) String() string { return u.Username }

func (u *User) rehydrate(ctx context.Context) error {
	e, err := u.conn.FindByDN(ctx, u.DN)
	if err != nil {
		return err
	}
	*u = *NewUser(u.conn, e)
	return nil
}
