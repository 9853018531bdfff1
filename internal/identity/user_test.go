package identity_test

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"meetdir/internal/directory"
	"meetdir/internal/directory/dirtest"
	"meetdir/internal/identity"
)

type UserSuite struct {
	suite.Suite
	conn *directory.Conn
	mem  *directory.Memory
	ctx  context.Context
}

func (s *UserSuite) SetupTest() {
	s.conn, s.mem = dirtest.NewConn(s.T())
	s.ctx = context.Background()
}

func TestUserSuite(t *testing.T) {
	suite.Run(t, new(UserSuite))
}

func (s *UserSuite) seedBob() *identity.User {
	dirtest.SeedUser(s.T(), s.conn, map[string][]string{
		"uid":                  {"bob"},
		"givenname":            {"Bob"},
		"sn":                   {"Dobbs"},
		"mail":                 {"bob@outside.com"},
		"destinationindicator": {"inbox"},
		"meetalias":            {"bobby@example.com"},
	})
	u, err := identity.FindUser(s.ctx, s.conn, "bob")
	s.Require().NoError(err)
	return u
}

func (s *UserSuite) TestMapping() {
	u := s.seedBob()

	s.Equal("bob", u.Username)
	s.Equal("Bob", u.FirstName)
	s.Equal("Dobbs", u.LastName)
	s.Equal("Bob Dobbs", u.Name, "display name computed when cn absent")
	s.Equal("bob@outside.com", u.MailForward)
	s.True(u.MailInbox)
	s.Equal([]string{"bobby@example.com"}, u.Aliases)
	s.True(u.Enabled)
	s.Equal("bob@example.com", u.Mail(), "directory address derived from path")

	s.Run("explicit display name wins", func() {
		dirtest.SeedUser(s.T(), s.conn, map[string][]string{
			"uid": {"rev"}, "givenname": {"J"}, "sn": {"Dobbs"}, "cn": {"The Reverend"},
		})
		rev, err := identity.FindUser(s.ctx, s.conn, "rev")
		s.Require().NoError(err)
		s.Equal("The Reverend", rev.Name)
	})

	s.Run("expiry marker disables", func() {
		dirtest.SeedUser(s.T(), s.conn, map[string][]string{"uid": {"old"}, "shadowexpire": {"0"}})
		old, err := identity.FindUser(s.ctx, s.conn, "old")
		s.Require().NoError(err)
		s.False(old.Enabled)
	})
}

func (s *UserSuite) TestMutatorsRehydrate() {
	u := s.seedBob()

	s.Run("mail forward", func() {
		s.Require().NoError(u.SetMailForward(s.ctx, "new@elsewhere.org"))
		s.Equal("new@elsewhere.org", u.MailForward)
	})

	s.Run("disable and re-enable", func() {
		s.Require().NoError(u.SetEnabled(s.ctx, false))
		s.False(u.Enabled)
		// disabling twice must not trip over the marker already existing
		s.Require().NoError(u.SetEnabled(s.ctx, false))
		s.Require().NoError(u.SetEnabled(s.ctx, true))
		s.True(u.Enabled)
	})

	s.Run("inbox preference", func() {
		s.Require().NoError(u.SetMailInbox(s.ctx, false))
		s.False(u.MailInbox)
		s.Require().NoError(u.SetMailInbox(s.ctx, true))
		s.True(u.MailInbox)
	})
}

func (s *UserSuite) TestPassword() {
	u := s.seedBob()

	passworded, err := u.Passworded(s.ctx)
	s.Require().NoError(err)
	s.False(passworded)

	s.Require().NoError(u.SetPassword(s.ctx, "hunter2"))

	passworded, err = u.Passworded(s.ctx)
	s.Require().NoError(err)
	s.True(passworded)

	s.Run("stored form is tagged, salted, one-way", func() {
		e, err := s.conn.FindByDN(s.ctx, u.DN)
		s.Require().NoError(err)
		stored := e.First("userpassword")
		s.Require().True(strings.HasPrefix(stored, "{SSHA}"))
		s.NotContains(stored, "hunter2")

		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, "{SSHA}"))
		s.Require().NoError(err)
		s.Require().Len(raw, sha1.Size+4)
		digest, salt := raw[:sha1.Size], raw[sha1.Size:]
		want := sha1.Sum(append([]byte("hunter2"), salt...))
		s.Equal(want[:], digest)
	})
}

// TestRanks covers the relative admin/manager semantics: a member of admins
// outranks anyone; a member of only managers outranks non-admins; everyone
// in either group is a manager.
func (s *UserSuite) TestRanks() {
	for _, uid := range []string{"root", "boss", "peon"} {
		dirtest.SeedUser(s.T(), s.conn, map[string][]string{"uid": {uid}})
	}
	dirtest.SeedGroup(s.T(), s.conn, map[string][]string{"cn": {"admins"}, "memberuid": {"root"}})
	dirtest.SeedGroup(s.T(), s.conn, map[string][]string{"cn": {"managers"}, "memberuid": {"boss"}})

	find := func(uid string) *identity.User {
		u, err := identity.FindUser(s.ctx, s.conn, uid)
		s.Require().NoError(err)
		return u
	}
	root, boss, peon := find("root"), find("boss"), find("peon")

	admin := func(u, other *identity.User) bool {
		ok, err := u.IsAdmin(s.ctx, other)
		s.Require().NoError(err)
		return ok
	}
	manager := func(u *identity.User) bool {
		ok, err := u.IsManager(s.ctx)
		s.Require().NoError(err)
		return ok
	}

	s.True(admin(root, boss), "admin outranks a manager")
	s.True(admin(root, peon), "admin outranks a plain user")
	s.True(admin(boss, peon), "manager outranks a plain user")
	s.False(admin(boss, root), "manager does not outrank an admin")
	s.False(admin(peon, boss))
	s.False(admin(peon, peon))

	s.True(manager(root))
	s.True(manager(boss))
	s.False(manager(peon))

	s.True(root.Is(root))
	s.False(root.Is(peon))
}

func (s *UserSuite) TestSearch() {
	dirtest.SeedUser(s.T(), s.conn, map[string][]string{"uid": {"annika"}, "cn": {"Annika Small"}})
	dirtest.SeedUser(s.T(), s.conn, map[string][]string{"uid": {"bob"}, "cn": {"Bob Dobbs"}})

	users, err := identity.SearchUsers(s.ctx, s.conn, "nn")
	s.Require().NoError(err)
	s.Require().Len(users, 1)
	s.Equal("annika", users[0].Username)

	all, err := identity.AllUsers(s.ctx, s.conn)
	s.Require().NoError(err)
	s.Len(all, 2)
}
