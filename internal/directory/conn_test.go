package directory_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"meetdir/internal/directory"
	"meetdir/internal/directory/dirtest"
	"meetdir/pkg/platform/sentinel"
)

func TestConnDNsAndDomain(t *testing.T) {
	conn, _ := dirtest.NewConn(t)

	require.Equal(t, "uid=bob,ou=users,dc=example,dc=com", conn.UserDN("bob"))
	require.Equal(t, "cn=admins,ou=groups,dc=example,dc=com", conn.GroupDN("admins"))
	require.Equal(t, "cn=tok,ou=newusers,dc=example,dc=com", conn.InviteDN("tok"))
	require.Equal(t, "ou=wiki,ou=apps,dc=example,dc=com", conn.AppDN("wiki"))
	require.Equal(t, "example.com", conn.BaseDomain())
}

func TestConnFinders(t *testing.T) {
	ctx := context.Background()
	conn, _ := dirtest.NewConn(t)

	dirtest.SeedUser(t, conn, map[string][]string{
		"uid": {"bob"}, "cn": {"Bob Dobbs"},
		"mail": {"bob@outside.com"}, "meetalias": {"bobby@example.com"},
	})
	dirtest.SeedUser(t, conn, map[string][]string{"uid": {"alice"}, "cn": {"Alice Berry"}})
	dirtest.SeedGroup(t, conn, map[string][]string{
		"cn": {"admins"}, "description": {"Administrators"}, "memberuid": {"bob"},
	})
	dirtest.SeedApp(t, conn, map[string][]string{"ou": {"wiki"}, "labeleduri": {"https://wiki.example.com"}})
	dirtest.SeedInvite(t, conn, map[string][]string{"cn": {"tok1"}, "mail": {"new@outside.com"}})

	t.Run("users", func(t *testing.T) {
		all, err := conn.AllUsers(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)

		e, err := conn.FindUserByID(ctx, "bob")
		require.NoError(t, err)
		require.Equal(t, "Bob Dobbs", e.First("cn"))

		_, err = conn.FindUserByID(ctx, "ghost")
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		matches, err := conn.FindUsersByMatch(ctx, "ob")
		require.NoError(t, err)
		require.Len(t, matches, 1)

		byMail, err := conn.FindUsersByMail(ctx, "bob@outside.com")
		require.NoError(t, err)
		require.Len(t, byMail, 1)

		e, err = conn.FindUserByAlias(ctx, "bobby@example.com")
		require.NoError(t, err)
		require.Equal(t, "bob", e.First("uid"))
	})

	t.Run("groups", func(t *testing.T) {
		e, err := conn.FindGroupByName(ctx, "admins")
		require.NoError(t, err)
		require.Equal(t, "Administrators", e.First("description"))

		byMember, err := conn.FindGroupsByMember(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, byMember, 1)

		matches, err := conn.FindGroupsByMatch(ctx, "min")
		require.NoError(t, err)
		require.Len(t, matches, 1)
	})

	t.Run("apps", func(t *testing.T) {
		e, err := conn.FindAppByURL(ctx, "https://wiki.example.com")
		require.NoError(t, err)
		require.Equal(t, "wiki", e.First("ou"))
	})

	t.Run("invites", func(t *testing.T) {
		e, err := conn.FindInviteByToken(ctx, "tok1")
		require.NoError(t, err)
		require.Equal(t, "new@outside.com", e.First("mail"))

		byMail, err := conn.FindInvitesByMail(ctx, "new@outside.com")
		require.NoError(t, err)
		require.Len(t, byMail, 1)
	})
}

func TestAllocateUserNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("empty namespace yields the policy floor", func(t *testing.T) {
		conn, _ := dirtest.NewConn(t)
		n, err := conn.AllocateUserNumber(ctx)
		require.NoError(t, err)
		require.Equal(t, directory.FirstUserNumber, n)
	})

	t.Run("otherwise max plus one", func(t *testing.T) {
		conn, _ := dirtest.NewConn(t)
		dirtest.SeedUser(t, conn, map[string][]string{"uid": {"a"}, "uidnumber": {"1200"}})
		dirtest.SeedUser(t, conn, map[string][]string{"uid": {"b"}, "uidnumber": {"1450"}})
		dirtest.SeedUser(t, conn, map[string][]string{"uid": {"c"}}) // no number yet

		n, err := conn.AllocateUserNumber(ctx)
		require.NoError(t, err)
		require.Equal(t, 1451, n)
	})

	// Concurrent allocate-and-create sessions must never hand the same
	// number to two callers within one session.
	t.Run("allocation is serialized per session", func(t *testing.T) {
		conn, _ := dirtest.NewConn(t)
		var (
			g  errgroup.Group
			mu sync.Mutex
		)
		seen := make(map[int]bool)
		for i := 0; i < 8; i++ {
			i := i
			g.Go(func() error {
				n, err := conn.AllocateUserNumber(ctx)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if seen[n] {
					return fmt.Errorf("number %d allocated twice", n)
				}
				seen[n] = true
				uid := "user" + strconv.Itoa(i)
				return conn.Add(ctx, conn.UserDN(uid), map[string][]string{
					"uid":       {uid},
					"uidnumber": {strconv.Itoa(n)},
				})
			})
		}
		require.NoError(t, g.Wait())
		require.Len(t, seen, 8)
	})
}
