// Package dirtest seeds the in-memory reference backend with schema-correct
// entries for tests, the way the live directory would be provisioned.
package dirtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"meetdir/internal/directory"
)

// BaseDN is the directory root used across the test suites.
const BaseDN = "dc=example,dc=com"

// NewConn returns a session over a fresh reference backend.
func NewConn(t *testing.T) (*directory.Conn, *directory.Memory) {
	t.Helper()
	mem := directory.NewMemory()
	return directory.NewConn(mem, BaseDN), mem
}

// SeedUser adds a user entry; attrs must include uid.
func SeedUser(t *testing.T, conn *directory.Conn, attrs map[string][]string) string {
	t.Helper()
	return seed(t, conn, conn.UserDN(first(t, attrs, directory.AttrUID)), attrs)
}

// SeedGroup adds a group entry; attrs must include cn.
func SeedGroup(t *testing.T, conn *directory.Conn, attrs map[string][]string) string {
	t.Helper()
	return seed(t, conn, conn.GroupDN(first(t, attrs, directory.AttrCommonName)), attrs)
}

// SeedApp adds an app entry; attrs must include ou.
func SeedApp(t *testing.T, conn *directory.Conn, attrs map[string][]string) string {
	t.Helper()
	return seed(t, conn, conn.AppDN(first(t, attrs, directory.AttrOU)), attrs)
}

// SeedInvite adds a pending-invitation entry; attrs must include cn.
func SeedInvite(t *testing.T, conn *directory.Conn, attrs map[string][]string) string {
	t.Helper()
	return seed(t, conn, conn.InviteDN(first(t, attrs, directory.AttrCommonName)), attrs)
}

func seed(t *testing.T, conn *directory.Conn, dn string, attrs map[string][]string) string {
	t.Helper()
	require.NoError(t, conn.Add(context.Background(), dn, attrs))
	return dn
}

func first(t *testing.T, attrs map[string][]string, attr string) string {
	t.Helper()
	require.NotEmpty(t, attrs[attr], "seed entry needs %s", attr)
	return attrs[attr][0]
}
