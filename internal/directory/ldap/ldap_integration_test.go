//go:build integration

package ldap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"meetdir/internal/directory"
	"meetdir/internal/directory/ldap"
	"meetdir/pkg/platform/sentinel"
)

const baseDN = "dc=example,dc=com"

// startOpenLDAP runs a disposable OpenLDAP and returns a bound client.
func startOpenLDAP(t *testing.T) *ldap.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "bitnami/openldap:2.6",
			ExposedPorts: []string{"1389/tcp"},
			Env: map[string]string{
				"LDAP_ROOT":           baseDN,
				"LDAP_ADMIN_USERNAME": "admin",
				"LDAP_ADMIN_PASSWORD": "adminpassword",
			},
			WaitingFor: wait.ForListeningPort("1389/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start openldap container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "1389")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	client, err := ldap.Dial(ldap.Config{
		URL:          "ldap://" + host + ":" + port.Port(),
		BindDN:       "cn=admin," + baseDN,
		BindPassword: "adminpassword",
	})
	if err != nil {
		t.Fatalf("failed to dial openldap: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func ensureOU(t *testing.T, client *ldap.Client, name string) {
	t.Helper()
	err := client.Add(context.Background(), "ou="+name+","+baseDN, map[string][]string{
		"objectclass": {"top", "organizationalUnit"},
		"ou":          {name},
	})
	if err != nil && !errors.Is(err, sentinel.ErrExists) {
		t.Fatalf("failed to create ou=%s: %v", name, err)
	}
}

// TestLiveBackendContract runs the Backend contract against a real server:
// the same semantics the in-memory reference backend pins.
func TestLiveBackendContract(t *testing.T) {
	ctx := context.Background()
	client := startOpenLDAP(t)
	ensureOU(t, client, "users")

	userDN := "uid=alice,ou=users," + baseDN
	if err := client.Add(ctx, userDN, map[string][]string{
		"objectclass": {"top", "inetOrgPerson"},
		"uid":         {"alice"},
		"cn":          {"Alice Liddell"},
		"sn":          {"Liddell"},
		"mail":        {"alice@outside.com"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	t.Run("duplicate add reports ErrExists", func(t *testing.T) {
		err := client.Add(ctx, userDN, map[string][]string{
			"objectclass": {"top", "inetOrgPerson"},
			"uid":         {"alice"},
			"cn":          {"Alice Liddell"},
			"sn":          {"Liddell"},
		})
		if !errors.Is(err, sentinel.ErrExists) {
			t.Fatalf("want ErrExists, got %v", err)
		}
	})

	t.Run("equality search", func(t *testing.T) {
		entries, err := client.Search(ctx, directory.SearchRequest{
			Base:   "ou=users," + baseDN,
			Filter: directory.Eq("uid", "alice"),
		})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(entries) != 1 || entries[0].First("mail") != "alice@outside.com" {
			t.Fatalf("unexpected result: %+v", entries)
		}
	})

	t.Run("wildcard and presence", func(t *testing.T) {
		entries, err := client.Search(ctx, directory.SearchRequest{
			Base:   "ou=users," + baseDN,
			Filter: directory.Eq("cn", "*Liddell*"),
		})
		if err != nil || len(entries) != 1 {
			t.Fatalf("wildcard: %v %+v", err, entries)
		}
		entries, err = client.Search(ctx, directory.SearchRequest{
			Base:   "ou=users," + baseDN,
			Filter: directory.Present("mail"),
		})
		if err != nil || len(entries) != 1 {
			t.Fatalf("presence: %v %+v", err, entries)
		}
	})

	t.Run("base scope reads one entry", func(t *testing.T) {
		entries, err := client.Search(ctx, directory.SearchRequest{
			Base:  userDN,
			Scope: directory.ScopeBase,
		})
		if err != nil || len(entries) != 1 || entries[0].DN != userDN {
			t.Fatalf("base scope: %v %+v", err, entries)
		}
	})

	t.Run("missing base is an empty result", func(t *testing.T) {
		entries, err := client.Search(ctx, directory.SearchRequest{
			Base: "ou=nowhere," + baseDN,
		})
		if err != nil || len(entries) != 0 {
			t.Fatalf("want empty, got %v %+v", err, entries)
		}
	})

	t.Run("attribute lifecycle", func(t *testing.T) {
		if err := client.AddAttribute(ctx, userDN, "description", "first"); err != nil {
			t.Fatalf("add attribute: %v", err)
		}
		if err := client.ReplaceAttribute(ctx, userDN, "description", "second"); err != nil {
			t.Fatalf("replace attribute: %v", err)
		}
		entries, err := client.Search(ctx, directory.SearchRequest{Base: userDN, Scope: directory.ScopeBase})
		if err != nil || len(entries) != 1 {
			t.Fatalf("read back: %v", err)
		}
		if got := entries[0].First("description"); got != "second" {
			t.Fatalf("want second, got %q", got)
		}
		if err := client.DeleteAttribute(ctx, userDN, "description"); err != nil {
			t.Fatalf("delete attribute: %v", err)
		}
		if err := client.DeleteAttribute(ctx, userDN, "description"); !errors.Is(err, sentinel.ErrNoSuchAttribute) {
			t.Fatalf("want ErrNoSuchAttribute, got %v", err)
		}
	})

	t.Run("delete and not found", func(t *testing.T) {
		if err := client.Delete(ctx, userDN); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := client.Delete(ctx, userDN); !errors.Is(err, sentinel.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
		if err := client.AddAttribute(ctx, userDN, "description", "x"); !errors.Is(err, sentinel.ErrNotFound) {
			t.Fatalf("want ErrNotFound on modify, got %v", err)
		}
	})
}
