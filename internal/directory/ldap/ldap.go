// Package ldap carries the Backend contract to a live LDAP service. The
// in-memory reference backend pins the semantics; this adapter maps them onto
// the wire protocol and folds LDAP result codes back into the shared
// sentinels.
package ldap

import (
	"context"
	"fmt"
	"strings"
	"time"

	goldap "github.com/go-ldap/ldap/v3"

	"meetdir/internal/directory"
	"meetdir/pkg/platform/sentinel"
)

// Config locates and authenticates the directory session.
type Config struct {
	// URL is an ldap:// or ldaps:// endpoint.
	URL          string
	BindDN       string
	BindPassword string
	// Timeout bounds each wire operation. Zero means the library default.
	Timeout time.Duration
}

// Client is a directory.Backend over one LDAP connection. It is safe for the
// same concurrent use the underlying connection supports; sessions that need
// isolation dial their own.
type Client struct {
	conn *goldap.Conn
}

// Dial connects and binds. The caller owns Close.
func Dial(cfg Config) (*Client, error) {
	conn, err := goldap.DialURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %v: %w", cfg.URL, err, sentinel.ErrUnavailable)
	}
	if cfg.Timeout > 0 {
		conn.SetTimeout(cfg.Timeout)
	}
	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bind %s: %w", cfg.BindDN, err)
		}
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// matchAll is the wire form of a nil filter.
const matchAll = "(objectclass=*)"

func (c *Client) Search(ctx context.Context, req directory.SearchRequest) ([]directory.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scope := goldap.ScopeWholeSubtree
	if req.Scope == directory.ScopeBase {
		scope = goldap.ScopeBaseObject
	}
	filter := matchAll
	if req.Filter != nil {
		filter = req.Filter.String()
	}

	res, err := c.conn.Search(goldap.NewSearchRequest(
		req.Base, scope, goldap.NeverDerefAliases, 0, 0, false,
		filter, []string{"*"}, nil,
	))
	if err != nil {
		// A missing base is an empty result, same as the reference backend.
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, fmt.Errorf("search %s: %w", req.Base, err)
	}

	entries := make([]directory.Entry, len(res.Entries))
	for i, raw := range res.Entries {
		attrs := make(map[string][]string, len(raw.Attributes))
		for _, a := range raw.Attributes {
			if len(a.Values) > 0 {
				attrs[strings.ToLower(a.Name)] = a.Values
			}
		}
		entries[i] = directory.Entry{DN: raw.DN, Attrs: attrs}
	}
	return entries, nil
}

func (c *Client) Add(ctx context.Context, dn string, attrs map[string][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := goldap.NewAddRequest(dn, nil)
	for attr, values := range attrs {
		if len(values) > 0 {
			req.Attribute(attr, values)
		}
	}
	if err := c.conn.Add(req); err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultEntryAlreadyExists) {
			return fmt.Errorf("add %s: %w", dn, sentinel.ErrExists)
		}
		return fmt.Errorf("add %s: %w", dn, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, dn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.Del(goldap.NewDelRequest(dn, nil)); err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return fmt.Errorf("delete %s: %w", dn, sentinel.ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", dn, err)
	}
	return nil
}

func (c *Client) AddAttribute(ctx context.Context, dn, attr string, values ...string) error {
	req := goldap.NewModifyRequest(dn, nil)
	req.Add(attr, values)
	return c.modify(ctx, dn, req)
}

func (c *Client) ReplaceAttribute(ctx context.Context, dn, attr string, values ...string) error {
	req := goldap.NewModifyRequest(dn, nil)
	req.Replace(attr, values)
	return c.modify(ctx, dn, req)
}

func (c *Client) DeleteAttribute(ctx context.Context, dn, attr string) error {
	req := goldap.NewModifyRequest(dn, nil)
	req.Delete(attr, nil)
	return c.modify(ctx, dn, req)
}

func (c *Client) modify(ctx context.Context, dn string, req *goldap.ModifyRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.Modify(req); err != nil {
		switch {
		case goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject):
			return fmt.Errorf("modify %s: %w", dn, sentinel.ErrNotFound)
		case goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchAttribute):
			return fmt.Errorf("modify %s: %w", dn, sentinel.ErrNoSuchAttribute)
		}
		return fmt.Errorf("modify %s: %w", dn, err)
	}
	return nil
}
