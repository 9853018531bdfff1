// Package onboarding admits a new identity into the directory. An Invite
// starts as a draft, is persisted under the pending namespace once its hard
// checks pass and its warnings are acknowledged, and is finally promoted to a
// live user. Validation is recomputed against live directory state on every
// check; nothing is cached between calls.
package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"meetdir/internal/directory"
	"meetdir/internal/identity"
	"meetdir/pkg/fielderr"
	"meetdir/pkg/platform/sentinel"
)

// ErrNotReady is returned by Save and Promote when the invite's checks have
// not passed. The blocking findings are in HardErrors/Warnings, not here.
var ErrNotReady = errors.New("invite checks have not passed")

// ErrNotSaved is returned by Promote on a draft that was never persisted.
var ErrNotSaved = errors.New("invite has not been saved")

// Account defaults applied at promotion.
const (
	defaultShell = "/bin/bash"
	defaultGID   = "1000"
)

// Invite is a pending identity. Token is empty until the first Save; the
// entry path is derived from it. MailInbox is tri-state: the preference must
// be set explicitly before promotion, but may stay open while pending.
type Invite struct {
	conn *directory.Conn

	Token        string
	Requester    *identity.User
	PrimaryGroup string
	Username     string
	FirstName    string
	LastName     string
	MailForward  string
	MailInbox    *bool
}

// New starts a draft invite on the given session. Callers fill the fields
// directly and then drive the checks.
func New(conn *directory.Conn) *Invite {
	return &Invite{conn: conn}
}

// Find rehydrates a pending invite from its opaque token. The requester is
// re-read through the stored manager path.
func Find(ctx context.Context, conn *directory.Conn, token string) (*Invite, error) {
	e, err := conn.FindInviteByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return fromEntry(ctx, conn, e)
}

// All lists every pending invite.
func All(ctx context.Context, conn *directory.Conn) ([]*Invite, error) {
	entries, err := conn.AllInvites(ctx)
	if err != nil {
		return nil, err
	}
	invites := make([]*Invite, 0, len(entries))
	for _, e := range entries {
		inv, err := fromEntry(ctx, conn, e)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, nil
}

func fromEntry(ctx context.Context, conn *directory.Conn, e directory.Entry) (*Invite, error) {
	inv := &Invite{
		conn:         conn,
		Token:        e.First(directory.AttrCommonName),
		PrimaryGroup: e.First(directory.AttrOU),
		Username:     e.First(directory.AttrUID),
		FirstName:    e.First(directory.AttrGivenName),
		LastName:     e.First(directory.AttrSurname),
		MailForward:  e.First(directory.AttrMail),
	}
	if e.Has(directory.AttrDestination) {
		inbox := e.First(directory.AttrDestination) == "inbox"
		inv.MailInbox = &inbox
	}
	if manager := e.First(directory.AttrManager); manager != "" {
		me, err := conn.FindByDN(ctx, manager)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("resolve requester %s: %w", manager, err)
		}
		if err == nil {
			inv.Requester = identity.NewUser(conn, me)
		}
	}
	return inv, nil
}

// Saved reports whether the invite has been persisted to the pending
// namespace.
func (i *Invite) Saved() bool { return i.Token != "" }

// DN is the pending entry's path, empty until saved.
func (i *Invite) DN() string {
	if !i.Saved() {
		return ""
	}
	return i.conn.InviteDN(i.Token)
}

// Name is the invitee's display name.
func (i *Invite) Name() string { return i.FirstName + " " + i.LastName }

// Save persists the invite under the pending namespace, assigning its opaque
// token. Permitted only when CanSave holds: username and inbox preference may
// still be open, everything else must check out and all warnings must be
// acknowledged. A backend rejection (including the astronomically unlikely
// token collision) surfaces as an error.
func (i *Invite) Save(ctx context.Context, acks fielderr.Acks) error {
	ok, err := i.CanSave(ctx, acks)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotReady
	}

	token := uuid.NewString()
	attrs := map[string][]string{
		directory.AttrObjectClass: {"top", "inetOrgPerson"},
		directory.AttrCommonName:  {token},
		directory.AttrGivenName:   {i.FirstName},
		directory.AttrSurname:     {i.LastName},
		directory.AttrMail:        {i.MailForward},
		directory.AttrManager:     {i.Requester.DN},
		directory.AttrOU:          {i.PrimaryGroup},
	}
	if i.Username != "" {
		attrs[directory.AttrUID] = []string{i.Username}
	}
	if i.MailInbox != nil && *i.MailInbox {
		attrs[directory.AttrDestination] = []string{"inbox"}
	}

	if err := i.conn.Add(ctx, i.conn.InviteDN(token), attrs); err != nil {
		return fmt.Errorf("persist invite: %w", err)
	}
	i.Token = token
	return nil
}

// Step names one leg of the three-step promotion sequence.
type Step string

const (
	StepCreateUser      Step = "create-user"
	StepGroupMembership Step = "group-membership"
	StepRetireInvite    Step = "retire-invite"
)

// PromoteError reports which promotion step failed. The sequence has no
// rollback: a failure leaves the directory in the intermediate state the
// completed steps produced, and the caller must remediate. The pending entry
// is deleted last precisely so that it survives as evidence.
type PromoteError struct {
	Step Step
	DN   string
	Err  error
}

func (e *PromoteError) Error() string {
	return fmt.Sprintf("promotion failed at %s (%s): %v", e.Step, e.DN, e.Err)
}

func (e *PromoteError) Unwrap() error { return e.Err }

// Promote converts a saved, fully valid invite into a live user: create the
// user entry with a freshly allocated numeric id, append the username to the
// target group's member list, then retire the pending entry. Returns the new
// User read back from the directory.
func (i *Invite) Promote(ctx context.Context, acks fielderr.Acks) (*identity.User, error) {
	if !i.Saved() {
		return nil, ErrNotSaved
	}
	ok, err := i.CanPromote(ctx, acks)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotReady
	}

	// Resolve the target group before mutating anything: a dangling group
	// name must not leave an orphaned user behind.
	group, err := identity.FindGroup(ctx, i.conn, i.PrimaryGroup)
	if err != nil {
		return nil, fmt.Errorf("resolve primary group %q: %w", i.PrimaryGroup, err)
	}
	number, err := i.conn.AllocateUserNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate user number: %w", err)
	}

	userDN := i.conn.UserDN(i.Username)
	attrs := map[string][]string{
		directory.AttrObjectClass:   {"top", "inetOrgPerson", "posixAccount", "shadowAccount"},
		directory.AttrUID:           {i.Username},
		directory.AttrCommonName:    {i.Name()},
		directory.AttrGivenName:     {i.FirstName},
		directory.AttrSurname:       {i.LastName},
		directory.AttrMail:          {i.MailForward},
		directory.AttrHomeDirectory: {"/home/" + i.Username},
		directory.AttrLoginShell:    {defaultShell},
		directory.AttrUIDNumber:     {fmt.Sprintf("%d", number)},
		directory.AttrGIDNumber:     {defaultGID},
	}
	if *i.MailInbox {
		attrs[directory.AttrDestination] = []string{"inbox"}
	}

	if err := i.conn.Add(ctx, userDN, attrs); err != nil {
		return nil, &PromoteError{Step: StepCreateUser, DN: userDN, Err: err}
	}
	if err := i.conn.AddAttribute(ctx, group.DN, directory.AttrMemberUID, i.Username); err != nil {
		return nil, &PromoteError{Step: StepGroupMembership, DN: group.DN, Err: err}
	}
	if err := i.conn.Delete(ctx, i.DN()); err != nil {
		return nil, &PromoteError{Step: StepRetireInvite, DN: i.DN(), Err: err}
	}

	return identity.FindUser(ctx, i.conn, i.Username)
}
