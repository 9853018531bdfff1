package onboarding

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"meetdir/internal/directory"
	"meetdir/internal/identity"
	"meetdir/pkg/fielderr"
	"meetdir/pkg/platform/sentinel"
)

// Username and forwarding-address shape. Usernames double as posix logins
// and mail local parts, hence the narrow alphabet.
const (
	usernameMinLen = 3
	usernameMaxLen = 31
)

var (
	usernameRe = regexp.MustCompile(`^[a-z0-9]+$`)
	mailRe     = regexp.MustCompile(`(?i)^[^@\s]+@(?:[-a-z0-9]+\.)+[a-z]{2,}$`)
)

var titleCaser = cases.Title(language.Und)

// HardErrors runs every blocking check against the current directory state
// and returns the findings as data. The error return is for backend failures
// only; validation findings are never errors.
func (i *Invite) HardErrors(ctx context.Context) (fielderr.Set, error) {
	errs := make(fielderr.Set)

	if i.Requester == nil {
		errs.Add("requester", fielderr.KindRequired, "is required")
	}
	if i.PrimaryGroup == "" {
		errs.Add("primary_group", fielderr.KindRequired, "is required")
	}
	if i.FirstName == "" {
		errs.Add("first_name", fielderr.KindRequired, "is required")
	} else if strings.ContainsFunc(i.FirstName, unicode.IsSpace) {
		errs.Add("first_name", fielderr.KindFormat, "should not contain whitespace")
	}
	if i.LastName == "" {
		errs.Add("last_name", fielderr.KindRequired, "is required")
	} else if strings.ContainsFunc(i.LastName, unicode.IsSpace) {
		errs.Add("last_name", fielderr.KindFormat, "should not contain whitespace")
	}

	if err := i.checkUsername(ctx, errs); err != nil {
		return nil, err
	}
	if err := i.checkMailForward(ctx, errs); err != nil {
		return nil, err
	}

	if i.MailInbox == nil {
		errs.Add("mail_inbox", fielderr.KindRequired, "preference required")
	}

	return errs, nil
}

func (i *Invite) checkUsername(ctx context.Context, errs fielderr.Set) error {
	if i.Username == "" {
		errs.Add("username", fielderr.KindRequired, "is required")
		return nil
	}
	if n := utf8.RuneCountInString(i.Username); n < usernameMinLen || n > usernameMaxLen {
		errs.Add("username", fielderr.KindLength,
			fmt.Sprintf("must be %d to %d characters", usernameMinLen, usernameMaxLen))
	}
	if !usernameRe.MatchString(i.Username) {
		errs.Add("username", fielderr.KindFormat, "must be lowercase letters and digits only")
	}

	// The id may not collide with any existing user id, user alias, group
	// name, or group alias. Four independent probes, each a hard error.
	probes := []func(context.Context, string) (directory.Entry, error){
		i.conn.FindUserByID,
		i.conn.FindUserByAlias,
		i.conn.FindGroupByName,
		i.conn.FindGroupByAlias,
	}
	for _, probe := range probes {
		_, err := probe(ctx, i.Username)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		errs.Add("username", fielderr.KindUniqueness, fmt.Sprintf("%q already in use", i.Username))
	}
	return nil
}

func (i *Invite) checkMailForward(ctx context.Context, errs fielderr.Set) error {
	if i.MailForward == "" {
		errs.Add("mail_forward", fielderr.KindRequired, "is required")
		return nil
	}
	if !mailRe.MatchString(i.MailForward) {
		errs.Add("mail_forward", fielderr.KindFormat, "is not a valid address")
	}

	if domain := i.conn.BaseDomain(); domain != "" &&
		strings.Contains(strings.ToLower(i.MailForward), "@"+strings.ToLower(domain)) {
		errs.Add("mail_forward", fielderr.KindDomainPolicy, "must be to an outside domain")
	}

	// A forward may be claimed by at most one unexpired invite and one
	// user. The invite probe only applies to drafts: a saved invite would
	// always find itself.
	if !i.Saved() {
		invites, err := i.conn.FindInvitesByMail(ctx, i.MailForward)
		if err != nil {
			return err
		}
		if len(invites) > 0 {
			errs.Add("mail_forward", fielderr.KindUniqueness, "already invited to create an account")
		}
	}
	users, err := i.conn.FindUsersByMail(ctx, i.MailForward)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		errs.Add("mail_forward", fielderr.KindUniqueness, "already in use")
	}
	return nil
}

// Warnings computes the advisory findings. They never block on their own;
// Forewarned compares them against the caller's acknowledgements. Recomputed
// in full on every call since directory state moves underneath us.
func (i *Invite) Warnings(ctx context.Context) (fielderr.Warnings, error) {
	warnings := make(fielderr.Warnings)

	if utf8.RuneCountInString(i.LastName) > 1 {
		people, err := identity.SearchUsers(ctx, i.conn, i.Name())
		if err != nil {
			return nil, err
		}
		if len(people) > 0 {
			names := make([]string, len(people))
			for j, p := range people {
				names[j] = p.Name
			}
			warnings["similarly_named"] = fmt.Sprintf("user %q already has an account", strings.Join(names, ", "))
		}
	}

	checkCaps := func(key, name string) {
		if name != "" && !properlyCapitalized(name) {
			warnings[key] = fmt.Sprintf("should be capitalized properly, e.g. %q",
				titleCaser.String(strings.ToLower(name)))
		}
	}
	checkCaps("first_name", i.FirstName)
	checkCaps("last_name", i.LastName)

	return warnings, nil
}

// properlyCapitalized accepts any name containing an upper-case letter
// directly followed by a lower-case one, so "McDonald" passes and "JOHN",
// "john" do not.
func properlyCapitalized(s string) bool {
	prev := rune(0)
	for _, r := range s {
		if unicode.IsUpper(prev) && unicode.IsLower(r) {
			return true
		}
		prev = r
	}
	return false
}

// Forewarned reports whether every currently raised warning key has been
// acknowledged by the caller. Acknowledgements travel with the call and are
// never stored, since the warning set can change between checks.
func (i *Invite) Forewarned(ctx context.Context, acks fielderr.Acks) (bool, error) {
	warnings, err := i.Warnings(ctx)
	if err != nil {
		return false, err
	}
	return acks.Covers(warnings), nil
}

// SaveErrors is HardErrors minus the fields the invitee may fill in later:
// username-scoped findings when no username was supplied yet, and the inbox
// preference when it is still open.
func (i *Invite) SaveErrors(ctx context.Context) (fielderr.Set, error) {
	errs, err := i.HardErrors(ctx)
	if err != nil {
		return nil, err
	}
	if i.Username == "" {
		errs = errs.Without("username")
	}
	if i.MailInbox == nil {
		errs = errs.Without("mail_inbox")
	}
	return errs, nil
}

// CanSave gates the draft→saved transition.
func (i *Invite) CanSave(ctx context.Context, acks fielderr.Acks) (bool, error) {
	ok, err := i.Forewarned(ctx, acks)
	if err != nil || !ok {
		return false, err
	}
	errs, err := i.SaveErrors(ctx)
	if err != nil {
		return false, err
	}
	return errs.Empty(), nil
}

// CanPromote gates the saved→created transition: everything must check out.
func (i *Invite) CanPromote(ctx context.Context, acks fielderr.Acks) (bool, error) {
	ok, err := i.Forewarned(ctx, acks)
	if err != nil || !ok {
		return false, err
	}
	errs, err := i.HardErrors(ctx)
	if err != nil {
		return false, err
	}
	return errs.Empty(), nil
}
