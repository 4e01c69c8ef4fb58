package directory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/adopsbot/adopsbot/internal/password"
)

const (
	uacAccountDisable = 0x2
	uacNormalAccount  = 0x200
)

// UnlockUser clears the lockout of an account and returns its DN.
func (c *Client) UnlockUser(ctx context.Context, login string) (string, error) {
	conn, closeConn, err := c.session(ctx)
	if err != nil {
		return "", err
	}
	defer closeConn()

	entry, err := c.findUser(conn, c.cfg.UserSearchBase, login, "lockoutTime")
	if err != nil {
		return "", err
	}

	req := ldap.NewModifyRequest(entry.DN, nil)
	req.Replace("lockoutTime", []string{"0"})

	if err = conn.Modify(req); err != nil {
		return entry.DN, fmt.Errorf("failed to unlock %s: %w", login, err)
	}

	return entry.DN, nil
}

// DisableResult reports the steps DisableUser performed.
type DisableResult struct {
	DN              string
	AlreadyDisabled bool
	PasswordChanged bool
	Moved           bool
	// Warnings lists the steps that failed after the account was disabled.
	Warnings []string
}

// DisableUser disables an account, scrambles its password, forces a password change and
// moves it to the disabled OU. An error means the account was not disabled; later step
// failures are reported in Warnings.
func (c *Client) DisableUser(ctx context.Context, login string) (DisableResult, error) {
	var result DisableResult

	if c.cfg.DisabledOU == "" {
		return result, ErrDisabledOUNotSet
	}

	conn, closeConn, err := c.session(ctx)
	if err != nil {
		return result, err
	}
	defer closeConn()

	entry, err := c.findUser(conn, c.cfg.UserSearchBase, login, "userAccountControl")
	if err != nil {
		return result, err
	}

	result.DN = entry.DN

	flags, err := strconv.ParseInt(entry.GetAttributeValue("userAccountControl"), 10, 64)
	if err != nil {
		return result, fmt.Errorf("invalid userAccountControl of %s: %w", login, err)
	}

	if flags&uacAccountDisable != 0 {
		result.AlreadyDisabled = true
	} else {
		req := ldap.NewModifyRequest(entry.DN, nil)
		req.Replace("userAccountControl", []string{strconv.FormatInt(flags|uacAccountDisable, 10)})

		if err = conn.Modify(req); err != nil {
			return result, fmt.Errorf("failed to disable %s: %w", login, err)
		}
	}

	if err = setPassword(conn, entry.DN, password.Generate(password.DisableLen)); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	} else {
		result.PasswordChanged = true
	}

	pwdLastSet := ldap.NewModifyRequest(entry.DN, nil)
	pwdLastSet.Replace("pwdLastSet", []string{"0"})

	if err = conn.Modify(pwdLastSet); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("failed to force password change: %v", err))
	}

	rdn := firstRDN(entry.DN)
	target := c.joinDN(c.cfg.DisabledOU)

	if err = conn.ModifyDN(ldap.NewModifyDNRequest(entry.DN, rdn, true, target)); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("failed to move to %s: %v", c.cfg.DisabledOU, err))
	} else {
		result.Moved = true
		result.DN = rdn + "," + target
	}

	return result, nil
}

// PasswordResult is the outcome of ResetPassword.
type PasswordResult struct {
	DN       string
	Password string
}

// ResetPassword sets a new random password on an account without forcing a change at next logon.
func (c *Client) ResetPassword(ctx context.Context, login string) (PasswordResult, error) {
	conn, closeConn, err := c.session(ctx)
	if err != nil {
		return PasswordResult{}, err
	}
	defer closeConn()

	entry, err := c.findUser(conn, c.cfg.UserSearchBase, login)
	if err != nil {
		return PasswordResult{}, err
	}

	pw := password.Generate(password.ResetLen)

	if err = setPassword(conn, entry.DN, pw); err != nil {
		return PasswordResult{DN: entry.DN}, fmt.Errorf("%s: %w", login, err)
	}

	return PasswordResult{DN: entry.DN, Password: pw}, nil
}

// GroupResult is the outcome of AddToGroup and RemoveFromGroup.
type GroupResult struct {
	UserDN  string
	GroupDN string
	// Changed is false when the membership already was in the requested state.
	Changed bool
}

// AddToGroup makes an account a member of a group. Existing membership is not an error.
func (c *Client) AddToGroup(ctx context.Context, login, group string) (GroupResult, error) {
	conn, closeConn, err := c.session(ctx)
	if err != nil {
		return GroupResult{}, err
	}
	defer closeConn()

	return c.changeMembership(conn, login, group, true)
}

// RemoveFromGroup removes an account from a group. Missing membership is not an error.
func (c *Client) RemoveFromGroup(ctx context.Context, login, group string) (GroupResult, error) {
	conn, closeConn, err := c.session(ctx)
	if err != nil {
		return GroupResult{}, err
	}
	defer closeConn()

	return c.changeMembership(conn, login, group, false)
}

func (c *Client) changeMembership(conn Conn, login, group string, add bool) (GroupResult, error) {
	var result GroupResult

	user, err := c.findUser(conn, c.cfg.UserSearchBase, login)
	if err != nil {
		return result, err
	}

	result.UserDN = user.DN

	groupEntry, err := c.findGroup(conn, group, "member")
	if err != nil {
		return result, err
	}

	result.GroupDN = groupEntry.DN

	isMember := false

	for _, dn := range groupEntry.GetAttributeValues("member") {
		if strings.EqualFold(dn, user.DN) {
			isMember = true
			break
		}
	}

	if isMember == add {
		return result, nil
	}

	req := ldap.NewModifyRequest(groupEntry.DN, nil)
	if add {
		req.Add("member", []string{user.DN})
	} else {
		req.Delete("member", []string{user.DN})
	}

	if err = conn.Modify(req); err != nil {
		return result, fmt.Errorf("failed to update members of %s: %w", group, err)
	}

	result.Changed = true

	return result, nil
}

// CreateResult is the outcome of CreateUser.
type CreateResult struct {
	DN           string
	Login        string
	TempPassword string
	// Groups lists the groups the account joined.
	Groups []string
	// Warnings lists the groups that could not be joined.
	Warnings []string
}

// CreateUser creates an enabled account of the given kind with the configured temporary password.
// A password change is forced at first logon. If the account can not be activated it is deleted again.
func (c *Client) CreateUser(ctx context.Context, kind, login, displayName string) (CreateResult, error) {
	result := CreateResult{Login: login}

	userKind, ok := c.cfg.userKind(kind)
	if !ok {
		return result, fmt.Errorf("%w: %q", ErrUnknownUserKind, kind)
	}

	if c.cfg.TempPassword == "" {
		return result, ErrTempPasswordNotSet
	}

	if err := validateLogin(login); err != nil {
		return result, err
	}

	conn, closeConn, err := c.session(ctx)
	if err != nil {
		return result, err
	}
	defer closeConn()

	if _, err = c.findUser(conn, c.cfg.BaseDN, login); err == nil {
		return result, fmt.Errorf("%s: %w", login, ErrUserExists)
	} else if !isNotFound(err) {
		return result, err
	}

	dn := fmt.Sprintf("CN=%s,%s", ldap.EscapeDN(login), c.joinDN(userKind.OU))

	add := ldap.NewAddRequest(dn, nil)
	add.Attribute("objectClass", []string{"top", "person", "organizationalPerson", "user"})
	add.Attribute("sAMAccountName", []string{login})
	add.Attribute("name", []string{login})

	if displayName != "" {
		add.Attribute("displayName", []string{displayName})
	}

	if c.cfg.MailDomain != "" {
		add.Attribute("userPrincipalName", []string{login + "@" + c.cfg.MailDomain})
	}

	if err = conn.Add(add); err != nil {
		return result, fmt.Errorf("failed to create %s: %w", login, err)
	}

	if err = c.activate(conn, dn); err != nil {
		if errDel := conn.Del(ldap.NewDelRequest(dn, nil)); errDel != nil {
			log.Error().Err(errDel).Str("dn", dn).Msg("failed to roll back created account")
		}

		return result, err
	}

	result.DN = dn
	result.TempPassword = c.cfg.TempPassword

	for _, group := range userKind.Groups {
		if _, errGroup := c.changeMembership(conn, login, group, true); errGroup != nil {
			result.Warnings = append(result.Warnings, errGroup.Error())
			continue
		}

		result.Groups = append(result.Groups, group)
	}

	return result, nil
}

// activate sets the temporary password, enables the account and forces a password change.
func (c *Client) activate(conn Conn, dn string) error {
	if err := setPassword(conn, dn, c.cfg.TempPassword); err != nil {
		return err
	}

	req := ldap.NewModifyRequest(dn, nil)
	req.Replace("userAccountControl", []string{strconv.Itoa(uacNormalAccount)})
	req.Replace("pwdLastSet", []string{"0"})

	if err := conn.Modify(req); err != nil {
		return fmt.Errorf("failed to enable account: %w", err)
	}

	return nil
}

// LAPSResult holds the local administrator password of a computer.
type LAPSResult struct {
	DN              string
	Computer        string
	Password        string
	Expires         time.Time
	Expired         bool
	DaysLeft        int
	OperatingSystem string
	LastLogon       time.Time
}

// LAPSPassword reads the LAPS managed local administrator password of a computer.
func (c *Client) LAPSPassword(ctx context.Context, computer string) (LAPSResult, error) {
	result := LAPSResult{Computer: computer}

	conn, closeConn, err := c.session(ctx)
	if err != nil {
		return result, err
	}
	defer closeConn()

	filter := fmt.Sprintf("(&(objectClass=computer)(sAMAccountName=%s$))", ldap.EscapeFilter(computer))

	entry, err := c.searchOne(conn, c.cfg.BaseDN, filter, []string{
		"ms-Mcs-AdmPwd",
		"ms-Mcs-AdmPwdExpirationTime",
		"operatingSystem",
		"lastLogonTimestamp",
	}, ErrComputerNotFound)
	if err != nil {
		return result, fmt.Errorf("%s: %w", computer, err)
	}

	result.DN = entry.DN
	result.OperatingSystem = entry.GetAttributeValue("operatingSystem")

	if v := entry.GetAttributeValue("lastLogonTimestamp"); v != "" {
		if result.LastLogon, err = parseFileTime(v); err != nil {
			log.Warn().Err(err).Str("computer", computer).Msg("invalid lastLogonTimestamp")
		}
	}

	result.Password = entry.GetAttributeValue("ms-Mcs-AdmPwd")
	if result.Password == "" {
		return result, fmt.Errorf("%s: %w", computer, ErrLAPSPasswordUnavailable)
	}

	expiry := entry.GetAttributeValue("ms-Mcs-AdmPwdExpirationTime")
	if expiry == "" {
		return result, fmt.Errorf("%s: %w", computer, ErrLAPSExpiryUnavailable)
	}

	if result.Expires, err = parseFileTime(expiry); err != nil {
		return result, fmt.Errorf("%s: invalid LAPS expiration time: %w", computer, err)
	}

	left := result.Expires.Sub(c.now())
	result.Expired = left <= 0
	result.DaysLeft = int(math.Floor(left.Hours() / 24)) //nolint:mnd

	return result, nil
}

// User is one entry of ListUsersByOU.
type User struct {
	Login       string
	DisplayName string
	Created     time.Time
	LastLogon   time.Time
	// Inactive is set for accounts created more than 30 days ago without a logon in the last 30 days.
	Inactive bool
}

// OUUsers groups the users of one organizational unit.
type OUUsers struct {
	OU    string
	Name  string
	Users []User
}

// ListUsersByOU lists the person accounts directly below each OU used by the configured user kinds.
// OUs are returned sorted by path.
func (c *Client) ListUsersByOU(ctx context.Context) ([]OUUsers, error) {
	ous := make(map[string]struct{})
	for _, k := range c.cfg.UserKinds {
		ous[k.OU] = struct{}{}
	}

	paths := make([]string, 0, len(ous))
	for ou := range ous {
		paths = append(paths, ou)
	}

	sort.Strings(paths)

	conn, closeConn, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	now := c.now()
	out := make([]OUUsers, 0, len(paths))

	for _, ou := range paths {
		result, errSearch := conn.Search(c.searchRequest(
			c.joinDN(ou),
			ldap.ScopeSingleLevel,
			"(&(objectClass=user)(objectCategory=person))",
			[]string{"sAMAccountName", "displayName", "whenCreated", "lastLogonTimestamp"},
		))
		if errSearch != nil {
			return nil, fmt.Errorf("failed to list users of %s: %w", ou, errSearch)
		}

		group := OUUsers{OU: ou, Name: strings.TrimPrefix(firstRDN(ou), "OU=")}

		for _, entry := range result.Entries {
			group.Users = append(group.Users, toUser(entry, now))
		}

		out = append(out, group)
	}

	return out, nil
}

func toUser(entry *ldap.Entry, now time.Time) User {
	u := User{
		Login:       entry.GetAttributeValue("sAMAccountName"),
		DisplayName: entry.GetAttributeValue("displayName"),
	}

	if v := entry.GetAttributeValue("whenCreated"); v != "" {
		if created, err := parseGeneralizedTime(v); err == nil {
			u.Created = created
		}
	}

	if v := entry.GetAttributeValue("lastLogonTimestamp"); v != "" {
		if lastLogon, err := parseFileTime(v); err == nil {
			u.LastLogon = lastLogon
		}
	}

	threshold := now.Add(-inactiveAfter)
	if !u.Created.IsZero() && u.Created.Before(threshold) {
		u.Inactive = u.LastLogon.IsZero() || u.LastLogon.Before(threshold)
	}

	return u
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
