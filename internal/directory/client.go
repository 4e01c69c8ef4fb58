package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/unicode"
)

// Conn is the subset of *ldap.Conn used by Client.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Del(req *ldap.DelRequest) error
	Modify(req *ldap.ModifyRequest) error
	ModifyDN(req *ldap.ModifyDNRequest) error
	Close() error
}

// Dialer opens a new connection to the directory.
type Dialer func(ctx context.Context) (Conn, error)

// Client runs directory queries and account operations against Active Directory.
// Every call opens its own connection, binds with the service account and closes it.
type Client struct {
	cfg  Config
	dial Dialer
	now  func() time.Time
}

// New creates a client connecting over the network.
func New(cfg Config) *Client {
	c := &Client{cfg: cfg.withDefaults(), now: time.Now}
	c.dial = c.connect

	return c
}

// NewWithDialer creates a client using dial to obtain connections.
func NewWithDialer(cfg Config, dial Dialer) *Client {
	return &Client{cfg: cfg.withDefaults(), dial: dial, now: time.Now}
}

// connect establishes a connection to the domain controller.
func (c *Client) connect(_ context.Context) (Conn, error) {
	hostPort := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	ldapURL := "ldap://" + hostPort
	if c.cfg.UseSSL {
		ldapURL = "ldaps://" + hostPort
	}

	var tlsConfig *tls.Config
	if c.cfg.UseSSL || c.cfg.UseTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: c.cfg.SkipVerify, //nolint:gosec // configurable for lab setups
			ServerName:         c.cfg.Host,
		}
	}

	conn, err := ldap.DialURL(ldapURL,
		ldap.DialWithTLSConfig(tlsConfig),
		ldap.DialWithDialer(&net.Dialer{Timeout: time.Duration(c.cfg.Timeout) * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	if !c.cfg.UseSSL && c.cfg.UseTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			if errClose := conn.Close(); errClose != nil {
				log.Error().Err(errClose).Msg("failed to close LDAP connection")
			}

			return nil, fmt.Errorf("failed to start TLS: %w", errStartTLS)
		}
	}

	conn.SetTimeout(time.Duration(c.cfg.Timeout) * time.Second)

	return conn, nil
}

// session dials and binds with the service account. The returned func closes the connection.
func (c *Client) session(ctx context.Context) (Conn, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, nil, err
	}

	closeConn := func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}

	if err = conn.Bind(c.cfg.bindName(), c.cfg.BindPassword); err != nil {
		closeConn()
		return nil, nil, fmt.Errorf("failed to bind with service account: %w", err)
	}

	return conn, closeConn, nil
}

// TestConnection dials and binds with the service account.
func (c *Client) TestConnection(ctx context.Context) error {
	_, closeConn, err := c.session(ctx)
	if err != nil {
		return err
	}

	closeConn()

	return nil
}

func (c *Client) searchRequest(base string, scope int, filter string, attributes []string) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		base,
		scope,
		ldap.NeverDerefAliases,
		0, // size limit
		c.cfg.Timeout,
		false,
		filter,
		attributes,
		nil,
	)
}

// searchOne returns the single entry matching filter, notFound if there is none.
func (c *Client) searchOne(conn Conn, base, filter string, attributes []string, notFound error) (*ldap.Entry, error) {
	result, err := conn.Search(c.searchRequest(base, ldap.ScopeWholeSubtree, filter, attributes))
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", filter, err)
	}

	switch len(result.Entries) {
	case 0:
		return nil, notFound
	case 1:
		return result.Entries[0], nil
	default:
		return nil, ErrMultipleEntriesFound
	}
}

// findUser looks up an account by sAMAccountName below base.
func (c *Client) findUser(conn Conn, base, login string, attributes ...string) (*ldap.Entry, error) {
	if err := validateLogin(login); err != nil {
		return nil, err
	}

	filter := fmt.Sprintf("(&(objectClass=user)(sAMAccountName=%s))", ldap.EscapeFilter(login))

	entry, err := c.searchOne(conn, base, filter, append(attributes, "distinguishedName"), ErrUserNotFound)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", login, err)
	}

	return entry, nil
}

// findGroup looks up a group. A groupID containing "=" is read as a DN, anything else as a cn.
func (c *Client) findGroup(conn Conn, groupID string, attributes ...string) (*ldap.Entry, error) {
	var (
		result *ldap.SearchResult
		err    error
	)

	if strings.Contains(groupID, "=") {
		result, err = conn.Search(c.searchRequest(groupID, ldap.ScopeBaseObject, "(objectClass=group)", attributes))
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, fmt.Errorf("%s: %w", groupID, ErrGroupNotFound)
		}
	} else {
		filter := fmt.Sprintf("(&(objectClass=group)(cn=%s))", ldap.EscapeFilter(groupID))
		result, err = conn.Search(c.searchRequest(c.cfg.GroupSearchBase, ldap.ScopeWholeSubtree, filter, attributes))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to search group %s: %w", groupID, err)
	}

	switch len(result.Entries) {
	case 0:
		return nil, fmt.Errorf("%s: %w", groupID, ErrGroupNotFound)
	case 1:
		return result.Entries[0], nil
	default:
		return nil, fmt.Errorf("group %s: %w", groupID, ErrMultipleEntriesFound)
	}
}

// setPassword replaces unicodePwd. AD expects the quoted password encoded as UTF-16LE.
func setPassword(conn Conn, dn, password string) error {
	encoded, err := encodePassword(password)
	if err != nil {
		return err
	}

	req := ldap.NewModifyRequest(dn, nil)
	req.Replace("unicodePwd", []string{encoded})

	if err = conn.Modify(req); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	return nil
}

func encodePassword(password string) (string, error) {
	utf16 := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

	encoded, err := utf16.NewEncoder().String(`"` + password + `"`)
	if err != nil {
		return "", fmt.Errorf("failed to encode password: %w", err)
	}

	return encoded, nil
}

// validateLogin rejects values AD does not accept as sAMAccountName.
func validateLogin(login string) error {
	const maxLoginLen = 20

	if login == "" || len(login) > maxLoginLen {
		return fmt.Errorf("%w: %q", ErrInvalidLogin, login)
	}

	if strings.ContainsAny(login, `"/\[]:;|=,+*?<>@ `) {
		return fmt.Errorf("%w: %q", ErrInvalidLogin, login)
	}

	return nil
}

// firstRDN returns the leading RDN of dn, honoring escaped commas.
func firstRDN(dn string) string {
	for i := 0; i < len(dn); i++ {
		switch dn[i] {
		case '\\':
			i++
		case ',':
			return dn[:i]
		}
	}

	return dn
}

// joinDN appends BaseDN to a relative path such as "OU=Disabled".
func (c *Client) joinDN(relative string) string {
	if relative == "" {
		return c.cfg.BaseDN
	}

	return relative + "," + c.cfg.BaseDN
}
