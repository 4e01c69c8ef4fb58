package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
)

// filters excluding disabled (userAccountControl bit 2) and locked out accounts.
const (
	filterNotDisabled  = "(!(userAccountControl:1.2.840.113556.1.4.803:=2))"
	filterNotLockedOut = "(!(lockoutTime>=1))"
)

// Member is one account returned by FetchGroupMembers.
type Member struct {
	DN string
	// Attributes holds the requested attributes that were present, keyed by the requested name.
	Attributes map[string]string
}

// Attribute returns the value of an attribute, matching the name case-insensitively.
func (m Member) Attribute(name string) (string, bool) {
	if v, ok := m.Attributes[name]; ok {
		return v, true
	}

	for k, v := range m.Attributes {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}

	return "", false
}

// FetchGroupMembers returns the user members of a group with the requested attributes.
// groupID is a DN or a cn. With activeOnly, disabled and locked out accounts are left out.
func (c *Client) FetchGroupMembers(
	ctx context.Context,
	groupID string,
	attributes []string,
	activeOnly bool,
) ([]Member, error) {
	conn, closeConn, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	group, err := c.findGroup(conn, groupID, "member")
	if err != nil {
		return nil, err
	}

	memberDNs := group.GetAttributeValues("member")
	if len(memberDNs) == 0 {
		log.Debug().Str("group", groupID).Msg("group has no members")
		return nil, nil
	}

	members := make([]Member, 0, len(memberDNs))

	for start := 0; start < len(memberDNs); start += c.cfg.ChunkSize {
		if err = ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck
		}

		end := min(start+c.cfg.ChunkSize, len(memberDNs))

		result, errSearch := conn.Search(c.searchRequest(
			c.cfg.BaseDN,
			ldap.ScopeWholeSubtree,
			memberFilter(memberDNs[start:end], activeOnly),
			attributes,
		))
		if errSearch != nil {
			return nil, fmt.Errorf("failed to resolve members of %s: %w", groupID, errSearch)
		}

		for _, entry := range result.Entries {
			members = append(members, toMember(entry, attributes))
		}
	}

	return members, nil
}

// memberFilter matches user objects whose DN is one of dns.
func memberFilter(dns []string, activeOnly bool) string {
	var b strings.Builder

	b.WriteString("(&(objectClass=user)")

	if activeOnly {
		b.WriteString(filterNotDisabled)
		b.WriteString(filterNotLockedOut)
	}

	b.WriteString("(|")

	for _, dn := range dns {
		b.WriteString("(distinguishedName=")
		b.WriteString(ldap.EscapeFilter(dn))
		b.WriteString(")")
	}

	b.WriteString("))")

	return b.String()
}

func toMember(entry *ldap.Entry, attributes []string) Member {
	m := Member{DN: entry.DN, Attributes: make(map[string]string, len(attributes))}

	for _, name := range attributes {
		if v := entry.GetEqualFoldAttributeValue(name); v != "" {
			m.Attributes[name] = v
		}
	}

	return m
}
