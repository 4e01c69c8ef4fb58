package directory

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

const (
	userDN  = "CN=Ivanov Ivan,OU=Users,DC=corp,DC=local"
	groupDN = "CN=VPN-Users,OU=Groups,DC=corp,DC=local"
)

func userLookup(req *ldap.SearchRequest, attrs map[string][]string) (*ldap.SearchResult, bool) {
	if strings.Contains(req.Filter, "(sAMAccountName=ivanov)") {
		return &ldap.SearchResult{Entries: []*ldap.Entry{ldap.NewEntry(userDN, attrs)}}, true
	}

	return nil, false
}

func TestMemberFilter(t *testing.T) {
	got := memberFilter([]string{"CN=a,DC=x", "CN=b (ext),DC=x"}, false)
	assert.Equal(t, `(&(objectClass=user)(|(distinguishedName=CN=a,DC=x)(distinguishedName=CN=b \28ext\29,DC=x)))`, got)

	got = memberFilter([]string{"CN=a,DC=x"}, true)
	assert.Contains(t, got, filterNotDisabled)
	assert.Contains(t, got, filterNotLockedOut)
}

func TestFetchGroupMembers(t *testing.T) {
	memberDNs := []string{"CN=u1,DC=corp,DC=local", "CN=u2,DC=corp,DC=local", "CN=u3,DC=corp,DC=local"}

	conn := &fakeConn{
		search: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			if strings.Contains(req.Filter, "objectClass=group") {
				assert.Equal(t, "(&(objectClass=group)(cn=G-ops))", req.Filter)
				return &ldap.SearchResult{Entries: []*ldap.Entry{
					ldap.NewEntry("CN=G-ops,DC=corp,DC=local", map[string][]string{"member": memberDNs}),
				}}, nil
			}

			var entries []*ldap.Entry

			for i, dn := range memberDNs {
				if strings.Contains(req.Filter, "(distinguishedName="+dn+")") {
					attrs := map[string][]string{"sAMAccountName": {"u" + strconv.Itoa(i+1)}}
					if i != 1 {
						attrs["pager"] = []string{strconv.Itoa(100 + i)}
					}

					entries = append(entries, ldap.NewEntry(dn, attrs))
				}
			}

			return &ldap.SearchResult{Entries: entries}, nil
		},
	}

	cfg := testConfig()
	cfg.ChunkSize = 2
	client := newTestClient(cfg, conn)

	members, err := client.FetchGroupMembers(context.Background(), "G-ops", []string{"pager", "samaccountname"}, true)
	require.NoError(t, err)
	require.Len(t, members, 3)

	pager, ok := members[0].Attribute("pager")
	assert.True(t, ok)
	assert.Equal(t, "100", pager)

	login, ok := members[0].Attribute("sAMAccountName")
	assert.True(t, ok, "lookup is case-insensitive")
	assert.Equal(t, "u1", login)

	_, ok = members[1].Attribute("pager")
	assert.False(t, ok)

	require.Len(t, conn.searches, 3, "one group search and two member chunks")
	assert.Contains(t, conn.searches[1].Filter, filterNotDisabled)
	assert.Equal(t, []string{`CORP\svc-bot`}, conn.binds)
	assert.Equal(t, 1, conn.closed)
}

func TestFetchGroupMembersByDN(t *testing.T) {
	conn := &fakeConn{
		search: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			if req.BaseDN == groupDN {
				assert.Equal(t, ldap.ScopeBaseObject, req.Scope)
				return &ldap.SearchResult{Entries: []*ldap.Entry{ldap.NewEntry(groupDN, nil)}}, nil
			}

			t.Fatalf("unexpected search %s", req.Filter)

			return nil, nil
		},
	}

	members, err := newTestClient(testConfig(), conn).FetchGroupMembers(context.Background(), groupDN, nil, false)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestFetchGroupMembersErrors(t *testing.T) {
	t.Run("group not found", func(t *testing.T) {
		conn := &fakeConn{}

		_, err := newTestClient(testConfig(), conn).FetchGroupMembers(context.Background(), "missing", nil, true)
		require.ErrorIs(t, err, ErrGroupNotFound)
		assert.Equal(t, 1, conn.closed)
	})

	t.Run("bind fails", func(t *testing.T) {
		conn := &fakeConn{bindErr: errFake}

		_, err := newTestClient(testConfig(), conn).FetchGroupMembers(context.Background(), "G-ops", nil, true)
		require.ErrorIs(t, err, errFake)
		assert.Empty(t, conn.searches)
		assert.Equal(t, 1, conn.closed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestClient(testConfig(), &fakeConn{}).FetchGroupMembers(ctx, "G-ops", nil, true)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestUnlockUser(t *testing.T) {
	conn := &fakeConn{
		search: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			assert.Equal(t, "OU=Users,DC=corp,DC=local", req.BaseDN)
			res, _ := userLookup(req, map[string][]string{"lockoutTime": {"133000000000000000"}})

			return res, nil
		},
	}
	client := newTestClient(testConfig(), conn)

	dn, err := client.UnlockUser(context.Background(), "ivanov")
	require.NoError(t, err)
	assert.Equal(t, userDN, dn)
	assert.Equal(t, [][]string{{"0"}}, conn.changed("lockoutTime"))

	_, err = client.UnlockUser(context.Background(), "petrov")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = client.UnlockUser(context.Background(), "bad*login")
	require.ErrorIs(t, err, ErrInvalidLogin)
}

func TestDisableUser(t *testing.T) {
	t.Run("active account", func(t *testing.T) {
		conn := &fakeConn{
			search: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
				res, _ := userLookup(req, map[string][]string{"userAccountControl": {"512"}})
				return res, nil
			},
		}

		result, err := newTestClient(testConfig(), conn).DisableUser(context.Background(), "ivanov")
		require.NoError(t, err)

		assert.False(t, result.AlreadyDisabled)
		assert.True(t, result.PasswordChanged)
		assert.True(t, result.Moved)
		assert.Empty(t, result.Warnings)
		assert.Equal(t, "CN=Ivanov Ivan,OU=Disabled,DC=corp,DC=local", result.DN)

		assert.Equal(t, [][]string{{"514"}}, conn.changed("userAccountControl"))
		assert.Equal(t, [][]string{{"0"}}, conn.changed("pwdLastSet"))
		assert.Len(t, conn.changed("unicodePwd"), 1)

		require.Len(t, conn.modifyDNs, 1)
		assert.Equal(t, "CN=Ivanov Ivan", conn.modifyDNs[0].NewRDN)
		assert.Equal(t, "OU=Disabled,DC=corp,DC=local", conn.modifyDNs[0].NewSuperior)
		assert.True(t, conn.modifyDNs[0].DeleteOldRDN)
	})

	t.Run("already disabled and move fails", func(t *testing.T) {
		conn := &fakeConn{
			moveErr: errFake,
			search: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
				res, _ := userLookup(req, map[string][]string{"userAccountControl": {"514"}})
				return res, nil
			},
		}

		result, err := newTestClient(testConfig(), conn).DisableUser(context.Background(), "ivanov")
		require.NoError(t, err)

		assert.True(t, result.AlreadyDisabled)
		assert.False(t, result.Moved)
		assert.Equal(t, userDN, result.DN)
		assert.Len(t, result.Warnings, 1)
		assert.Empty(t, conn.changed("userAccountControl"))
	})

	t.Run("disabled OU missing", func(t *testing.T) {
		cfg := testConfig()
		cfg.DisabledOU = ""

		_, err := newTestClient(cfg, &fakeConn{}).DisableUser(context.Background(), "ivanov")
		require.ErrorIs(t, err, ErrDisabledOUNotSet)
	})
}

func TestResetPassword(t *testing.T) {
	conn := &fakeConn{
		search: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			res, _ := userLookup(req, nil)
			return res, nil
		},
	}

	result, err := newTestClient(testConfig(), conn).ResetPassword(context.Background(), "ivanov")
	require.NoError(t, err)
	assert.Equal(t, userDN, result.DN)
	assert.NotEmpty(t, result.Password)

	pwd := conn.changed("unicodePwd")
	require.Len(t, pwd, 1)

	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().String(pwd[0][0])
	require.NoError(t, err)
	assert.Equal(t, `"`+result.Password+`"`, decoded)
}

func TestChangeMembership(t *testing.T) {
	groupMembers := []string{}

	conn := &fakeConn{
		search: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			if res, ok := userLookup(req, nil); ok {
				return res, nil
			}

			if strings.Contains(req.Filter, "(cn=VPN-Users)") {
				return &ldap.SearchResult{Entries: []*ldap.Entry{
					ldap.NewEntry(groupDN, map[string][]string{"member": groupMembers}),
				}}, nil
			}

			return &ldap.SearchResult{}, nil
		},
	}
	client := newTestClient(testConfig(), conn)

	result, err := client.AddToGroup(context.Background(), "ivanov", "VPN-Users")
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, groupDN, result.GroupDN)
	assert.Equal(t, [][]string{{userDN}}, conn.changed("member"))

	groupMembers = []string{strings.ToLower(userDN)}

	result, err = client.AddToGroup(context.Background(), "ivanov", "VPN-Users")
	require.NoError(t, err)
	assert.False(t, result.Changed, "already a member")
	assert.Len(t, conn.modifies, 1)

	result, err = client.RemoveFromGroup(context.Background(), "ivanov", "VPN-Users")
	require.NoError(t, err)
	assert.True(t, result.Changed)
	require.Len(t, conn.modifies, 2)
	assert.Equal(t, uint(ldap.DeleteAttribute), conn.modifies[1].Changes[0].Operation)

	_, err = client.AddToGroup(context.Background(), "ivanov", "Nope")
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestCreateUser(t *testing.T) {
	newSearch := func(existing bool) func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
		return func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			if strings.Contains(req.Filter, "(sAMAccountName=sidorov)") {
				if existing {
					return &ldap.SearchResult{Entries: []*ldap.Entry{ldap.NewEntry("CN=sidorov,DC=corp,DC=local", nil)}}, nil
				}

				if len(req.Attributes) == 1 && req.BaseDN == "DC=corp,DC=local" {
					return &ldap.SearchResult{}, nil
				}

				return &ldap.SearchResult{Entries: []*ldap.Entry{
					ldap.NewEntry("CN=sidorov,OU=Staff,OU=Users,DC=corp,DC=local", nil),
				}}, nil
			}

			if strings.Contains(req.Filter, "(cn=Staff)") {
				return &ldap.SearchResult{Entries: []*ldap.Entry{ldap.NewEntry("CN=Staff,DC=corp,DC=local", nil)}}, nil
			}

			return &ldap.SearchResult{}, nil
		}
	}

	t.Run("success with one missing group", func(t *testing.T) {
		conn := &fakeConn{search: newSearch(false)}

		result, err := newTestClient(testConfig(), conn).CreateUser(context.Background(), "staff", "sidorov", "Sidorov Sidor")
		require.NoError(t, err)

		assert.Equal(t, "CN=sidorov,OU=Staff,OU=Users,DC=corp,DC=local", result.DN)
		assert.Equal(t, "Welcome-2026", result.TempPassword)
		assert.Equal(t, []string{"Staff"}, result.Groups)
		assert.Len(t, result.Warnings, 1)

		require.Len(t, conn.adds, 1)
		assert.Equal(t, result.DN, conn.adds[0].DN)
		assert.Equal(t, [][]string{{"512"}}, conn.changed("userAccountControl"))
		assert.Empty(t, conn.dels)
	})

	t.Run("rollback when activation fails", func(t *testing.T) {
		conn := &fakeConn{
			search:    newSearch(false),
			modifyErr: func(*ldap.ModifyRequest) error { return errFake },
		}

		_, err := newTestClient(testConfig(), conn).CreateUser(context.Background(), "staff", "sidorov", "")
		require.ErrorIs(t, err, errFake)
		require.Len(t, conn.dels, 1)
		assert.Equal(t, "CN=sidorov,OU=Staff,OU=Users,DC=corp,DC=local", conn.dels[0].DN)
	})

	t.Run("existing login", func(t *testing.T) {
		conn := &fakeConn{search: newSearch(true)}

		_, err := newTestClient(testConfig(), conn).CreateUser(context.Background(), "staff", "sidorov", "")
		require.ErrorIs(t, err, ErrUserExists)
		assert.Empty(t, conn.adds)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := newTestClient(testConfig(), &fakeConn{}).CreateUser(context.Background(), "robot", "sidorov", "")
		require.ErrorIs(t, err, ErrUnknownUserKind)
	})
}

func fileTime(t time.Time) string {
	return strconv.FormatInt((t.Unix()+fileTimeEpochOffset)*fileTimeTicksPerSec, 10)
}

func TestLAPSPassword(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	expires := now.Add(72*time.Hour + time.Hour)

	conn := &fakeConn{
		search: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			switch {
			case strings.Contains(req.Filter, "(sAMAccountName=PC1$)"):
				return &ldap.SearchResult{Entries: []*ldap.Entry{ldap.NewEntry("CN=PC1,OU=Computers,DC=corp,DC=local", map[string][]string{
					"ms-Mcs-AdmPwd":               {"s3cr3t"},
					"ms-Mcs-AdmPwdExpirationTime": {fileTime(expires)},
					"operatingSystem":             {"Windows 11 Pro"},
					"lastLogonTimestamp":          {fileTime(now.Add(-24 * time.Hour))},
				})}}, nil
			case strings.Contains(req.Filter, "(sAMAccountName=PC2$)"):
				return &ldap.SearchResult{Entries: []*ldap.Entry{ldap.NewEntry("CN=PC2,DC=corp,DC=local", nil)}}, nil
			}

			return &ldap.SearchResult{}, nil
		},
	}

	client := newTestClient(testConfig(), conn)
	client.now = func() time.Time { return now }

	result, err := client.LAPSPassword(context.Background(), "PC1")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", result.Password)
	assert.Equal(t, expires, result.Expires)
	assert.False(t, result.Expired)
	assert.Equal(t, 3, result.DaysLeft)
	assert.Equal(t, "Windows 11 Pro", result.OperatingSystem)
	assert.Equal(t, now.Add(-24*time.Hour), result.LastLogon)

	_, err = client.LAPSPassword(context.Background(), "PC2")
	require.ErrorIs(t, err, ErrLAPSPasswordUnavailable)

	_, err = client.LAPSPassword(context.Background(), "PC3")
	require.ErrorIs(t, err, ErrComputerNotFound)
}

func TestListUsersByOU(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	old := now.Add(-90 * 24 * time.Hour).Format(generalizedLayout)
	fresh := now.Add(-2 * 24 * time.Hour).Format(generalizedLayout)

	conn := &fakeConn{
		search: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			assert.Equal(t, ldap.ScopeSingleLevel, req.Scope)

			if req.BaseDN == "OU=Staff,OU=Users,DC=corp,DC=local" {
				return &ldap.SearchResult{Entries: []*ldap.Entry{
					ldap.NewEntry("CN=a", map[string][]string{"sAMAccountName": {"a"}, "whenCreated": {old}}),
					ldap.NewEntry("CN=b", map[string][]string{
						"sAMAccountName": {"b"}, "displayName": {"B B"}, "whenCreated": {old},
						"lastLogonTimestamp": {fileTime(now.Add(-time.Hour))},
					}),
					ldap.NewEntry("CN=c", map[string][]string{"sAMAccountName": {"c"}, "whenCreated": {fresh}}),
				}}, nil
			}

			return &ldap.SearchResult{}, nil
		},
	}

	client := newTestClient(testConfig(), conn)
	client.now = func() time.Time { return now }

	ous, err := client.ListUsersByOU(context.Background())
	require.NoError(t, err)
	require.Len(t, ous, 2)

	assert.Equal(t, "Contractors", ous[0].Name)
	assert.Empty(t, ous[0].Users)

	staff := ous[1]
	assert.Equal(t, "Staff", staff.Name)
	require.Len(t, staff.Users, 3)
	assert.True(t, staff.Users[0].Inactive)
	assert.False(t, staff.Users[1].Inactive)
	assert.Equal(t, "B B", staff.Users[1].DisplayName)
	assert.False(t, staff.Users[2].Inactive)
}

func TestParseFileTime(t *testing.T) {
	ts, err := parseFileTime("0")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	ts, err = parseFileTime("9223372036854775807")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	ts, err = parseFileTime("116444736000000000")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(0, 0).UTC(), ts)

	_, err = parseFileTime("soon")
	require.Error(t, err)
}

func TestFirstRDN(t *testing.T) {
	assert.Equal(t, "CN=Ivanov Ivan", firstRDN(userDN))
	assert.Equal(t, `CN=Doe\, John`, firstRDN(`CN=Doe\, John,OU=Users,DC=corp,DC=local`))
	assert.Equal(t, "OU=Staff", firstRDN("OU=Staff"))
}
