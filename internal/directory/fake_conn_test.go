package directory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
)

var errFake = errors.New("fake ldap failure")

// fakeConn records requests and answers searches through a handler.
type fakeConn struct {
	mu sync.Mutex

	bindErr   error
	search    func(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	modifyErr func(req *ldap.ModifyRequest) error
	moveErr   error

	binds     []string
	searches  []*ldap.SearchRequest
	modifies  []*ldap.ModifyRequest
	modifyDNs []*ldap.ModifyDNRequest
	adds      []*ldap.AddRequest
	dels      []*ldap.DelRequest
	closed    int
}

func (f *fakeConn) Bind(username, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.binds = append(f.binds, username)

	return f.bindErr
}

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.mu.Lock()
	f.searches = append(f.searches, req)
	f.mu.Unlock()

	if f.search == nil {
		return &ldap.SearchResult{}, nil
	}

	res, err := f.search(req)
	if res == nil && err == nil {
		res = &ldap.SearchResult{}
	}

	return res, err
}

func (f *fakeConn) Add(req *ldap.AddRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.adds = append(f.adds, req)

	return nil
}

func (f *fakeConn) Del(req *ldap.DelRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dels = append(f.dels, req)

	return nil
}

func (f *fakeConn) Modify(req *ldap.ModifyRequest) error {
	f.mu.Lock()
	f.modifies = append(f.modifies, req)
	f.mu.Unlock()

	if f.modifyErr != nil {
		return f.modifyErr(req)
	}

	return nil
}

func (f *fakeConn) ModifyDN(req *ldap.ModifyDNRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.modifyDNs = append(f.modifyDNs, req)

	return f.moveErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed++

	return nil
}

// changed returns the values replaced/added/deleted for attr across all modify requests.
func (f *fakeConn) changed(attr string) [][]string {
	var out [][]string

	for _, req := range f.modifies {
		for _, ch := range req.Changes {
			if strings.EqualFold(ch.Modification.Type, attr) {
				out = append(out, ch.Modification.Vals)
			}
		}
	}

	return out
}

func testConfig() Config {
	return Config{
		Host:           "dc.corp.local",
		Domain:         "CORP",
		BindUser:       "svc-bot",
		BindPassword:   "secret",
		BaseDN:         "DC=corp,DC=local",
		UserSearchBase: "OU=Users,DC=corp,DC=local",
		DisabledOU:     "OU=Disabled",
		MailDomain:     "corp.local",
		TempPassword:   "Welcome-2026",
		VPNAccessGroup: "VPN-Users",
		UserKinds: []UserKind{
			{Name: "staff", OU: "OU=Staff,OU=Users", Groups: []string{"Staff", "VPN-Users"}},
			{Name: "contractor", OU: "OU=Contractors,OU=Users"},
		},
	}
}

func newTestClient(cfg Config, conn *fakeConn) *Client {
	return NewWithDialer(cfg, func(context.Context) (Conn, error) { return conn, nil })
}
