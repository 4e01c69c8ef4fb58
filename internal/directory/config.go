package directory

// UserKind describes where accounts of one kind are created and which groups they join.
type UserKind struct {
	Name   string   `validate:"required"`
	OU     string   `validate:"required"` // relative to BaseDN, e.g. "OU=Staff,OU=Users"
	Groups []string // group cn values
}

// Config holds the Active Directory connection and layout settings.
type Config struct {
	// Host is the domain controller hostname or IP address.
	Host string `validate:"required"`
	// Port is the LDAP port; 0 selects 636 with UseSSL and 389 otherwise.
	Port int
	// UseSSL enables LDAPS.
	UseSSL bool
	// UseTLS enables StartTLS on a plain connection.
	UseTLS bool
	// SkipVerify skips TLS certificate verification (insecure, for testing only).
	SkipVerify bool
	// Domain is the NetBIOS domain used to build DOMAIN\user bind names. Empty binds with BindUser as is.
	Domain string
	// BindUser is the service account.
	BindUser string `validate:"required"`
	// BindPassword is the service account password.
	BindPassword string `validate:"required"`
	// BaseDN is the directory root, e.g. "DC=corp,DC=local".
	BaseDN string `validate:"required"`
	// UserSearchBase limits account lookups for unlock, disable and reset. Defaults to BaseDN.
	UserSearchBase string
	// GroupSearchBase limits group lookups. Defaults to BaseDN.
	GroupSearchBase string
	// DisabledOU receives disabled accounts, relative to BaseDN.
	DisabledOU string
	// MailDomain is the userPrincipalName suffix of created accounts.
	MailDomain string
	// TempPassword is set on created accounts; a change is forced at first logon.
	TempPassword string
	// VPNAccessGroup is the group cn managed by the vpn commands.
	VPNAccessGroup string
	// UserKinds lists the account kinds available to CreateUser and ListUsersByOU.
	UserKinds []UserKind `validate:"dive"`
	// Timeout is the per request timeout in seconds.
	Timeout int
	// ChunkSize is the number of member DNs resolved per search.
	ChunkSize int
}

const (
	defaultTimeout   = 10
	defaultChunkSize = 100
	portLDAP         = 389
	portLDAPS        = 636
)

// withDefaults returns a copy of cfg with unset values filled in.
func (cfg Config) withDefaults() Config {
	if cfg.Port == 0 {
		cfg.Port = portLDAP
		if cfg.UseSSL {
			cfg.Port = portLDAPS
		}
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}

	if cfg.UserSearchBase == "" {
		cfg.UserSearchBase = cfg.BaseDN
	}

	if cfg.GroupSearchBase == "" {
		cfg.GroupSearchBase = cfg.BaseDN
	}

	return cfg
}

// bindName returns the name used to bind with the service account.
func (cfg Config) bindName() string {
	if cfg.Domain == "" {
		return cfg.BindUser
	}

	return cfg.Domain + `\` + cfg.BindUser
}

// userKind looks up a configured kind by name.
func (cfg Config) userKind(name string) (UserKind, bool) {
	for _, k := range cfg.UserKinds {
		if k.Name == name {
			return k, true
		}
	}

	return UserKind{}, false
}
