package config

import (
	"fmt"
	"time"

	"github.com/adopsbot/adopsbot/internal/permission"
	"github.com/adopsbot/adopsbot/internal/permsync"
)

// SyncConfig converts the permission settings into the sync job configuration.
// It fails with permission.ErrUnknownCapability on an unknown capability name.
func (p Permissions) SyncConfig() (permsync.Config, error) {
	groups := make([]permsync.GroupMapping, 0, len(p.Groups))

	for _, g := range p.Groups {
		caps, err := permission.ParseCapabilities(g.Capabilities)
		if err != nil {
			return permsync.Config{}, fmt.Errorf("permissions group %q: %w", g.Group, err)
		}

		groups = append(groups, permsync.GroupMapping{Group: g.Group, Capabilities: caps})
	}

	return permsync.Config{
		Groups:            groups,
		ActiveOnly:        p.ActiveOnly,
		Interval:          time.Duration(p.SyncIntervalSeconds) * time.Second,
		FirstRunDelay:     time.Duration(p.FirstRunDelaySeconds) * time.Second,
		IdentityAttribute: p.IdentityAttribute,
		LoginAttribute:    p.LoginAttribute,
		Parallel:          p.Parallel,
		MaxParallel:       p.MaxParallel,
		OnTotalFailure:    permsync.FailurePolicy(p.OnTotalFailure),
	}, nil
}
