package permsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/adopsbot/adopsbot/internal/directory"
	"github.com/adopsbot/adopsbot/internal/permission"
)

// Directory fetches group members with the requested attributes.
type Directory interface {
	FetchGroupMembers(ctx context.Context, groupID string, attributes []string, activeOnly bool) ([]directory.Member, error)
}

// Job periodically recomputes the permission store from directory group membership.
type Job struct {
	cfg     Config
	dir     Directory
	store   *permission.Store
	metrics *Metrics

	mu sync.Mutex // one cycle at a time
}

// New creates a sync job publishing into store. metrics may be nil.
func New(cfg Config, dir Directory, store *permission.Store, metrics *Metrics) *Job {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Job{
		cfg:     cfg.withDefaults(),
		dir:     dir,
		store:   store,
		metrics: metrics,
	}
}

// grant is the contribution of one member.
type grant struct {
	identity permission.Identity
	login    string
}

// groupOutcome is the result of querying one group.
type groupOutcome struct {
	grants []grant
	err    error
}

// SyncNow runs one cycle and returns the number of identities published.
//
// A cycle in which some groups failed still publishes and returns a nil error.
// If every group failed, ErrAllGroupsFailed is returned; with PolicyClear an empty
// store was published, with PolicyKeep the store is unchanged. If ctx is cancelled
// during the cycle nothing is published.
func (j *Job) SyncNow(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	defer func() { j.metrics.duration.Observe(time.Since(start).Seconds()) }()

	log.Info().Int("groups", len(j.cfg.Groups)).Msg("starting directory permissions sync")

	outcomes := j.queryGroups(ctx)

	if err := ctx.Err(); err != nil {
		j.metrics.cycles.WithLabelValues(resultCancelled).Inc()
		return 0, fmt.Errorf("permission sync cancelled: %w", err)
	}

	aggregated := make(map[permission.Identity]permission.Record)
	order := make([]permission.Identity, 0)
	failed := 0

	for i, mapping := range j.cfg.Groups {
		outcome := outcomes[i]
		if outcome.err != nil {
			failed++

			j.metrics.groupFailures.WithLabelValues(mapping.Group).Inc()
			log.Warn().Err(outcome.err).Str("group", mapping.Group).Msg("failed to process group, skipping")

			continue
		}

		for _, g := range outcome.grants {
			rec, seen := aggregated[g.identity]
			if !seen {
				rec.Identity = g.identity
				order = append(order, g.identity)
			}

			rec.Capabilities = rec.Capabilities.Union(mapping.Capabilities)
			if g.login != "" {
				rec.Login = g.login
			}

			aggregated[g.identity] = rec
		}
	}

	if len(j.cfg.Groups) > 0 && failed == len(j.cfg.Groups) {
		j.metrics.cycles.WithLabelValues(resultFailed).Inc()

		if j.cfg.OnTotalFailure == PolicyKeep {
			log.Error().Int("groups", failed).Int("kept_identities", j.store.Len()).
				Msg("every group failed, keeping previous permissions")

			return j.store.Len(), fmt.Errorf("permission sync: %w", ErrAllGroupsFailed)
		}

		j.store.ReplaceAll(nil)
		j.metrics.identities.Set(0)

		log.Error().Int("groups", failed).Msg("every group failed, all permissions revoked")

		return 0, fmt.Errorf("permission sync: %w", ErrAllGroupsFailed)
	}

	records := make([]permission.Record, 0, len(order))
	for _, id := range order {
		records = append(records, aggregated[id])
	}

	j.store.ReplaceAll(records)

	j.metrics.identities.Set(float64(len(records)))
	j.metrics.lastSuccess.SetToCurrentTime()

	if failed > 0 {
		j.metrics.cycles.WithLabelValues(resultPartial).Inc()
	} else {
		j.metrics.cycles.WithLabelValues(resultSuccess).Inc()
	}

	log.Info().
		Int("identities", len(records)).
		Int("failed_groups", failed).
		Dur("took", time.Since(start)).
		Msg("permissions synced")

	return len(records), nil
}

// queryGroups returns one outcome per configured group, in configured order.
func (j *Job) queryGroups(ctx context.Context) []groupOutcome {
	outcomes := make([]groupOutcome, len(j.cfg.Groups))

	if !j.cfg.Parallel {
		for i, mapping := range j.cfg.Groups {
			outcomes[i] = j.queryGroup(ctx, mapping.Group)
		}

		return outcomes
	}

	var g errgroup.Group

	g.SetLimit(j.cfg.MaxParallel)

	for i, mapping := range j.cfg.Groups {
		g.Go(func() error {
			outcomes[i] = j.queryGroup(ctx, mapping.Group)
			return nil
		})
	}

	_ = g.Wait() // group errors are kept per outcome

	return outcomes
}

// queryGroup fetches the members of one group and extracts their identities.
func (j *Job) queryGroup(ctx context.Context, group string) groupOutcome {
	members, err := j.dir.FetchGroupMembers(
		ctx,
		group,
		[]string{j.cfg.IdentityAttribute, j.cfg.LoginAttribute},
		j.cfg.ActiveOnly,
	)
	if err != nil {
		return groupOutcome{err: &GroupQueryError{Group: group, Err: err}}
	}

	grants := make([]grant, 0, len(members))

	for _, m := range members {
		login, _ := m.Attribute(j.cfg.LoginAttribute)

		raw, ok := m.Attribute(j.cfg.IdentityAttribute)
		if !ok {
			j.metrics.skippedMembers.WithLabelValues(reasonMissingIdentity).Inc()
			log.Debug().Str("group", group).Str("login", login).Msg("skipped member without identity")

			continue
		}

		id, errParse := permission.ParseIdentity(raw)
		if errParse != nil {
			j.metrics.skippedMembers.WithLabelValues(reasonInvalidIdentity).Inc()
			log.Warn().Err(errParse).Str("group", group).Str("login", login).Msg("invalid identity, skipping member")

			continue
		}

		log.Debug().Str("group", group).Str("login", login).Int64("identity", int64(id)).Msg("member synced")

		grants = append(grants, grant{identity: id, login: login})
	}

	return groupOutcome{grants: grants}
}

// Run performs a cycle after FirstRunDelay and then every Interval until ctx is done.
// Cycle errors are logged, never returned.
func (j *Job) Run(ctx context.Context) {
	log.Info().
		Dur("interval", j.cfg.Interval).
		Dur("first_run_delay", j.cfg.FirstRunDelay).
		Msg("permission sync scheduler started")

	timer := time.NewTimer(j.cfg.FirstRunDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		log.Info().Msg("permission sync scheduler stopped")
		return
	case <-timer.C:
	}

	j.runCycle(ctx)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("permission sync scheduler stopped")
			return
		case <-ticker.C:
			j.runCycle(ctx)
		}
	}
}

func (j *Job) runCycle(ctx context.Context) {
	if _, err := j.SyncNow(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}

		log.Error().Err(err).Msg("permission sync cycle failed")
	}
}
