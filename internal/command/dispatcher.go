package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adopsbot/adopsbot/internal/audit"
	"github.com/adopsbot/adopsbot/internal/directory"
	"github.com/adopsbot/adopsbot/internal/permission"
)

// DefaultRemoveSecretAfter is how long a reply holding a password stays visible.
const DefaultRemoveSecretAfter = 120 * time.Second

// Directory is the set of account operations used by the commands.
type Directory interface {
	UnlockUser(ctx context.Context, login string) (string, error)
	DisableUser(ctx context.Context, login string) (directory.DisableResult, error)
	ResetPassword(ctx context.Context, login string) (directory.PasswordResult, error)
	AddToGroup(ctx context.Context, login, group string) (directory.GroupResult, error)
	RemoveFromGroup(ctx context.Context, login, group string) (directory.GroupResult, error)
	CreateUser(ctx context.Context, kind, login, displayName string) (directory.CreateResult, error)
	LAPSPassword(ctx context.Context, computer string) (directory.LAPSResult, error)
	ListUsersByOU(ctx context.Context) ([]directory.OUUsers, error)
}

// Syncer runs one permission sync cycle.
type Syncer interface {
	SyncNow(ctx context.Context) (int, error)
}

// Config configures a Dispatcher.
type Config struct {
	// VPNGroup is the group managed by vpnenable and vpndisable.
	VPNGroup string
	// UserKinds are offered in the newuser usage text.
	UserKinds []string
	// LAPSAdminName is the local administrator account shown with a LAPS password.
	LAPSAdminName string
	// RemoveSecretAfter is set as ExpireAfter on replies holding a password.
	RemoveSecretAfter time.Duration
}

// Dispatcher parses messages and runs the matching command.
type Dispatcher struct {
	cfg      Config
	store    *permission.Store
	checker  *permission.Checker
	dir      Directory
	syncer   Syncer
	audit    audit.Sink
	commands map[string]*command
}

// request is one parsed invocation.
type request struct {
	identity permission.Identity
	args     []string
}

// result is what a handler reports back to the dispatcher.
type result struct {
	reply    Reply
	target   string
	err      error
	metadata map[string]string
}

type handler func(ctx context.Context, req request) result

// command describes one chat command.
type command struct {
	name string
	// capability required to run the command; zero means everyone may run it.
	capability permission.Capability
	usage      string
	summary    string
	minArgs    int
	// maxArgs of -1 accepts any number of trailing arguments.
	maxArgs int
	run     handler
}

// New creates a dispatcher. sink may be nil.
func New(cfg Config, store *permission.Store, dir Directory, syncer Syncer, sink audit.Sink) *Dispatcher {
	if cfg.RemoveSecretAfter <= 0 {
		cfg.RemoveSecretAfter = DefaultRemoveSecretAfter
	}

	if cfg.LAPSAdminName == "" {
		cfg.LAPSAdminName = "Administrator"
	}

	if sink == nil {
		sink = audit.Discard
	}

	d := &Dispatcher{
		cfg:     cfg,
		store:   store,
		checker: permission.NewChecker(store),
		dir:     dir,
		syncer:  syncer,
		audit:   sink,
	}

	d.commands = d.register()

	return d
}

// Dispatch handles one message sent by identity.
func (d *Dispatcher) Dispatch(ctx context.Context, identity permission.Identity, text string) Reply {
	name, args, ok := parse(text)
	if !ok {
		return Reply{Text: fmt.Sprintf("Unknown command. Your ID: %d", identity)}
	}

	cmd, found := d.commands[name]
	if !found {
		return Reply{Text: fmt.Sprintf("Unknown command. Your ID: %d", identity)}
	}

	req := request{identity: identity, args: args}

	if cmd.capability.Valid() && !d.checker.Check(identity, cmd.capability) {
		log.Warn().
			Str("command", cmd.name).
			Int64("identity", int64(identity)).
			Stringer("capability", cmd.capability).
			Msg("command denied")

		d.record(cmd, req, result{}, audit.OutcomeDenied)

		return Reply{Text: fmt.Sprintf("Insufficient privileges. Your ID: %d", identity)}
	}

	if len(args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(args) > cmd.maxArgs) {
		res := result{err: ErrUsage}
		d.record(cmd, req, res, audit.OutcomeError)

		return Reply{Text: "Invalid format. Usage: " + cmd.usage}
	}

	res := cmd.run(ctx, req)

	outcome := audit.OutcomeSuccess
	if res.err != nil {
		outcome = audit.OutcomeError

		log.Error().Err(res.err).
			Str("command", cmd.name).
			Int64("identity", int64(identity)).
			Str("target", res.target).
			Msg("command failed")
	}

	d.record(cmd, req, res, outcome)

	return res.reply
}

func (d *Dispatcher) record(cmd *command, req request, res result, outcome audit.Outcome) {
	d.audit.Record(audit.Event{
		Action:   cmd.name,
		Identity: req.identity,
		Login:    d.store.Get(req.identity).Login,
		Outcome:  outcome,
		Target:   res.target,
		Err:      res.err,
		Metadata: res.metadata,
	})
}

// parse splits "/name@bot arg1 arg2" into the lower-cased name and its arguments.
func parse(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	if name == "" {
		return "", nil, false
	}

	return strings.ToLower(name), fields[1:], true
}

// Commands returns the usage lines of the commands identity may run, sorted by name.
func (d *Dispatcher) Commands(identity permission.Identity) []string {
	var lines []string

	for _, cmd := range d.commands {
		if cmd.capability.Valid() && !d.checker.Check(identity, cmd.capability) {
			continue
		}

		lines = append(lines, cmd.usage+" - "+cmd.summary)
	}

	sort.Strings(lines)

	return lines
}
