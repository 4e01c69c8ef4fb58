package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adopsbot/adopsbot/internal/permission"
)

const dateLayout = "2006-01-02 15:04"

// register builds the command table.
func (d *Dispatcher) register() map[string]*command {
	kinds := "<kind>"
	if len(d.cfg.UserKinds) > 0 {
		kinds = "<" + strings.Join(d.cfg.UserKinds, "|") + ">"
	}

	cmds := []*command{
		{name: "start", usage: "/start", summary: "show your ID", maxArgs: 0, run: d.whoami},
		{name: "whoami", usage: "/whoami", summary: "show your ID and capabilities", maxArgs: 0, run: d.whoami},
		{name: "help", usage: "/help", summary: "list the commands you may run", maxArgs: 0, run: d.help},
		{
			name: "unlockuser", capability: permission.UnlockUser, usage: "/unlockuser <login>",
			summary: "unlock an account", minArgs: 1, maxArgs: 1, run: d.unlockUser,
		},
		{
			name: "disableuser", capability: permission.BlockUser, usage: "/disableuser <login>",
			summary: "disable an account and move it to the disabled OU", minArgs: 1, maxArgs: 1, run: d.disableUser,
		},
		{
			name: "listusers", capability: permission.ListUsers, usage: "/listusers",
			summary: "list accounts per OU", maxArgs: 0, run: d.listUsers,
		},
		{
			name: "laps", capability: permission.LAPSRead, usage: "/laps <computer>",
			summary: "show the local administrator password of a computer", minArgs: 1, maxArgs: 1, run: d.laps,
		},
		{
			name: "resetpass", capability: permission.ResetPassword, usage: "/resetpass <login>",
			summary: "set a random password", minArgs: 1, maxArgs: 1, run: d.resetPassword,
		},
		{
			name: "vpnenable", capability: permission.VPNEnable, usage: "/vpnenable <login>",
			summary: "grant VPN access", minArgs: 1, maxArgs: 1, run: d.vpn(true),
		},
		{
			name: "vpndisable", capability: permission.VPNDisable, usage: "/vpndisable <login>",
			summary: "revoke VPN access", minArgs: 1, maxArgs: 1, run: d.vpn(false),
		},
		{
			name: "newuser", capability: permission.CreateUser, usage: "/newuser " + kinds + " <login> <display name>",
			summary: "create an account", minArgs: 3, maxArgs: -1, run: d.newUser,
		},
		{
			name: "sync", capability: permission.Admin, usage: "/sync",
			summary: "synchronize permissions from the directory now", maxArgs: 0, run: d.sync,
		},
		{
			name: "grant", capability: permission.Admin, usage: "/grant <identity> <capability>",
			summary: "grant a capability until the next sync", minArgs: 2, maxArgs: 2, run: d.grant,
		},
	}

	out := make(map[string]*command, len(cmds))
	for _, c := range cmds {
		out[c.name] = c
	}

	return out
}

func failed(target string, err error) result {
	return result{
		reply:  Reply{Text: "Error: " + err.Error()},
		target: target,
		err:    err,
	}
}

func (d *Dispatcher) whoami(_ context.Context, req request) result {
	rec := d.store.Get(req.identity)

	var b strings.Builder

	fmt.Fprintf(&b, "Your ID: %d", req.identity)

	if rec.Login != "" {
		fmt.Fprintf(&b, "\nLogin: %s", rec.Login)
	}

	if !rec.Capabilities.IsEmpty() {
		fmt.Fprintf(&b, "\nCapabilities: %s", strings.Join(rec.Capabilities.Strings(), ", "))
	}

	return result{reply: Reply{Text: b.String(), Success: true}}
}

func (d *Dispatcher) help(_ context.Context, req request) result {
	return result{reply: Reply{Text: strings.Join(d.Commands(req.identity), "\n"), Success: true}}
}

func (d *Dispatcher) unlockUser(ctx context.Context, req request) result {
	login := req.args[0]

	dn, err := d.dir.UnlockUser(ctx, login)
	if err != nil {
		return failed(login, err)
	}

	return result{
		reply:    Reply{Text: "Account unlocked.\n" + dn, Success: true},
		target:   login,
		metadata: map[string]string{"dn": dn},
	}
}

func (d *Dispatcher) disableUser(ctx context.Context, req request) result {
	login := req.args[0]

	res, err := d.dir.DisableUser(ctx, login)
	if err != nil {
		return failed(login, err)
	}

	var b strings.Builder

	if res.AlreadyDisabled {
		b.WriteString("Account was already disabled.")
	} else {
		b.WriteString("Account disabled.")
	}

	fmt.Fprintf(&b, "\n%s\nPassword changed: %s\nMoved to disabled OU: %s",
		res.DN, yesNo(res.PasswordChanged), yesNo(res.Moved))

	for _, w := range res.Warnings {
		b.WriteString("\nWarning: " + w)
	}

	return result{
		reply:  Reply{Text: b.String(), Success: true},
		target: login,
		metadata: map[string]string{
			"dn":               res.DN,
			"already_disabled": strconv.FormatBool(res.AlreadyDisabled),
			"password_changed": strconv.FormatBool(res.PasswordChanged),
			"moved":            strconv.FormatBool(res.Moved),
		},
	}
}

func (d *Dispatcher) listUsers(ctx context.Context, _ request) result {
	ous, err := d.dir.ListUsersByOU(ctx)
	if err != nil {
		return failed("", err)
	}

	var (
		b     strings.Builder
		total int
	)

	b.WriteString("Users by organizational unit\n")

	for _, ou := range ous {
		if len(ou.Users) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n%s:\n", ou.Name)

		for i, u := range ou.Users {
			login := u.Login
			if login == "" {
				login = "no login"
			}

			name := u.DisplayName
			if name == "" {
				name = "no name"
			}

			fmt.Fprintf(&b, "%d. %s - %s", i+1, login, name)

			if u.Inactive {
				b.WriteString(" (inactive)")
			}

			b.WriteString("\n")

			total++
		}
	}

	return result{
		reply:    Reply{Text: strings.TrimRight(b.String(), "\n"), Success: true},
		metadata: map[string]string{"users": strconv.Itoa(total)},
	}
}

func (d *Dispatcher) laps(ctx context.Context, req request) result {
	computer := req.args[0]

	res, err := d.dir.LAPSPassword(ctx, computer)
	if err != nil {
		return failed(computer, err)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s\nLogin: %s\\%s\nPassword: %s\nExpires: %s",
		res.Computer, res.Computer, d.cfg.LAPSAdminName, res.Password, res.Expires.Format(dateLayout))

	if res.Expired {
		b.WriteString(" (expired)")
	} else {
		fmt.Fprintf(&b, " (%d days left)", res.DaysLeft)
	}

	if res.OperatingSystem != "" {
		fmt.Fprintf(&b, "\nOS: %s", res.OperatingSystem)
	}

	if !res.LastLogon.IsZero() {
		fmt.Fprintf(&b, "\nLast logon: %s", res.LastLogon.Format(dateLayout))
	}

	d.appendExpiry(&b)

	return result{
		reply:    Reply{Text: b.String(), Success: true, ExpireAfter: d.cfg.RemoveSecretAfter},
		target:   computer,
		metadata: map[string]string{"dn": res.DN},
	}
}

func (d *Dispatcher) resetPassword(ctx context.Context, req request) result {
	login := req.args[0]

	res, err := d.dir.ResetPassword(ctx, login)
	if err != nil {
		return failed(login, err)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Password for '%s' was reset.\nNew password: %s", login, res.Password)
	d.appendExpiry(&b)

	return result{
		reply:    Reply{Text: b.String(), Success: true, ExpireAfter: d.cfg.RemoveSecretAfter},
		target:   login,
		metadata: map[string]string{"dn": res.DN},
	}
}

func (d *Dispatcher) vpn(enable bool) handler {
	return func(ctx context.Context, req request) result {
		login := req.args[0]

		if d.cfg.VPNGroup == "" {
			return failed(login, ErrVPNGroupNotSet)
		}

		op, done, unchanged := d.dir.RemoveFromGroup, "VPN access revoked.", "VPN access was not granted."
		if enable {
			op, done, unchanged = d.dir.AddToGroup, "VPN access granted.", "VPN access was already granted."
		}

		res, err := op(ctx, login, d.cfg.VPNGroup)
		if err != nil {
			return failed(login, err)
		}

		text := done
		if !res.Changed {
			text = unchanged
		}

		return result{
			reply:  Reply{Text: text + "\n" + res.UserDN, Success: true},
			target: login,
			metadata: map[string]string{
				"group":   res.GroupDN,
				"changed": strconv.FormatBool(res.Changed),
			},
		}
	}
}

func (d *Dispatcher) newUser(ctx context.Context, req request) result {
	kind, login := req.args[0], req.args[1]
	displayName := strings.Join(req.args[2:], " ")

	res, err := d.dir.CreateUser(ctx, kind, login, displayName)
	if err != nil {
		return failed(login, err)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Account created.\n%s\nLogin: %s\nTemporary password: %s", res.DN, res.Login, res.TempPassword)

	if len(res.Groups) > 0 {
		fmt.Fprintf(&b, "\nGroups: %s", strings.Join(res.Groups, ", "))
	}

	for _, w := range res.Warnings {
		b.WriteString("\nWarning: " + w)
	}

	d.appendExpiry(&b)

	return result{
		reply:  Reply{Text: b.String(), Success: true, ExpireAfter: d.cfg.RemoveSecretAfter},
		target: login,
		metadata: map[string]string{
			"dn":     res.DN,
			"kind":   kind,
			"groups": strings.Join(res.Groups, ","),
		},
	}
}

func (d *Dispatcher) sync(ctx context.Context, _ request) result {
	n, err := d.syncer.SyncNow(ctx)
	if err != nil {
		return failed("", err)
	}

	return result{
		reply:    Reply{Text: fmt.Sprintf("Permissions synchronized: %d identities.", n), Success: true},
		metadata: map[string]string{"identities": strconv.Itoa(n)},
	}
}

func (d *Dispatcher) grant(_ context.Context, req request) result {
	id, err := permission.ParseIdentity(req.args[0])
	if err != nil {
		return failed(req.args[0], err)
	}

	c, err := permission.ParseCapability(req.args[1])
	if err != nil {
		return failed(req.args[0], err)
	}

	d.store.Merge(id, permission.NewCapabilitySet(c))

	return result{
		reply: Reply{
			Text:    fmt.Sprintf("Granted %s to %d until the next synchronization.", c, id),
			Success: true,
		},
		target:   id.String(),
		metadata: map[string]string{"capability": c.String()},
	}
}

func (d *Dispatcher) appendExpiry(b *strings.Builder) {
	fmt.Fprintf(b, "\nThis message will be removed in %d seconds.", int(d.cfg.RemoveSecretAfter/time.Second))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}
