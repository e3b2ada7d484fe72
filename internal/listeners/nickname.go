package listeners

import (
	"context"
	"log/slog"

	"github.com/glotchimo/keeper/internal/cache"
	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/names"
	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/graxinc/errutil"
)

const maxNicknameLength = 32

type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeSkipped
	OutcomeRenamed
	OutcomeReset
	OutcomeReleased
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRenamed:
		return "renamed"
	case OutcomeReset:
		return "reset"
	case OutcomeReleased:
		return "released"
	}
	return "unchanged"
}

// Nicknames keeps member display names clean. Every nickname the bot sets is
// recorded so that a later change by the member or a moderator can be told
// apart from the bot's own edit.
type Nicknames struct {
	l *slog.Logger
	c *cache.Cache
	p platform.Client
}

func NewNicknames(l *slog.Logger, c *cache.Cache, p platform.Client) *Nicknames {
	return &Nicknames{l: l, c: c, p: p}
}

func (n *Nicknames) Handle(ctx context.Context, e router.Event) error {
	if e.Member == nil {
		return nil
	}

	switch e.Kind {
	case router.KindMemberAdd, router.KindMemberUpdate:
		if e.Member.Bot {
			return nil
		}
		if e.Kind == router.KindMemberUpdate && e.Before != nil && sameNames(*e.Before, *e.Member) {
			return nil
		}

		_, err := n.Reconcile(ctx, e.GuildID, e.Member.ID)
		return err
	case router.KindMemberRemove:
		return n.forget(ctx, e.GuildID, e.Member.ID)
	}

	return nil
}

// Reconcile applies the guild's auto-clean settings to one member, reading
// the member fresh rather than trusting the event payload.
func (n *Nicknames) Reconcile(ctx context.Context, guildID, memberID string) (Outcome, error) {
	flags, err := n.c.AutoClean(ctx, guildID)
	if err != nil {
		return OutcomeUnchanged, errutil.With(err)
	}
	if !flags.Enabled() {
		return OutcomeUnchanged, nil
	}

	records, err := n.c.CleanedNicknames(ctx, guildID)
	if err != nil {
		return OutcomeUnchanged, errutil.With(err)
	}

	member, err := n.p.Member(ctx, guildID, memberID)
	if platform.Ignorable(err) {
		return OutcomeSkipped, nil
	} else if err != nil {
		return OutcomeUnchanged, errutil.With(err)
	}

	h, err := platform.LoadHierarchy(ctx, n.p, guildID)
	if platform.Ignorable(err) {
		return OutcomeSkipped, nil
	} else if err != nil {
		return OutcomeUnchanged, errutil.With(err)
	}

	return n.reconcile(ctx, guildID, member, flags, records, h)
}

// ReconcileAll runs the rules over every member of the guild with the given
// flags, loading the hierarchy and records once.
func (n *Nicknames) ReconcileAll(ctx context.Context, guildID string, flags models.AutoClean) (map[Outcome]int, error) {
	counts := make(map[Outcome]int)
	if !flags.Enabled() {
		return counts, nil
	}

	records, err := n.c.CleanedNicknames(ctx, guildID)
	if err != nil {
		return counts, errutil.With(err)
	}

	h, err := platform.LoadHierarchy(ctx, n.p, guildID)
	if err != nil {
		return counts, errutil.With(err)
	}

	var failure error
	err = n.p.Members(ctx, guildID, func(m models.Member) bool {
		if ctx.Err() != nil {
			failure = ctx.Err()
			return false
		}

		outcome, err := n.reconcile(ctx, guildID, m, flags, records, h)
		if err != nil {
			failure = err
			return false
		}

		counts[outcome]++
		return true
	})
	if err != nil {
		return counts, errutil.With(err)
	}
	if failure != nil {
		return counts, errutil.With(failure)
	}

	return counts, nil
}

func (n *Nicknames) reconcile(ctx context.Context, guildID string, member models.Member, flags models.AutoClean, records map[string]models.CleanedNickname, h platform.Hierarchy) (Outcome, error) {
	if member.Bot || member.ID == h.OwnerID || !h.Outranks(member) {
		return OutcomeSkipped, nil
	}

	rec, managed := records[member.ID]
	if managed && member.Nick == rec.Nickname {
		if !rec.FromBase() {
			// Cleaned from a nickname the member picked, which stays theirs.
			return OutcomeUnchanged, nil
		}

		base := member.BaseName()
		target := clean(base, flags)

		switch {
		case target == base:
			if err := n.p.EditNickname(ctx, guildID, member.ID, ""); platform.Ignorable(err) {
				return OutcomeSkipped, nil
			} else if err != nil {
				return OutcomeUnchanged, errutil.With(err)
			}
			if err := n.c.DeleteCleanedNickname(ctx, guildID, member.ID); err != nil {
				return OutcomeUnchanged, errutil.With(err)
			}
			return OutcomeReset, nil
		case target != member.Nick:
			return n.rename(ctx, guildID, member.ID, target, base)
		}

		return OutcomeUnchanged, nil
	}

	outcome := OutcomeUnchanged
	if managed {
		// The nickname changed under us, so it is no longer ours.
		if err := n.c.DeleteCleanedNickname(ctx, guildID, member.ID); err != nil {
			return OutcomeUnchanged, errutil.With(err)
		}
		outcome = OutcomeReleased
	}

	display := member.DisplayName()
	target := clean(display, flags)
	if target == display {
		return outcome, nil
	}

	base := ""
	if member.Nick == "" {
		base = display
	}
	return n.rename(ctx, guildID, member.ID, target, base)
}

// rename sets the nickname and records it along with the account name it was
// cleaned from, empty when it was cleaned from the member's own nickname.
func (n *Nicknames) rename(ctx context.Context, guildID, memberID, nick, base string) (Outcome, error) {
	if err := n.p.EditNickname(ctx, guildID, memberID, nick); platform.Ignorable(err) {
		return OutcomeSkipped, nil
	} else if err != nil {
		return OutcomeUnchanged, errutil.With(err)
	}

	if err := n.c.PutCleanedNickname(ctx, models.CleanedNickname{GuildID: guildID, MemberID: memberID, Nickname: nick, Base: base}); err != nil {
		return OutcomeUnchanged, errutil.With(err)
	}

	n.l.Debug("cleaned nickname", "guild", guildID, "member", memberID, "nick", nick)
	return OutcomeRenamed, nil
}

func (n *Nicknames) forget(ctx context.Context, guildID, memberID string) error {
	records, err := n.c.CleanedNicknames(ctx, guildID)
	if err != nil {
		return errutil.With(err)
	}
	if _, ok := records[memberID]; !ok {
		return nil
	}

	if err := n.c.DeleteCleanedNickname(ctx, guildID, memberID); err != nil {
		return errutil.With(err)
	}

	return nil
}

func clean(name string, flags models.AutoClean) string {
	cleaned := []rune(names.Clean(name, flags))
	if len(cleaned) > maxNicknameLength {
		cleaned = cleaned[:maxNicknameLength]
	}
	return string(cleaned)
}

func sameNames(a, b models.Member) bool {
	return a.Username == b.Username && a.GlobalName == b.GlobalName && a.Nick == b.Nick
}
