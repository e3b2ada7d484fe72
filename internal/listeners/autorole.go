package listeners

import (
	"context"
	"log/slog"

	"github.com/glotchimo/keeper/internal/cache"
	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/graxinc/errutil"
)

// AutoRole grants the configured role to members once they have passed
// membership screening.
type AutoRole struct {
	l *slog.Logger
	c *cache.Cache
	p platform.Client
}

func NewAutoRole(l *slog.Logger, c *cache.Cache, p platform.Client) *AutoRole {
	return &AutoRole{l: l, c: c, p: p}
}

func (a *AutoRole) Handle(ctx context.Context, e router.Event) error {
	if e.Member == nil || e.Member.Bot || e.Member.Pending {
		return nil
	}
	// Updates only matter when the member just cleared screening.
	if e.Kind == router.KindMemberUpdate && e.Before != nil && !e.Before.Pending {
		return nil
	}

	roleID, err := a.c.AutoRole(ctx, e.GuildID)
	if err != nil {
		return errutil.With(err)
	}
	if roleID == "" || e.Member.HasRole(roleID) {
		return nil
	}

	h, err := platform.LoadHierarchy(ctx, a.p, e.GuildID)
	if platform.Ignorable(err) {
		return nil
	} else if err != nil {
		return errutil.With(err)
	}

	role, ok := h.Guild.Role(roleID)
	if !ok {
		a.l.Info("clearing deleted auto-role", "guild", e.GuildID, "role", roleID)
		if err := a.c.SetAutoRole(ctx, e.GuildID, ""); err != nil {
			return errutil.With(err)
		}
		return nil
	}
	if h.BotTop <= role.Position {
		return nil
	}

	member, err := a.p.Member(ctx, e.GuildID, e.Member.ID)
	if platform.Ignorable(err) {
		return nil
	} else if err != nil {
		return errutil.With(err)
	}
	if member.Bot || member.Pending || member.HasRole(roleID) {
		return nil
	}

	if err := a.p.AddRole(ctx, e.GuildID, member.ID, roleID); platform.Ignorable(err) {
		return nil
	} else if err != nil {
		return errutil.With(err)
	}

	return nil
}
