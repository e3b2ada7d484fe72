// Package listeners reconciles guild state with the configured settings as
// gateway events arrive.
package listeners

import (
	"context"
	"log/slog"

	"github.com/glotchimo/keeper/internal/cache"
	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/router"
)

// LinkStore resolves voice channels to the text channels linked to them.
type LinkStore interface {
	TextChannelsLinkedTo(ctx context.Context, guildID, voiceChannelID string) ([]string, error)
}

// ConfigReader reads settings that are not worth caching.
type ConfigReader interface {
	GetGuildConfig(ctx context.Context, guildID string) (models.GuildConfig, error)
}

type Dependencies struct {
	Logger   *slog.Logger
	Cache    *cache.Cache
	Platform platform.Client
	Links    LinkStore
	Configs  ConfigReader
}

// Register subscribes every listener to the router. The nickname listener is
// returned so bulk cleanups can share its rules.
func Register(r *router.Router, dep Dependencies) *Nicknames {
	nicknames := NewNicknames(dep.Logger, dep.Cache, dep.Platform)
	autoRole := NewAutoRole(dep.Logger, dep.Cache, dep.Platform)

	r.Register(router.KindMemberAdd, nicknames)
	r.Register(router.KindMemberAdd, autoRole)
	r.Register(router.KindMemberUpdate, nicknames)
	r.Register(router.KindMemberUpdate, autoRole)
	r.Register(router.KindMemberRemove, nicknames)
	r.Register(router.KindVoiceStateUpdate, NewVoiceLinks(dep.Logger, dep.Links, dep.Platform))
	r.Register(router.KindMessageCreate, NewPrefixReply(dep.Cache, dep.Platform))
	r.Register(router.KindMessageCreate, NewMessageLinks(dep.Logger, dep.Configs, dep.Platform))

	return nicknames
}
