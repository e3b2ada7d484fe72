package listeners

import (
	"context"
	"fmt"
	"strings"

	"github.com/glotchimo/keeper/internal/cache"
	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

// PrefixReply answers a message that only mentions the bot with the guild's
// command prefix.
type PrefixReply struct {
	c *cache.Cache
	p platform.Client
}

func NewPrefixReply(c *cache.Cache, p platform.Client) *PrefixReply {
	return &PrefixReply{c: c, p: p}
}

func (pr *PrefixReply) Handle(ctx context.Context, e router.Event) error {
	msg := e.Message
	if msg == nil || msg.GuildID == "" || msg.Author.Bot {
		return nil
	}

	self := pr.p.Self()
	content := strings.TrimSpace(msg.Content)
	if self == "" || (content != "<@"+self+">" && content != "<@!"+self+">") {
		return nil
	}

	prefix, err := pr.c.Prefix(ctx, msg.GuildID)
	if err != nil {
		return errutil.With(err)
	}

	embed := platform.Embed{
		Title:       "Prefix",
		Description: fmt.Sprintf("My prefix is %s.", utils.WrapInCode(prefix)),
	}
	if err := pr.p.Reply(ctx, msg.ChannelID, msg.ID, "", embed); err != nil && !platform.Ignorable(err) {
		return errutil.With(err)
	}

	return nil
}
