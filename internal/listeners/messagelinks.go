package listeners

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

const maxEmbeddedMessages = 3

var messageLinkPattern = regexp.MustCompile(`^<?https?://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/channels/(\d{15,21})/(\d{15,21})/(\d{15,21})/?>?$`)

type MessageLink struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// ParseMessageLink reads a message jump link. Links wrapped in angle brackets
// to suppress the platform's own preview are accepted too.
func ParseMessageLink(token string) (MessageLink, bool) {
	m := messageLinkPattern.FindStringSubmatch(token)
	if m == nil {
		return MessageLink{}, false
	}
	return MessageLink{GuildID: m[1], ChannelID: m[2], MessageID: m[3]}, true
}

// MessageLinks replies to messages containing jump links with a preview of
// each linked message the author is allowed to read.
type MessageLinks struct {
	l       *slog.Logger
	configs ConfigReader
	p       platform.Client
}

func NewMessageLinks(l *slog.Logger, configs ConfigReader, p platform.Client) *MessageLinks {
	return &MessageLinks{l: l, configs: configs, p: p}
}

func (ml *MessageLinks) Handle(ctx context.Context, e router.Event) error {
	msg := e.Message
	if msg == nil || msg.GuildID == "" || msg.Author.Bot {
		return nil
	}

	var links []MessageLink
	for _, token := range strings.Fields(msg.Content) {
		if link, ok := ParseMessageLink(token); ok {
			links = append(links, link)
		}
	}
	if len(links) == 0 {
		return nil
	}

	g, err := ml.configs.GetGuildConfig(ctx, msg.GuildID)
	if err != nil {
		return errutil.With(err)
	}
	if !g.EmbedMessages {
		return nil
	}

	var embeds []platform.Embed
	for _, link := range links {
		embed, ok := ml.resolve(ctx, msg, link)
		if ok {
			embeds = append(embeds, embed)
		}
	}
	if len(embeds) == 0 {
		return nil
	}

	var content string
	if extra := len(embeds) - maxEmbeddedMessages; extra > 0 {
		embeds = embeds[:maxEmbeddedMessages]
		content = abortedNotice(extra)
	}

	if err := ml.p.Reply(ctx, msg.ChannelID, msg.ID, content, embeds...); err != nil && !platform.Ignorable(err) {
		return errutil.With(err)
	}

	return nil
}

// resolve builds the preview for a link, or reports false when the link
// points outside the guild, the author cannot read it, or it is gone.
func (ml *MessageLinks) resolve(ctx context.Context, msg *models.Message, link MessageLink) (platform.Embed, bool) {
	if link.GuildID != msg.GuildID {
		return platform.Embed{}, false
	}

	ok, err := ml.p.CanReadHistory(ctx, link.ChannelID, msg.Author.ID)
	if err != nil || !ok {
		return platform.Embed{}, false
	}

	linked, err := ml.p.Message(ctx, link.ChannelID, link.MessageID)
	if err != nil || linked.GuildID != msg.GuildID {
		return platform.Embed{}, false
	}

	channel, err := ml.p.ChannelName(ctx, link.ChannelID)
	if err != nil {
		ml.l.Debug("error getting channel name", "channel", link.ChannelID, "error", err)
		channel = link.ChannelID
	}

	return previewEmbed(linked, channel), true
}

func previewEmbed(m models.Message, channel string) platform.Embed {
	embed := platform.Embed{
		AuthorName:    m.Author.DisplayName(),
		AuthorIconURL: m.AvatarURL,
		Description:   m.Content,
		Footer:        "Sent in #" + channel,
	}
	if !m.Timestamp.IsZero() {
		embed.Timestamp = m.Timestamp.UTC().Format(time.RFC3339)
	}

	if len(m.Attachments) > 0 {
		a := m.Attachments[0]
		if a.Height > 0 && !a.Spoiler() {
			embed.ImageURL = a.URL
		} else {
			embed.Fields = append(embed.Fields, [2]string{"File", fmt.Sprintf("[%s](%s)", utils.EscapeMarkdown(a.Filename), a.URL)})
		}
	}

	return embed
}

func abortedNotice(n int) string {
	return fmt.Sprintf("Aborted embedding %s.", utils.Plural(n, "more message", "more messages"))
}
