package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/models"
	"github.com/graxinc/errutil"
)

const membersPageSize = 1000

// Discord implements Client on a gateway session. Member and channel reads
// go to the REST API so listeners act on current state rather than on a
// possibly stale gateway cache.
type Discord struct {
	s *dg.Session
}

func NewDiscord(s *dg.Session) *Discord {
	return &Discord{s: s}
}

func (d *Discord) Self() string {
	if d.s.State == nil || d.s.State.User == nil {
		return ""
	}
	return d.s.State.User.ID
}

func (d *Discord) Guild(ctx context.Context, guildID string) (models.Guild, error) {
	if g, err := d.s.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		return models.GuildFromDiscord(g), nil
	}

	g, err := d.s.Guild(guildID, dg.WithContext(ctx))
	if err != nil {
		return models.Guild{}, classify(err)
	}

	return models.GuildFromDiscord(g), nil
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (models.Member, error) {
	m, err := d.s.GuildMember(guildID, userID, dg.WithContext(ctx))
	if err != nil {
		return models.Member{}, classify(err)
	}

	return models.MemberFromDiscord(m), nil
}

func (d *Discord) Members(ctx context.Context, guildID string, fn func(models.Member) bool) error {
	after := ""
	for {
		page, err := d.s.GuildMembers(guildID, after, membersPageSize, dg.WithContext(ctx))
		if err != nil {
			return classify(err)
		}

		for _, m := range page {
			if !fn(models.MemberFromDiscord(m)) {
				return nil
			}
		}

		if len(page) < membersPageSize {
			return nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (d *Discord) EditNickname(ctx context.Context, guildID, userID, nick string) error {
	if err := d.s.GuildMemberNickname(guildID, userID, nick, dg.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

func (d *Discord) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := d.s.GuildMemberRoleAdd(guildID, userID, roleID, dg.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

func (d *Discord) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := d.s.GuildMemberRoleRemove(guildID, userID, roleID, dg.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

func (d *Discord) MemberOverwrite(ctx context.Context, channelID, userID string) (Overwrite, bool, error) {
	ch, err := d.s.Channel(channelID, dg.WithContext(ctx))
	if err != nil {
		return Overwrite{}, false, classify(err)
	}

	for _, o := range ch.PermissionOverwrites {
		if o.Type == dg.PermissionOverwriteTypeMember && o.ID == userID {
			return Overwrite{Allow: o.Allow, Deny: o.Deny}, true, nil
		}
	}

	return Overwrite{}, false, nil
}

func (d *Discord) SetMemberOverwrite(ctx context.Context, channelID, userID string, o Overwrite) error {
	if err := d.s.ChannelPermissionSet(channelID, userID, dg.PermissionOverwriteTypeMember, o.Allow, o.Deny, dg.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

func (d *Discord) DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error {
	if err := d.s.ChannelPermissionDelete(channelID, userID, dg.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

func (d *Discord) CanReadHistory(ctx context.Context, channelID, userID string) (bool, error) {
	perms, err := d.s.UserChannelPermissions(userID, channelID, dg.WithContext(ctx))
	if err != nil {
		return false, classify(err)
	}

	need := int64(dg.PermissionViewChannel | dg.PermissionReadMessageHistory)
	return perms&need == need, nil
}

func (d *Discord) ChannelName(ctx context.Context, channelID string) (string, error) {
	ch, err := d.channel(ctx, channelID)
	if err != nil {
		return "", err
	}
	return ch.Name, nil
}

func (d *Discord) Message(ctx context.Context, channelID, messageID string) (models.Message, error) {
	m, err := d.s.ChannelMessage(channelID, messageID, dg.WithContext(ctx))
	if err != nil {
		return models.Message{}, classify(err)
	}

	msg := models.MessageFromDiscord(m)
	if msg.GuildID == "" {
		ch, err := d.channel(ctx, channelID)
		if err != nil {
			return models.Message{}, err
		}
		msg.GuildID = ch.GuildID
	}

	return msg, nil
}

func (d *Discord) Reply(ctx context.Context, channelID, messageID, content string, embeds ...Embed) error {
	send := &dg.MessageSend{
		Content:         content,
		Reference:       &dg.MessageReference{MessageID: messageID, ChannelID: channelID},
		AllowedMentions: &dg.MessageAllowedMentions{RepliedUser: true},
	}
	for _, e := range embeds {
		send.Embeds = append(send.Embeds, toDiscordEmbed(e))
	}

	if _, err := d.s.ChannelMessageSendComplex(channelID, send, dg.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

func (d *Discord) channel(ctx context.Context, channelID string) (*dg.Channel, error) {
	if ch, err := d.s.State.Channel(channelID); err == nil {
		return ch, nil
	}

	ch, err := d.s.Channel(channelID, dg.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return ch, nil
}

func toDiscordEmbed(e Embed) *dg.MessageEmbed {
	embed := &dg.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
		Timestamp:   e.Timestamp,
	}
	if e.AuthorName != "" {
		embed.Author = &dg.MessageEmbedAuthor{Name: e.AuthorName, IconURL: e.AuthorIconURL}
	}
	if e.Footer != "" {
		embed.Footer = &dg.MessageEmbedFooter{Text: e.Footer}
	}
	if e.ImageURL != "" {
		embed.Image = &dg.MessageEmbedImage{URL: e.ImageURL}
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &dg.MessageEmbedField{Name: f[0], Value: f[1]})
	}
	return embed
}

// classify maps REST failures onto ErrPermissionDenied and ErrNotFound so
// callers can treat them as no-ops.
func classify(err error) error {
	var rest *dg.RESTError
	if !errors.As(err, &rest) {
		return errutil.With(err)
	}

	if rest.Message != nil {
		switch rest.Message.Code {
		case dg.ErrCodeUnknownMember, dg.ErrCodeUnknownRole, dg.ErrCodeUnknownChannel, dg.ErrCodeUnknownMessage, dg.ErrCodeUnknownUser:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case dg.ErrCodeMissingPermissions, dg.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
	}

	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}

	return errutil.With(err)
}
