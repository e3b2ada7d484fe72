package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/glotchimo/keeper/internal/models"
	rp "github.com/glotchimo/keeper/internal/response"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

const maxEmbedFields = 25

type VoiceLink struct{}

func (v *VoiceLink) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:                     "voicelink",
		Description:              "Link text channels to voice channels",
		DefaultMemberPermissions: &manageRoles,
		DMPermission:             &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Show a text channel to members while they are in a voice channel",
				Options: []*dg.ApplicationCommandOption{
					{
						Type:         dg.ApplicationCommandOptionChannel,
						Name:         "text",
						Description:  "Text channel to show",
						ChannelTypes: []dg.ChannelType{dg.ChannelTypeGuildText},
						Required:     true,
					},
					{
						Type:         dg.ApplicationCommandOptionChannel,
						Name:         "voice",
						Description:  "Voice channel that grants access",
						ChannelTypes: []dg.ChannelType{dg.ChannelTypeGuildVoice, dg.ChannelTypeGuildStageVoice},
						Required:     true,
					},
				},
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove every link involving a channel",
				Options: []*dg.ApplicationCommandOption{
					{
						Type:         dg.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Text or voice channel",
						ChannelTypes: []dg.ChannelType{dg.ChannelTypeGuildText, dg.ChannelTypeGuildVoice, dg.ChannelTypeGuildStageVoice},
						Required:     true,
					},
				},
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List the links in this server",
			},
		},
	}
}

func (v *VoiceLink) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	sub, opts := dep.Subcommand()
	switch sub {
	case "add":
		return v.add(ctx, dep, opts["text"].Value.(string), opts["voice"].Value.(string))
	case "remove":
		return v.remove(ctx, dep, opts["channel"].Value.(string))
	case "list":
		return v.list(ctx, dep)
	}

	return dep.Responder.Fail(dep.Interaction, utils.Failure{
		Type:    utils.ErrNotFound,
		Message: "Unknown subcommand",
	})
}

func (v *VoiceLink) add(ctx context.Context, dep handlers.Dependencies, textID, voiceID string) error {
	guildID := dep.Interaction.GuildID
	if err := dep.Database.AddVoiceLink(ctx, models.VoiceLink{GuildID: guildID, TextChannelID: textID, VoiceChannelID: voiceID}); err != nil {
		return errutil.With(err)
	}

	self := dep.Platform.Self()
	perms, err := dep.Session.UserChannelPermissions(self, textID, dg.WithContext(ctx))
	if err != nil {
		return errutil.With(err)
	}
	if perms&dg.PermissionViewChannel == 0 || perms&dg.PermissionManageRoles == 0 {
		return dep.Responder.Notice(dep.Interaction, "Missing permissions", fmt.Sprintf("I cannot manage roles in %s.", utils.FormatChannelMention(textID)), false)
	}

	if err := patchView(ctx, dep.Session, textID, self, dg.PermissionOverwriteTypeMember, true); err != nil {
		return errutil.With(err)
	}
	if err := patchView(ctx, dep.Session, textID, guildID, dg.PermissionOverwriteTypeRole, false); err != nil {
		return errutil.With(err)
	}

	voiceName := voiceID
	if name, err := dep.Platform.ChannelName(ctx, voiceID); err == nil {
		voiceName = name
	}

	return dep.Responder.Notice(dep.Interaction, "Voice link created", fmt.Sprintf("Members who connect to %s will now get access to %s.", utils.WrapInCode(voiceName), utils.FormatChannelMention(textID)), false)
}

func (v *VoiceLink) remove(ctx context.Context, dep handlers.Dependencies, channelID string) error {
	n, err := dep.Database.DeleteVoiceLinks(ctx, dep.Interaction.GuildID, channelID)
	if err != nil {
		return errutil.With(err)
	}
	if n == 0 {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotFound,
			Message: fmt.Sprintf("%s is not linked to anything.", utils.FormatChannelMention(channelID)),
		})
	}

	return dep.Responder.Notice(dep.Interaction, "Voice link deleted", fmt.Sprintf("Removed %s involving %s.", utils.Plural(int(n), "link", "links"), utils.FormatChannelMention(channelID)), false)
}

func (v *VoiceLink) list(ctx context.Context, dep handlers.Dependencies) error {
	links, err := dep.Database.VoiceLinks(ctx, dep.Interaction.GuildID)
	if err != nil {
		return errutil.With(err)
	}
	if len(links) == 0 {
		return dep.Responder.Notice(dep.Interaction, "Voice links", "There are no voice links in this server.", false)
	}

	embed := &dg.MessageEmbed{Title: "Voice links"}
	for _, group := range groupLinks(links) {
		if len(embed.Fields) == maxEmbedFields {
			embed.Footer = &dg.MessageEmbedFooter{Text: "Some links were left out."}
			break
		}

		name := group.voiceID
		if n, err := dep.Platform.ChannelName(ctx, group.voiceID); err == nil {
			name = n
		}

		var mentions []string
		for _, l := range group.links {
			mentions = append(mentions, fmt.Sprintf("%s (linked %s)", utils.FormatChannelMention(l.TextChannelID), utils.FormatTimestamp(l.Created, utils.TimestampRelative)))
		}
		embed.Fields = append(embed.Fields, &dg.MessageEmbedField{Name: name, Value: strings.Join(mentions, "\n")})
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{embed}})
}

type linkGroup struct {
	voiceID string
	links   []models.VoiceLink
}

// groupLinks groups links by voice channel, keeping first-seen order.
func groupLinks(links []models.VoiceLink) []linkGroup {
	var groups []linkGroup
	for _, l := range links {
		i := slices.IndexFunc(groups, func(g linkGroup) bool { return g.voiceID == l.VoiceChannelID })
		if i < 0 {
			groups = append(groups, linkGroup{voiceID: l.VoiceChannelID})
			i = len(groups) - 1
		}
		groups[i].links = append(groups[i].links, l)
	}
	return groups
}

// patchView flips only the view bit of an overwrite, keeping the rest.
func patchView(ctx context.Context, s *dg.Session, channelID, targetID string, kind dg.PermissionOverwriteType, allow bool) error {
	ch, err := s.Channel(channelID, dg.WithContext(ctx))
	if err != nil {
		return errutil.With(err)
	}

	var allowed, denied int64
	for _, o := range ch.PermissionOverwrites {
		if o.ID == targetID && o.Type == kind {
			allowed, denied = o.Allow, o.Deny
		}
	}

	if allow {
		allowed |= dg.PermissionViewChannel
		denied &^= dg.PermissionViewChannel
	} else {
		denied |= dg.PermissionViewChannel
		allowed &^= dg.PermissionViewChannel
	}

	if err := s.ChannelPermissionSet(channelID, targetID, kind, allowed, denied, dg.WithContext(ctx)); err != nil {
		return errutil.With(err)
	}

	return nil
}
