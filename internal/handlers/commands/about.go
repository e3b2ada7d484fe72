package commands

import (
	"context"
	"fmt"
	"net/url"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	rp "github.com/glotchimo/keeper/internal/response"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

const aboutDescription = "Keeps member nicknames and roles in order."

// invitePermissions covers every command and listener the bot runs.
const invitePermissions int64 = dg.PermissionViewChannel |
	dg.PermissionSendMessages |
	dg.PermissionEmbedLinks |
	dg.PermissionReadMessageHistory |
	dg.PermissionManageRoles |
	dg.PermissionManageNicknames |
	dg.PermissionManageEmojis |
	dg.PermissionManageGuild

func inviteURL(appID string) string {
	v := url.Values{}
	v.Set("client_id", appID)
	v.Set("permissions", fmt.Sprint(invitePermissions))
	v.Set("scope", "bot applications.commands")
	return "https://discord.com/api/oauth2/authorize?" + v.Encode()
}

type About struct{}

func (a *About) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "about",
		Description: "Show information about the bot",
	}
}

func (a *About) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	app, err := dep.Session.Application("@me", dg.WithContext(ctx))
	if err != nil {
		return errutil.With(err)
	}

	embed := &dg.MessageEmbed{
		Title:       "About",
		Description: aboutDescription,
		Fields: []*dg.MessageEmbedField{
			{Name: "Invite Link", Value: inviteURL(app.ID)},
		},
		Footer: &dg.MessageEmbedFooter{Text: "Version " + utils.Version()},
	}
	if app.Owner != nil {
		embed.Fields = append(embed.Fields, &dg.MessageEmbedField{
			Name:  "Bot Owner",
			Value: fmt.Sprintf("[%s](https://discord.com/users/%s)", utils.EscapeMarkdown(app.Owner.Username), app.Owner.ID),
		})
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{embed}})
}
