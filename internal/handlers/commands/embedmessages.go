package commands

import (
	"context"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/glotchimo/keeper/internal/models"
	"github.com/graxinc/errutil"
)

type EmbedMessages struct{}

func (e *EmbedMessages) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:                     "embedmessages",
		Description:              "Show or toggle previews for message links sent in chat",
		DefaultMemberPermissions: &manageMessages,
		DMPermission:             &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionBoolean,
				Name:        "enable",
				Description: "Whether message links get a preview",
			},
		},
	}
}

func (e *EmbedMessages) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	guildID := dep.Interaction.GuildID

	opt, ok := dep.Option("enable")
	if !ok {
		enabled, err := dep.Database.EmbedMessages(ctx, guildID)
		if err != nil {
			return errutil.With(err)
		}
		return dep.Responder.Notice(dep.Interaction, "Embed messages", embedDescription(enabled, false), false)
	}

	enabled := opt.BoolValue()
	if err := dep.Database.SetField(ctx, guildID, models.FieldEmbedMessages, enabled); err != nil {
		return errutil.With(err)
	}

	return dep.Responder.Notice(dep.Interaction, "Embed messages", embedDescription(enabled, true), false)
}

func embedDescription(enabled, changed bool) string {
	switch {
	case changed && enabled:
		return "Message links sent in chat will now embed."
	case changed:
		return "Message links sent in chat will no longer embed."
	case enabled:
		return "Message links sent in chat embed."
	}
	return "Message links sent in chat do not embed."
}
