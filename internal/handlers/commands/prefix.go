package commands

import (
	"context"
	"fmt"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

const maxPrefixLength = 16

type Prefix struct{}

func (p *Prefix) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:         "prefix",
		Description:  "Show or change the server's command prefix",
		DMPermission: &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionString,
				Name:        "prefix",
				Description: "New prefix; leave out to show the current one",
				MaxLength:   maxPrefixLength,
			},
			{
				Type:        dg.ApplicationCommandOptionBoolean,
				Name:        "reset",
				Description: "Reset to the default prefix",
			},
		},
	}
}

func (p *Prefix) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	guildID := dep.Interaction.GuildID
	opt, set := dep.Option("prefix")
	reset, _ := dep.Option("reset")
	if !set && (reset == nil || !reset.BoolValue()) {
		prefix, err := dep.Cache.Prefix(ctx, guildID)
		if err != nil {
			return errutil.With(err)
		}
		return dep.Responder.Notice(dep.Interaction, "Prefix", fmt.Sprintf("The current server prefix is %s.\nUse `/prefix` to set it.", utils.WrapInCode(prefix)), false)
	}

	if !canManageGuild(dep.Interaction) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "Changing the prefix requires the Manage Server permission.",
		})
	}

	var prefix string
	if set {
		prefix = strings.TrimSpace(opt.StringValue())
		if prefix == "" || len(prefix) > maxPrefixLength {
			return dep.Responder.Fail(dep.Interaction, utils.Failure{
				Type:    utils.ErrBadInput,
				Message: fmt.Sprintf("A prefix must be between 1 and %d characters.", maxPrefixLength),
			})
		}
	}

	if err := dep.Cache.SetPrefix(ctx, guildID, prefix); err != nil {
		return errutil.With(err)
	}

	current, err := dep.Cache.Prefix(ctx, guildID)
	if err != nil {
		return errutil.With(err)
	}

	return dep.Responder.Notice(dep.Interaction, "Prefix", fmt.Sprintf("Prefix has been set to %s.", utils.WrapInCode(current)), false)
}

func canManageGuild(i *dg.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&dg.PermissionManageGuild != 0
}
