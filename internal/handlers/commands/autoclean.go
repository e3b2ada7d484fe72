package commands

import (
	"context"
	"fmt"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/graxinc/errutil"
)

type AutoClean struct{}

func (a *AutoClean) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:                     "autoclean",
		Description:              "Configure automatic nickname cleaning",
		DefaultMemberPermissions: &manageGuild,
		DMPermission:             &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionBoolean,
				Name:        "dehoist",
				Description: "Strip leading symbols used to sort names to the top",
			},
			{
				Type:        dg.ApplicationCommandOptionBoolean,
				Name:        "normalize",
				Description: "Replace decorative Unicode with plain letters",
			},
		},
	}
}

func (a *AutoClean) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	guildID := dep.Interaction.GuildID
	flags, err := dep.Cache.AutoClean(ctx, guildID)
	if err != nil {
		return errutil.With(err)
	}

	dehoist, setDehoist := dep.Option("dehoist")
	normalize, setNormalize := dep.Option("normalize")
	if setDehoist || setNormalize {
		if setDehoist {
			flags.Dehoist = dehoist.BoolValue()
		}
		if setNormalize {
			flags.Normalize = normalize.BoolValue()
		}
		if err := dep.Cache.SetAutoClean(ctx, guildID, flags); err != nil {
			return errutil.With(err)
		}
	}

	description := fmt.Sprintf("Dehoisting is %s.\nNormalizing is %s.", enabledString(flags.Dehoist), enabledString(flags.Normalize))
	if flags.Enabled() {
		description += "\nUse `/cleannames` to apply this to existing members."
	}

	return dep.Responder.Notice(dep.Interaction, "Auto-clean", description, false)
}
