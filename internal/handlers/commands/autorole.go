package commands

import (
	"context"
	"fmt"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

type AutoRole struct{}

func (a *AutoRole) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:                     "autorole",
		Description:              "Show, set or clear the role given to new members",
		DefaultMemberPermissions: &manageRoles,
		DMPermission:             &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionRole,
				Name:        "role",
				Description: "Role to assign on join",
			},
			{
				Type:        dg.ApplicationCommandOptionBoolean,
				Name:        "clear",
				Description: "Stop assigning a role on join",
			},
		},
	}
}

func (a *AutoRole) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	guildID := dep.Interaction.GuildID

	if clear, ok := dep.Option("clear"); ok && clear.BoolValue() {
		if err := dep.Cache.SetAutoRole(ctx, guildID, ""); err != nil {
			return errutil.With(err)
		}
		return dep.Responder.Notice(dep.Interaction, "Autorole", "No role will be assigned on join.", false)
	}

	opt, ok := dep.Option("role")
	if !ok {
		roleID, err := dep.Cache.AutoRole(ctx, guildID)
		if err != nil {
			return errutil.With(err)
		}
		if roleID == "" {
			return dep.Responder.Notice(dep.Interaction, "Autorole", "No role is assigned on join.", false)
		}
		return dep.Responder.Notice(dep.Interaction, "Autorole", fmt.Sprintf("%s is automatically assigned on join.", utils.FormatRoleMention(roleID)), false)
	}

	roleID := opt.Value.(string)
	h, err := platform.LoadHierarchy(ctx, dep.Platform, guildID)
	if err != nil {
		return errutil.With(err)
	}

	role, ok := h.Guild.Role(roleID)
	if !ok || roleID == guildID {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrBadInput,
			Message: "That role can't be assigned.",
		})
	}
	if h.BotTop <= role.Position {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: fmt.Sprintf("%s is above my highest role, so I can't assign it.", utils.FormatRoleMention(roleID)),
		})
	}

	if err := dep.Cache.SetAutoRole(ctx, guildID, roleID); err != nil {
		return errutil.With(err)
	}

	return dep.Responder.Notice(dep.Interaction, "Autorole", fmt.Sprintf("%s is now automatically assigned on join.", utils.FormatRoleMention(roleID)), false)
}
