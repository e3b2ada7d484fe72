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

type Assign struct{}

func (a *Assign) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:         "assign",
		Description:  "Give yourself a self-assignable role, or take it away",
		DMPermission: &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionRole,
				Name:        "role",
				Description: "The role to toggle",
				Required:    true,
			},
		},
	}
}

func (a *Assign) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, true); err != nil {
		return err
	}

	guildID := dep.Interaction.GuildID
	opt, _ := dep.Option("role")
	roleID := opt.Value.(string)

	if !dep.Config.HasSelfRole(roleID) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: fmt.Sprintf("%s is not self-assignable.", utils.FormatRoleMention(roleID)),
		})
	}

	h, err := platform.LoadHierarchy(ctx, dep.Platform, guildID)
	if err != nil {
		return errutil.With(err)
	}
	role, ok := h.Guild.Role(roleID)
	if !ok {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotFound,
			Message: "That role no longer exists.",
		})
	}
	if h.BotTop <= role.Position {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: fmt.Sprintf("%s is above my highest role, so I can't assign it.", utils.FormatRoleMention(roleID)),
		})
	}

	userID := dep.Interaction.Member.User.ID
	member, err := dep.Platform.Member(ctx, guildID, userID)
	if err != nil {
		return errutil.With(err)
	}

	if member.HasRole(roleID) {
		if err := dep.Platform.RemoveRole(ctx, guildID, userID, roleID); err != nil {
			return errutil.With(err)
		}
		return dep.Responder.Notice(dep.Interaction, "Selfroles", fmt.Sprintf("You have been unassigned %s.", utils.FormatRoleMention(roleID)), true)
	}

	if err := dep.Platform.AddRole(ctx, guildID, userID, roleID); err != nil {
		return errutil.With(err)
	}
	return dep.Responder.Notice(dep.Interaction, "Selfroles", fmt.Sprintf("You have been assigned %s.", utils.FormatRoleMention(roleID)), true)
}
