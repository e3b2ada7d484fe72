package commands

import (
	"context"
	"fmt"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

type SelfRole struct{}

func (s *SelfRole) Metadata() dg.ApplicationCommand {
	roleOption := []*dg.ApplicationCommandOption{
		{
			Type:        dg.ApplicationCommandOptionRole,
			Name:        "role",
			Description: "The role",
			Required:    true,
		},
	}

	return dg.ApplicationCommand{
		Name:         "selfrole",
		Description:  "Manage the roles members can assign to themselves",
		DMPermission: &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Make a role self-assignable",
				Options:     roleOption,
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Make a role no longer self-assignable",
				Options:     roleOption,
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List the self-assignable roles",
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "pronouns",
				Description: "Show or toggle self-assignable pronoun roles",
				Options: []*dg.ApplicationCommandOption{
					{
						Type:        dg.ApplicationCommandOptionBoolean,
						Name:        "enable",
						Description: "Whether members can assign pronoun roles",
					},
				},
			},
		},
	}
}

func (s *SelfRole) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	sub, opts := dep.Subcommand()
	if sub != "list" && !canManageRoles(dep.Interaction) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "Configuring self-assignable roles requires the Manage Roles permission.",
		})
	}

	guildID := dep.Interaction.GuildID
	switch sub {
	case "add":
		roleID := opts["role"].Value.(string)
		if roleID == guildID {
			return dep.Responder.Fail(dep.Interaction, utils.Failure{
				Type:    utils.ErrBadInput,
				Message: "That role can't be assigned.",
			})
		}

		added, err := dep.Database.AddSelfRole(ctx, guildID, roleID)
		if err != nil {
			return errutil.With(err)
		}
		if !added {
			return dep.Responder.Notice(dep.Interaction, "Selfroles", fmt.Sprintf("%s already was self-assignable.", utils.FormatRoleMention(roleID)), false)
		}
		return dep.Responder.Notice(dep.Interaction, "Selfroles", fmt.Sprintf("%s is now self-assignable.", utils.FormatRoleMention(roleID)), false)

	case "remove":
		roleID := opts["role"].Value.(string)
		removed, err := dep.Database.RemoveSelfRole(ctx, guildID, roleID)
		if err != nil {
			return errutil.With(err)
		}
		if !removed {
			return dep.Responder.Notice(dep.Interaction, "Selfroles", fmt.Sprintf("%s already was not self-assignable.", utils.FormatRoleMention(roleID)), false)
		}
		return dep.Responder.Notice(dep.Interaction, "Selfroles", fmt.Sprintf("%s is now no longer self-assignable.", utils.FormatRoleMention(roleID)), false)

	case "list":
		return s.list(ctx, dep)

	case "pronouns":
		if opt, ok := opts["enable"]; ok {
			enabled := opt.BoolValue()
			if err := dep.Database.SetField(ctx, guildID, models.FieldPronounRoles, enabled); err != nil {
				return errutil.With(err)
			}
			return dep.Responder.Notice(dep.Interaction, "Pronoun selfrole", fmt.Sprintf("Self assignable pronoun roles are now %s.", enabledString(enabled)), false)
		}

		g, err := dep.Database.GetGuildConfig(ctx, guildID)
		if err != nil {
			return errutil.With(err)
		}
		return dep.Responder.Notice(dep.Interaction, "Pronoun selfrole", fmt.Sprintf("Self assignable pronoun roles are currently %s.", enabledString(g.PronounRoles)), false)
	}

	return dep.Responder.Fail(dep.Interaction, utils.Failure{
		Type:    utils.ErrNotFound,
		Message: "Unknown subcommand",
	})
}

// list prunes roles deleted from the guild before showing the rest.
func (s *SelfRole) list(ctx context.Context, dep handlers.Dependencies) error {
	guildID := dep.Interaction.GuildID

	stored, err := dep.Database.SelfRoles(ctx, guildID)
	if err != nil {
		return errutil.With(err)
	}

	guild, err := dep.Platform.Guild(ctx, guildID)
	if err != nil {
		return errutil.With(err)
	}

	live := liveRoles(stored, guild)
	if len(live) != len(stored) {
		if err := dep.Database.SetSelfRoles(ctx, guildID, live); err != nil {
			return errutil.With(err)
		}
	}

	if len(live) == 0 {
		return dep.Responder.Notice(dep.Interaction, "Selfroles", "There are no self-assignable roles in this server.", false)
	}

	mentions := make([]string, 0, len(live))
	for _, id := range live {
		mentions = append(mentions, utils.FormatRoleMention(id))
	}

	return dep.Responder.Notice(dep.Interaction, "Selfroles", "These are the roles you can assign to yourself:\n"+strings.Join(mentions, ", ")+".", false)
}

func liveRoles(roleIDs []string, guild models.Guild) []string {
	live := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if _, ok := guild.Role(id); ok {
			live = append(live, id)
		}
	}
	return live
}

func canManageRoles(i *dg.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&dg.PermissionManageRoles != 0
}
