package commands

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

type Sync struct{}

func (s *Sync) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:                     "sync",
		Description:              "Sync integrations like Twitch subscribers and YouTube members",
		DefaultMemberPermissions: &manageGuild,
		DMPermission:             &noDM,
	}
}

func (s *Sync) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	if dep.Interaction.Member == nil || dep.Interaction.Member.Permissions&dg.PermissionManageGuild == 0 {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "Syncing integrations requires the Manage Server permission.",
		})
	}

	guildID := dep.Interaction.GuildID
	integrations, err := dep.Session.GuildIntegrations(guildID, dg.WithContext(ctx))
	if err != nil {
		return errutil.With(err)
	}
	if len(integrations) == 0 {
		return dep.Responder.Notice(dep.Interaction, "Sync", "This server does not have any integrations.", false)
	}

	for _, in := range integrations {
		endpoint := dg.EndpointGuilds + guildID + "/integrations/" + in.ID + "/sync"
		if _, err := dep.Session.RequestWithBucketID(http.MethodPost, endpoint, nil, endpoint, dg.WithContext(ctx)); err != nil {
			return errutil.With(err)
		}
	}

	return dep.Responder.Notice(dep.Interaction, "Sync", syncSummary(integrations), false)
}

func syncSummary(integrations []*dg.Integration) string {
	lines := make([]string, 0, len(integrations))
	for _, in := range integrations {
		lines = append(lines, fmt.Sprintf("%s: %s", in.Type, utils.EscapeMarkdown(in.Name)))
	}
	return "Synced all integrations:\n" + strings.Join(lines, "\n")
}
