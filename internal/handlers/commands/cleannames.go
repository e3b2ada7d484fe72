package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/glotchimo/keeper/internal/listeners"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

type CleanNames struct{}

func (c *CleanNames) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:                     "cleannames",
		Description:              "Clean the nicknames of every member in the server",
		DefaultMemberPermissions: &manageGuild,
		DMPermission:             &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionBoolean,
				Name:        "dehoist",
				Description: "Override the server's dehoist setting for this run",
			},
			{
				Type:        dg.ApplicationCommandOptionBoolean,
				Name:        "normalize",
				Description: "Override the server's normalize setting for this run",
			},
		},
	}
}

func (c *CleanNames) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	guildID := dep.Interaction.GuildID
	if !dep.Locks.TryAcquire(guildID) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrBusy,
			Message: "A name cleanup is already running in this server.",
		})
	}
	defer dep.Locks.Release(guildID)

	flags, err := dep.Cache.AutoClean(ctx, guildID)
	if err != nil {
		return errutil.With(err)
	}
	if opt, ok := dep.Option("dehoist"); ok {
		flags.Dehoist = opt.BoolValue()
	}
	if opt, ok := dep.Option("normalize"); ok {
		flags.Normalize = opt.BoolValue()
	}
	if !flags.Enabled() {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrBadInput,
			Message: "Nothing to do with both dehoisting and normalizing disabled.",
		})
	}

	start := time.Now()
	counts, err := dep.Nicknames.ReconcileAll(ctx, guildID, flags)
	if err != nil {
		return errutil.With(err)
	}

	dep.Logger.Info("cleaned guild nicknames", "guild", guildID, "renamed", counts[listeners.OutcomeRenamed], "duration", time.Since(start))

	return dep.Responder.Notice(dep.Interaction, "Name cleanup", summarize(counts), false)
}

func summarize(counts map[listeners.Outcome]int) string {
	lines := []string{
		fmt.Sprintf("Renamed %s.", utils.Plural(counts[listeners.OutcomeRenamed], "member", "members")),
	}
	if n := counts[listeners.OutcomeReset]; n > 0 {
		lines = append(lines, fmt.Sprintf("Reset %s that no longer needed cleaning.", utils.Plural(n, "nickname", "nicknames")))
	}
	if n := counts[listeners.OutcomeReleased]; n > 0 {
		lines = append(lines, fmt.Sprintf("Stopped managing %s changed by hand.", utils.Plural(n, "nickname", "nicknames")))
	}
	if n := counts[listeners.OutcomeSkipped]; n > 0 {
		lines = append(lines, fmt.Sprintf("Skipped %s I can't rename.", utils.Plural(n, "member", "members")))
	}
	return strings.Join(lines, "\n")
}
