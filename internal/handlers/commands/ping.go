package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	rp "github.com/glotchimo/keeper/internal/response"
)

type Ping struct{}

func (p *Ping) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "ping",
		Description: "Check the bot's gateway and database latency",
	}
}

func (p *Ping) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, true); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Gateway: %s\n", dep.Session.HeartbeatLatency().Round(time.Millisecond))

	if rtt, err := dep.Database.Ping(ctx); err != nil {
		dep.Logger.Warn("error pinging database", "error", err)
		b.WriteString("Database: unreachable\n")
	} else {
		fmt.Fprintf(&b, "Database: %s\n", rtt.Round(time.Microsecond))
	}

	fmt.Fprintf(&b, "Shard: %d/%d", dep.Session.ShardID, dep.Session.ShardCount)

	embed := dg.MessageEmbed{
		Title:       "Pong!",
		Description: b.String(),
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}, Ephemeral: true})
}
