package models

import (
	"encoding/json"
	"time"

	dg "github.com/bwmarrin/discordgo"
)

// Interaction is the audit record of one received interaction. Command is
// empty for interactions other than slash commands.
type Interaction struct {
	ID          string
	GuildID     string
	UserID      string
	Command     string
	Interaction *dg.Interaction
	Created     time.Time
}

func InteractionFromDiscord(id string, i *dg.Interaction) Interaction {
	rec := Interaction{ID: id, GuildID: i.GuildID, Interaction: i}

	switch {
	case i.Member != nil && i.Member.User != nil:
		rec.UserID = i.Member.User.ID
	case i.User != nil:
		rec.UserID = i.User.ID
	}

	if i.Type == dg.InteractionApplicationCommand {
		rec.Command = i.ApplicationCommandData().Name
	}

	return rec
}

func (i Interaction) Map() map[string]any {
	ib, _ := json.Marshal(i.Interaction)
	m := map[string]any{
		"id":          i.ID,
		"guild_id":    nil,
		"user_id":     nil,
		"command":     nil,
		"interaction": ib,
	}
	if i.GuildID != "" {
		m["guild_id"] = i.GuildID
	}
	if i.UserID != "" {
		m["user_id"] = i.UserID
	}
	if i.Command != "" {
		m["command"] = i.Command
	}
	return m
}

func (i Interaction) Table() Table {
	return TableInteractions
}
