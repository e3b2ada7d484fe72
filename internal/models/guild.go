package models

import (
	"time"

	"github.com/lib/pq"
)

const DefaultPrefix = ";"

type AutoClean struct {
	Dehoist   bool `json:"dehoist"`
	Normalize bool `json:"normalize"`
}

func (a AutoClean) Enabled() bool {
	return a.Dehoist || a.Normalize
}

type GuildConfig struct {
	GuildID        string
	Prefix         string
	EmbedMessages  bool
	AutoClean      AutoClean
	AutoRoleID     string
	SelfRoles      []string
	PronounRoles   bool
	CommandSetHash string
	Created        time.Time
	Updated        *time.Time
}

// DefaultGuildConfig is what a guild without a stored row behaves like. The
// empty prefix resolves to the configured default at read time.
func DefaultGuildConfig(guildID string) GuildConfig {
	return GuildConfig{GuildID: guildID, SelfRoles: []string{}}
}

func (g GuildConfig) Map() map[string]any {
	var prefix, autorole any
	if g.Prefix != "" {
		prefix = g.Prefix
	}
	if g.AutoRoleID != "" {
		autorole = g.AutoRoleID
	}

	return map[string]any{
		"guild_id":                  g.GuildID,
		string(FieldPrefix):         prefix,
		string(FieldEmbedMessages):  g.EmbedMessages,
		string(FieldCleanDehoist):   g.AutoClean.Dehoist,
		string(FieldCleanNormalize): g.AutoClean.Normalize,
		string(FieldAutoRole):       autorole,
		string(FieldSelfRoles):      pq.Array(g.SelfRoles),
		string(FieldPronounRoles):   g.PronounRoles,
	}
}

func (g GuildConfig) Table() Table {
	return TableGuildConfig
}

func (g GuildConfig) HasSelfRole(roleID string) bool {
	for _, id := range g.SelfRoles {
		if id == roleID {
			return true
		}
	}
	return false
}
