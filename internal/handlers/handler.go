package handlers

import (
	"context"
	"log/slog"

	dg "github.com/bwmarrin/discordgo"
	ch "github.com/glotchimo/keeper/internal/cache"
	db "github.com/glotchimo/keeper/internal/database"
	ls "github.com/glotchimo/keeper/internal/listeners"
	md "github.com/glotchimo/keeper/internal/models"
	pf "github.com/glotchimo/keeper/internal/platform"
	rp "github.com/glotchimo/keeper/internal/response"
	ut "github.com/glotchimo/keeper/internal/utils"
)

type Dependencies struct {
	Session     *dg.Session
	Database    *db.Database
	Cache       *ch.Cache
	Platform    pf.Client
	Responder   *rp.Responder
	Logger      *slog.Logger
	Nicknames   *ls.Nicknames
	Locks       *ut.GuildLocks
	Config      md.GuildConfig
	Interaction *dg.InteractionCreate
	Options     *map[string]*dg.ApplicationCommandInteractionDataOption
}

type Handler interface {
	Metadata() dg.ApplicationCommand
	Handle(context.Context, Dependencies) error
}

// Option returns the named top-level option, if it was supplied.
func (d Dependencies) Option(name string) (*dg.ApplicationCommandInteractionDataOption, bool) {
	if d.Options == nil {
		return nil, false
	}
	opt, ok := (*d.Options)[name]
	return opt, ok
}

// Subcommand returns the invoked subcommand and its options keyed by name.
func (d Dependencies) Subcommand() (string, map[string]*dg.ApplicationCommandInteractionDataOption) {
	if d.Options == nil {
		return "", nil
	}

	for _, opt := range *d.Options {
		if opt.Type != dg.ApplicationCommandOptionSubCommand {
			continue
		}
		return opt.Name, ut.OptionsByName(opt.Options)
	}

	return "", nil
}
