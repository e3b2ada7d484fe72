package commands

import (
	"context"
	"fmt"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	"github.com/glotchimo/keeper/internal/platform"
	rp "github.com/glotchimo/keeper/internal/response"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

type pronoun struct {
	Written               string
	Nominative            string
	Accusative            string
	PronominalPossessive  string
	PredicativePossessive string
	Reflexive             string
}

var pronouns = []pronoun{
	{"any pronoun", "*any*", "*any*", "*any*", "*any*", "*any*"},
	{"they/them", "they", "them", "their", "theirs", "themselves"},
	{"she/her", "she", "her", "her", "hers", "herself"},
	{"he/him", "he", "him", "his", "his", "himself"},
	{"e/em", "e", "em", "eir", "eirs", "emself"},
	{"ey/em", "ey", "em", "eir", "eirs", "emself"},
	{"fae/faer", "fae", "faer", "faer", "faers", "faerself"},
	{"it/its", "it", "it", "its", "its", "itself"},
	{"ne/nem", "ne", "nem", "nir", "nirs", "nemself"},
	{"ne/ner", "ne", "ner", "nis", "nis", "nemself"},
	{"one/one", "one", "one", "ones", "one's", "oneself"},
	{"per/per", "per", "per", "per", "pers", "perself"},
	{"sie/hir", "sie", "hir", "hir", "hirs", "hirself"},
	{"thon/thon", "thon", "thon", "thons", "thon's", "thonself"},
	{"ve/ver", "ve", "ver", "vis", "vis", "verself"},
	{"xe/hir", "xe", "hir", "hir", "hirs", "hirself"},
	{"xe/xir", "xe", "xir", "xir", "xirs", "xirself"},
	{"xe/xyr", "xe", "xyr", "xyr", "xyrs", "xyrself"},
	{"xe/xem", "xe", "xem", "xyr", "xyrs", "xemself"},
	{"ze/hir", "ze", "hir", "hir", "hirs", "hirself"},
	{"zie/zir", "zie", "zir", "zir", "zirs", "zirself"},
	{"zie/zim", "zie", "zim", "zir", "zirs", "zirself"},
	{"no pronouns", "[name]", "[name]", "[name]'s", "[name]'s", "[name]"},
}

// findPronoun matches the written form or its part before the slash, so "xe"
// resolves to the first xe set.
func findPronoun(s string) (pronoun, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range pronouns {
		short, _, _ := strings.Cut(p.Written, "/")
		if s == p.Written || s == short {
			return p, true
		}
	}
	return pronoun{}, false
}

func (p pronoun) examples() string {
	nominative := p.Nominative
	if r := []rune(nominative); len(r) > 0 && r[0] != '*' && r[0] != '[' {
		nominative = strings.ToUpper(string(r[0])) + string(r[1:])
	}

	return fmt.Sprintf("%s went to the park yesterday.\n"+
		"I saw %s when walking home from the store,\n"+
		"as %s were eating %s lunch.\n"+
		"I was hungry, so I asked if I could take a small bite of %s.\n"+
		"Sadly, %s wouldn't have enough left for %s.",
		nominative, p.Accusative, p.Nominative, p.PronominalPossessive, p.PredicativePossessive, p.Nominative, p.Reflexive)
}

func pronounList() string {
	written := make([]string, 0, len(pronouns))
	for _, p := range pronouns {
		written = append(written, p.Written)
	}
	return "List of pronouns known to me are:\n" + strings.Join(written, ", ") + "."
}

func roleNamed(roles []*dg.Role, name string) *dg.Role {
	for _, r := range roles {
		if r.Name == name {
			return r
		}
	}
	return nil
}

type Pronoun struct{}

func (p *Pronoun) Metadata() dg.ApplicationCommand {
	choices := make([]*dg.ApplicationCommandOptionChoice, 0, len(pronouns))
	for _, pr := range pronouns {
		choices = append(choices, &dg.ApplicationCommandOptionChoice{Name: pr.Written, Value: pr.Written})
	}
	pronounOption := []*dg.ApplicationCommandOption{
		{
			Type:        dg.ApplicationCommandOptionString,
			Name:        "pronoun",
			Description: "The pronoun",
			Required:    true,
			Choices:     choices,
		},
	}

	return dg.ApplicationCommand{
		Name:         "pronoun",
		Description:  "Pronoun roles",
		DMPermission: &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "toggle",
				Description: "Give yourself a pronoun role, or take it away",
				Options:     pronounOption,
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List the pronouns available for self assignment",
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "info",
				Description: "Show how a pronoun is used",
				Options:     pronounOption,
			},
		},
	}
}

func (p *Pronoun) Handle(ctx context.Context, dep handlers.Dependencies) error {
	sub, opts := dep.Subcommand()
	if err := dep.Responder.Defer(dep.Interaction, sub == "toggle"); err != nil {
		return err
	}

	if sub == "list" {
		return dep.Responder.Notice(dep.Interaction, "Pronoun list", pronounList(), false)
	}

	var input string
	if opt, ok := opts["pronoun"]; ok {
		input = opt.StringValue()
	}
	found, ok := findPronoun(input)
	if !ok {
		return dep.Responder.Fail(dep.Interaction, utils.Failf(utils.ErrNotFound, "Could not find pronoun for %s. Use /pronoun list to see all available pronouns.", utils.WrapInCode(input)))
	}

	switch sub {
	case "info":
		embed := &dg.MessageEmbed{
			Title: found.Written,
			Description: fmt.Sprintf("Nominative: %s\nAccusative: %s\nPronominal possessive: %s\nPredicative possessive: %s\nReflexive: %s",
				found.Nominative, found.Accusative, found.PronominalPossessive, found.PredicativePossessive, found.Reflexive),
			Fields: []*dg.MessageEmbedField{{Name: "Examples", Value: found.examples()}},
		}
		return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{embed}})

	case "toggle":
		if !dep.Config.PronounRoles {
			return dep.Responder.Fail(dep.Interaction, utils.Failure{
				Type:    utils.ErrNotAllowed,
				Message: "Self assignable pronoun roles are disabled in this server.",
			})
		}
		return p.toggle(ctx, dep, found)
	}

	return dep.Responder.Fail(dep.Interaction, utils.Failure{
		Type:    utils.ErrNotFound,
		Message: "Unknown subcommand",
	})
}

// toggle finds or creates the role named after the pronoun, strips any
// permissions someone gave it, then flips it on the caller.
func (p *Pronoun) toggle(ctx context.Context, dep handlers.Dependencies, found pronoun) error {
	guildID := dep.Interaction.GuildID

	roles, err := dep.Session.GuildRoles(guildID, dg.WithContext(ctx))
	if err != nil {
		return errutil.With(err)
	}

	none := int64(0)
	role := roleNamed(roles, found.Written)
	if role == nil {
		role, err = dep.Session.GuildRoleCreate(guildID, &dg.RoleParams{Name: found.Written, Permissions: &none}, dg.WithContext(ctx))
		if err != nil {
			return errutil.With(err)
		}
	} else {
		h, err := platform.LoadHierarchy(ctx, dep.Platform, guildID)
		if err != nil {
			return errutil.With(err)
		}
		if h.BotTop <= role.Position {
			return dep.Responder.Fail(dep.Interaction, utils.Failf(utils.ErrNotAllowed, "%s is above my highest role, so I can't assign it.", utils.FormatRoleMention(role.ID)))
		}

		if role.Permissions != 0 {
			if _, err := dep.Session.GuildRoleEdit(guildID, role.ID, &dg.RoleParams{Permissions: &none}, dg.WithContext(ctx)); err != nil {
				return errutil.With(err)
			}
		}
	}

	userID := dep.Interaction.Member.User.ID
	member, err := dep.Platform.Member(ctx, guildID, userID)
	if err != nil {
		return errutil.With(err)
	}

	if member.HasRole(role.ID) {
		if err := dep.Platform.RemoveRole(ctx, guildID, userID, role.ID); err != nil {
			return errutil.With(err)
		}
		return dep.Responder.Notice(dep.Interaction, "Pronoun selfrole", fmt.Sprintf("Unassigned pronoun role %s.", found.Written), true)
	}

	if err := dep.Platform.AddRole(ctx, guildID, userID, role.ID); err != nil {
		return errutil.With(err)
	}
	return dep.Responder.Notice(dep.Interaction, "Pronoun selfrole", fmt.Sprintf("Assigned pronoun role %s.", found.Written), true)
}
