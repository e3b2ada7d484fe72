package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"slices"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/handlers"
	rp "github.com/glotchimo/keeper/internal/response"
	"github.com/glotchimo/keeper/internal/utils"
	"github.com/graxinc/errutil"
)

// Discord rejects emoji uploads above this size.
const maxEmojiBytes = 256 << 10

var (
	emojiMarkup = regexp.MustCompile(`^<(a?):(\w{2,32}):(\d{15,21})>$`)
	emojiName   = regexp.MustCompile(`^\w{2,32}$`)
)

type customEmoji struct {
	Name     string
	ID       string
	Animated bool
}

func parseEmoji(s string) (customEmoji, bool) {
	m := emojiMarkup.FindStringSubmatch(s)
	if m == nil {
		return customEmoji{}, false
	}
	return customEmoji{Name: m[2], ID: m[3], Animated: m[1] == "a"}, true
}

func (e customEmoji) Markdown() string {
	if e.Animated {
		return fmt.Sprintf("a:%s:%s", e.Name, e.ID)
	}
	return fmt.Sprintf(":%s:%s", e.Name, e.ID)
}

func (e customEmoji) String() string {
	return "<" + e.Markdown() + ">"
}

func (e customEmoji) URL() string {
	if e.Animated {
		return dg.EndpointEmojiAnimated(e.ID)
	}
	return dg.EndpointEmoji(e.ID)
}

func emojiOption(description string) *dg.ApplicationCommandOption {
	return &dg.ApplicationCommandOption{
		Type:        dg.ApplicationCommandOptionString,
		Name:        "emoji",
		Description: description,
		Required:    true,
	}
}

func badEmoji(dep handlers.Dependencies, input string) error {
	return dep.Responder.Fail(dep.Interaction, utils.Failf(utils.ErrBadInput, "%s is not a custom emoji.", utils.WrapInCode(input)))
}

func canManageEmojis(i *dg.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&dg.PermissionManageEmojis != 0
}

type Emoji struct{}

func (e *Emoji) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:         "emoji",
		Description:  "Show info about a custom emoji",
		DMPermission: &noDM,
		Options:      []*dg.ApplicationCommandOption{emojiOption("The emoji")},
	}
}

func (e *Emoji) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	opt, _ := dep.Option("emoji")
	input := opt.StringValue()
	emoji, ok := parseEmoji(input)
	if !ok {
		return badEmoji(dep, input)
	}

	animated := "no"
	if emoji.Animated {
		animated = "yes"
	}

	embed := &dg.MessageEmbed{
		Title: "Emoji info",
		Description: fmt.Sprintf("Name: %s\nID: %s\nAnimated: %s\nMarkdown: %s\nImage: %s",
			utils.EscapeMarkdown(emoji.Name), emoji.ID, animated, emoji.Markdown(), emoji.URL()),
		Image: &dg.MessageEmbedImage{URL: emoji.URL()},
	}
	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{embed}})
}

type Steal struct{}

func (s *Steal) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:                     "steal",
		Description:              "Add a custom emoji from another server to this one",
		DefaultMemberPermissions: &manageEmojis,
		DMPermission:             &noDM,
		Options: []*dg.ApplicationCommandOption{
			emojiOption("The emoji to copy"),
			{
				Type:        dg.ApplicationCommandOptionString,
				Name:        "name",
				Description: "Name for the copy, the original name if unset",
			},
		},
	}
}

func (s *Steal) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	if !canManageEmojis(dep.Interaction) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "Adding emojis requires the Manage Expressions permission.",
		})
	}

	opt, _ := dep.Option("emoji")
	input := opt.StringValue()
	emoji, ok := parseEmoji(input)
	if !ok {
		return badEmoji(dep, input)
	}

	name := emoji.Name
	if opt, ok := dep.Option("name"); ok {
		name = opt.StringValue()
	}
	if !emojiName.MatchString(name) {
		return dep.Responder.Fail(dep.Interaction, utils.Failf(utils.ErrBadInput, "%s is not a valid emoji name.", utils.WrapInCode(name)))
	}

	image, err := fetchEmoji(ctx, dep.Session.Client, emoji.URL())
	if err != nil {
		return errutil.With(err)
	}

	created, err := dep.Session.GuildEmojiCreate(dep.Interaction.GuildID, &dg.EmojiParams{Name: name, Image: image}, dg.WithContext(ctx))
	if err != nil {
		return errutil.With(err)
	}

	added := customEmoji{Name: created.Name, ID: created.ID, Animated: created.Animated}
	return dep.Responder.Notice(dep.Interaction, "Emoji stolen", fmt.Sprintf("Successfully added emoji %s.", added), false)
}

// fetchEmoji downloads an emoji image from the CDN as a data URI.
func fetchEmoji(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errutil.With(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", errutil.With(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errutil.With(fmt.Errorf("fetching %s: %s", url, resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxEmojiBytes+1))
	if err != nil {
		return "", errutil.With(err)
	}
	if len(data) > maxEmojiBytes {
		return "", errutil.With(fmt.Errorf("emoji image exceeds %d bytes", maxEmojiBytes))
	}

	return dataURI(data), nil
}

func dataURI(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type EmojiLock struct{}

func (e *EmojiLock) Metadata() dg.ApplicationCommand {
	roleOption := &dg.ApplicationCommandOption{
		Type:        dg.ApplicationCommandOptionRole,
		Name:        "role",
		Description: "The role",
		Required:    true,
	}

	return dg.ApplicationCommand{
		Name:                     "emojilock",
		Description:              "Limit a custom emoji to certain roles",
		DefaultMemberPermissions: &manageEmojis,
		DMPermission:             &noDM,
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Let a role use an emoji",
				Options:     []*dg.ApplicationCommandOption{emojiOption("The emoji"), roleOption},
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Stop a role from using an emoji",
				Options:     []*dg.ApplicationCommandOption{emojiOption("The emoji"), roleOption},
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "clear",
				Description: "Let everyone use an emoji",
				Options:     []*dg.ApplicationCommandOption{emojiOption("The emoji")},
			},
		},
	}
}

func (e *EmojiLock) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	if !canManageEmojis(dep.Interaction) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "Locking emojis requires the Manage Expressions permission.",
		})
	}

	sub, opts := dep.Subcommand()
	input := ""
	if opt, ok := opts["emoji"]; ok {
		input = opt.StringValue()
	}
	parsed, ok := parseEmoji(input)
	if !ok {
		return badEmoji(dep, input)
	}

	guildID := dep.Interaction.GuildID
	emojis, err := dep.Session.GuildEmojis(guildID, dg.WithContext(ctx))
	if err != nil {
		return errutil.With(err)
	}
	idx := slices.IndexFunc(emojis, func(em *dg.Emoji) bool { return em.ID == parsed.ID })
	if idx < 0 || emojis[idx].Managed {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "This emoji cannot be modified or is from another server.",
		})
	}
	emoji := emojis[idx]

	var roleID string
	if opt, ok := opts["role"]; ok {
		roleID = opt.Value.(string)
	}

	roles, changed, message := lockRoles(sub, emoji.Roles, roleID, parsed.String())
	if changed {
		if err := editEmojiRoles(ctx, dep.Session, guildID, emoji.ID, roles); err != nil {
			return errutil.With(err)
		}
	}

	return dep.Responder.Notice(dep.Interaction, "Emoji role", message, false)
}

// lockRoles applies a lock subcommand to an emoji's role list. An empty list
// means everyone may use the emoji.
func lockRoles(sub string, current []string, roleID, emoji string) ([]string, bool, string) {
	mention := utils.FormatRoleMention(roleID)

	switch sub {
	case "add":
		if slices.Contains(current, roleID) {
			return current, false, fmt.Sprintf("%s already was able to use %s.", mention, emoji)
		}
		return append(slices.Clone(current), roleID), true, fmt.Sprintf("%s can now use %s.", mention, emoji)

	case "remove":
		if !slices.Contains(current, roleID) {
			return current, false, fmt.Sprintf("%s already was unable to use %s.", mention, emoji)
		}
		return slices.DeleteFunc(slices.Clone(current), func(id string) bool { return id == roleID }), true, fmt.Sprintf("%s can no longer use %s.", mention, emoji)

	case "clear":
		return []string{}, true, fmt.Sprintf("Cleared role list for %s.", emoji)
	}

	return current, false, "Unknown subcommand"
}

// editEmojiRoles patches the role list directly since EmojiParams omits an
// empty list, which would leave a cleared lock in place.
func editEmojiRoles(ctx context.Context, s *dg.Session, guildID, emojiID string, roles []string) error {
	endpoint := dg.EndpointGuildEmoji(guildID, emojiID)
	_, err := s.RequestWithBucketID(http.MethodPatch, endpoint, map[string]any{"roles": roles}, dg.EndpointGuildEmojis(guildID), dg.WithContext(ctx))
	return err
}
