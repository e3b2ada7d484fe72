// Package platform is the narrow slice of the Discord API the listeners and
// commands mutate state through.
package platform

import (
	"context"
	"errors"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/models"
)

const PermissionViewChannel int64 = dg.PermissionViewChannel

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
)

// Ignorable reports whether err is an expected race with the live guild,
// such as a member leaving or a role moving mid-flight.
func Ignorable(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotFound)
}

// Overwrite is a member-specific permission overwrite on a channel.
type Overwrite struct {
	Allow int64
	Deny  int64
}

type Embed struct {
	Title         string
	AuthorName    string
	AuthorIconURL string
	Description   string
	Color         int
	Timestamp     string
	Footer        string
	ImageURL      string
	Fields        [][2]string
}

type Client interface {
	// Self is the bot's own user ID.
	Self() string
	Guild(ctx context.Context, guildID string) (models.Guild, error)
	Member(ctx context.Context, guildID, userID string) (models.Member, error)
	// Members pages through the guild's members, calling fn for each one
	// until fn returns false.
	Members(ctx context.Context, guildID string, fn func(models.Member) bool) error
	EditNickname(ctx context.Context, guildID, userID, nick string) error
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	// MemberOverwrite returns the member's overwrite on a channel, if any.
	MemberOverwrite(ctx context.Context, channelID, userID string) (Overwrite, bool, error)
	SetMemberOverwrite(ctx context.Context, channelID, userID string, o Overwrite) error
	DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error
	// CanReadHistory reports whether the user can view the channel and read
	// its message history.
	CanReadHistory(ctx context.Context, channelID, userID string) (bool, error)
	ChannelName(ctx context.Context, channelID string) (string, error)
	Message(ctx context.Context, channelID, messageID string) (models.Message, error)
	Reply(ctx context.Context, channelID, messageID, content string, embeds ...Embed) error
}

// Hierarchy is what a member's highest role is compared against before the
// bot acts on them.
type Hierarchy struct {
	Guild   models.Guild
	BotTop  int
	OwnerID string
}

// LoadHierarchy fetches the guild and the bot's top role position.
func LoadHierarchy(ctx context.Context, c Client, guildID string) (Hierarchy, error) {
	guild, err := c.Guild(ctx, guildID)
	if err != nil {
		return Hierarchy{}, err
	}

	self, err := c.Member(ctx, guildID, c.Self())
	if err != nil {
		return Hierarchy{}, err
	}

	return Hierarchy{Guild: guild, BotTop: guild.TopPosition(self.Roles), OwnerID: guild.OwnerID}, nil
}

// Outranks reports whether the bot's top role is strictly above the member's.
func (h Hierarchy) Outranks(m models.Member) bool {
	return h.BotTop > h.Guild.TopPosition(m.Roles)
}
