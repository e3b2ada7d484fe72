package models

import (
	"slices"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
)

// Member is a snapshot of a guild member as seen by the gateway or the REST API.
type Member struct {
	ID         string
	Username   string
	GlobalName string
	Nick       string
	Bot        bool
	Pending    bool
	Roles      []string
}

// BaseName is the name shown when the member has no nickname.
func (m Member) BaseName() string {
	if m.GlobalName != "" {
		return m.GlobalName
	}
	return m.Username
}

func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.BaseName()
}

func (m Member) HasRole(roleID string) bool {
	return slices.Contains(m.Roles, roleID)
}

func (m Member) Clone() Member {
	m.Roles = slices.Clone(m.Roles)
	return m
}

func MemberFromDiscord(m *dg.Member) Member {
	if m == nil {
		return Member{}
	}

	member := Member{
		Nick:    m.Nick,
		Pending: m.Pending,
		Roles:   slices.Clone(m.Roles),
	}
	if m.User != nil {
		member.ID = m.User.ID
		member.Username = m.User.Username
		member.GlobalName = m.User.GlobalName
		member.Bot = m.User.Bot
	}

	return member
}

type Role struct {
	ID       string
	Name     string
	Position int
}

type Guild struct {
	ID      string
	Name    string
	OwnerID string
	Roles   []Role
}

func (g Guild) Role(id string) (Role, bool) {
	for _, r := range g.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// TopPosition returns the highest position among the given roles. The
// @everyone role shares the guild ID and sits at position 0.
func (g Guild) TopPosition(roleIDs []string) int {
	top := 0
	for _, id := range roleIDs {
		if r, ok := g.Role(id); ok && r.Position > top {
			top = r.Position
		}
	}
	return top
}

func GuildFromDiscord(g *dg.Guild) Guild {
	guild := Guild{ID: g.ID, Name: g.Name, OwnerID: g.OwnerID}
	for _, r := range g.Roles {
		guild.Roles = append(guild.Roles, Role{ID: r.ID, Name: r.Name, Position: r.Position})
	}
	return guild
}

type Attachment struct {
	Filename string
	URL      string
	Height   int
}

func (a Attachment) Spoiler() bool {
	return strings.HasPrefix(a.Filename, "SPOILER_")
}

type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	Content     string
	Author      Member
	AvatarURL   string
	Timestamp   time.Time
	Attachments []Attachment
}

func (m Message) Clone() Message {
	m.Author = m.Author.Clone()
	m.Attachments = slices.Clone(m.Attachments)
	return m
}

func MessageFromDiscord(m *dg.Message) Message {
	msg := Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}

	if m.Member != nil {
		msg.Author = MemberFromDiscord(m.Member)
	}
	if m.Author != nil {
		msg.Author.ID = m.Author.ID
		msg.Author.Username = m.Author.Username
		msg.Author.GlobalName = m.Author.GlobalName
		msg.Author.Bot = m.Author.Bot
		msg.AvatarURL = m.Author.AvatarURL("")
	}

	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{Filename: a.Filename, URL: a.URL, Height: a.Height})
	}

	return msg
}

// VoiceChange describes a member moving between voice channels. An empty
// channel ID means not connected.
type VoiceChange struct {
	Member Member
	Before string
	After  string
}

func VoiceChangeFromDiscord(v *dg.VoiceStateUpdate) VoiceChange {
	change := VoiceChange{After: v.ChannelID}
	if v.BeforeUpdate != nil {
		change.Before = v.BeforeUpdate.ChannelID
	}

	if v.Member != nil {
		change.Member = MemberFromDiscord(v.Member)
	}
	change.Member.ID = v.UserID

	return change
}
