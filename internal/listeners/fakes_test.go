package listeners

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/glotchimo/keeper/internal/cache"
	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/platform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type store struct {
	mu      sync.Mutex
	configs map[string]models.GuildConfig
	nicks   map[string]map[string]models.CleanedNickname
	links   map[string][]string
}

func newStore() *store {
	return &store{
		configs: make(map[string]models.GuildConfig),
		nicks:   make(map[string]map[string]models.CleanedNickname),
		links:   make(map[string][]string),
	}
}

func (s *store) EnsureGuild(ctx context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[guildID]; !ok {
		s.configs[guildID] = models.DefaultGuildConfig(guildID)
	}
	return nil
}

func (s *store) GetGuildConfig(ctx context.Context, guildID string) (models.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.configs[guildID]; ok {
		return g, nil
	}
	return models.DefaultGuildConfig(guildID), nil
}

func (s *store) SetFields(ctx context.Context, guildID string, fields map[models.Field]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.configs[guildID]
	if !ok {
		g = models.DefaultGuildConfig(guildID)
	}
	for f, v := range fields {
		switch f {
		case models.FieldPrefix:
			g.Prefix = v.(string)
		case models.FieldAutoRole:
			g.AutoRoleID = v.(string)
		case models.FieldCleanDehoist:
			g.AutoClean.Dehoist = v.(bool)
		case models.FieldCleanNormalize:
			g.AutoClean.Normalize = v.(bool)
		case models.FieldEmbedMessages:
			g.EmbedMessages = v.(bool)
		}
	}
	s.configs[guildID] = g
	return nil
}

func (s *store) CleanedNicknames(ctx context.Context, guildID string) (map[string]models.CleanedNickname, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.CleanedNickname)
	for k, v := range s.nicks[guildID] {
		out[k] = v
	}
	return out, nil
}

func (s *store) PutCleanedNickname(ctx context.Context, c models.CleanedNickname) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nicks[c.GuildID] == nil {
		s.nicks[c.GuildID] = make(map[string]models.CleanedNickname)
	}
	s.nicks[c.GuildID][c.MemberID] = c
	return nil
}

func (s *store) DeleteCleanedNickname(ctx context.Context, guildID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nicks[guildID], memberID)
	return nil
}

func (s *store) TextChannelsLinkedTo(ctx context.Context, guildID, voiceChannelID string) ([]string, error) {
	if voiceChannelID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[voiceChannelID], nil
}

func (s *store) record(guildID, memberID string) (string, bool) {
	rec, ok := s.entry(guildID, memberID)
	return rec.Nickname, ok
}

func (s *store) entry(guildID, memberID string) (models.CleanedNickname, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.nicks[guildID][memberID]
	return rec, ok
}

type edit struct {
	Member string
	Nick   string
}

type reply struct {
	Channel string
	Message string
	Content string
	Embeds  []platform.Embed
}

type fakePlatform struct {
	mu sync.Mutex

	self       string
	guild      models.Guild
	members    map[string]models.Member
	overwrites map[string]map[string]platform.Overwrite
	readable   map[string]bool
	messages   map[string]models.Message
	channels   map[string]string

	memberErr error
	editErr   error
	addErr    error

	edits   []edit
	adds    []string
	sets    []string
	deletes []string
	replies []reply
}

func newPlatform(guildID string) *fakePlatform {
	return &fakePlatform{
		self: "bot",
		guild: models.Guild{
			ID:      guildID,
			OwnerID: "owner",
			Roles: []models.Role{
				{ID: guildID, Name: "@everyone", Position: 0},
				{ID: "member", Name: "Member", Position: 1},
				{ID: "keeper", Name: "Keeper", Position: 5},
				{ID: "admin", Name: "Admin", Position: 10},
			},
		},
		members: map[string]models.Member{
			"bot": {ID: "bot", Username: "keeper", Bot: true, Roles: []string{"keeper"}},
		},
		overwrites: make(map[string]map[string]platform.Overwrite),
		readable:   make(map[string]bool),
		messages:   make(map[string]models.Message),
		channels:   make(map[string]string),
	}
}

func (p *fakePlatform) setMember(m models.Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[m.ID] = m
}

func (p *fakePlatform) Self() string { return p.self }

func (p *fakePlatform) Guild(ctx context.Context, guildID string) (models.Guild, error) {
	return p.guild, nil
}

func (p *fakePlatform) Member(ctx context.Context, guildID, userID string) (models.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.memberErr != nil && userID != p.self {
		return models.Member{}, p.memberErr
	}
	m, ok := p.members[userID]
	if !ok {
		return models.Member{}, platform.ErrNotFound
	}
	return m.Clone(), nil
}

func (p *fakePlatform) Members(ctx context.Context, guildID string, fn func(models.Member) bool) error {
	p.mu.Lock()
	var all []models.Member
	for _, m := range p.members {
		all = append(all, m.Clone())
	}
	p.mu.Unlock()

	for _, m := range all {
		if !fn(m) {
			return nil
		}
	}
	return nil
}

func (p *fakePlatform) EditNickname(ctx context.Context, guildID, userID, nick string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.editErr != nil {
		return p.editErr
	}
	p.edits = append(p.edits, edit{Member: userID, Nick: nick})
	m := p.members[userID]
	m.Nick = nick
	p.members[userID] = m
	return nil
}

func (p *fakePlatform) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.addErr != nil {
		return p.addErr
	}
	p.adds = append(p.adds, userID+":"+roleID)
	m := p.members[userID]
	m.Roles = append(m.Roles, roleID)
	p.members[userID] = m
	return nil
}

func (p *fakePlatform) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return nil
}

func (p *fakePlatform) MemberOverwrite(ctx context.Context, channelID, userID string) (platform.Overwrite, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.overwrites[channelID][userID]
	return o, ok, nil
}

func (p *fakePlatform) SetMemberOverwrite(ctx context.Context, channelID, userID string, o platform.Overwrite) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.overwrites[channelID] == nil {
		p.overwrites[channelID] = make(map[string]platform.Overwrite)
	}
	p.overwrites[channelID][userID] = o
	p.sets = append(p.sets, channelID)
	return nil
}

func (p *fakePlatform) DeleteMemberOverwrite(ctx context.Context, channelID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.overwrites[channelID], userID)
	p.deletes = append(p.deletes, channelID)
	return nil
}

func (p *fakePlatform) CanReadHistory(ctx context.Context, channelID, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readable[channelID], nil
}

func (p *fakePlatform) ChannelName(ctx context.Context, channelID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, ok := p.channels[channelID]
	if !ok {
		return "", platform.ErrNotFound
	}
	return name, nil
}

func (p *fakePlatform) Message(ctx context.Context, channelID, messageID string) (models.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.messages[messageID]
	if !ok || m.ChannelID != channelID {
		return models.Message{}, platform.ErrNotFound
	}
	return m.Clone(), nil
}

func (p *fakePlatform) Reply(ctx context.Context, channelID, messageID, content string, embeds ...platform.Embed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, reply{Channel: channelID, Message: messageID, Content: content, Embeds: embeds})
	return nil
}

type env struct {
	store    *store
	cache    *cache.Cache
	platform *fakePlatform
}

func newEnv(guildID string) env {
	s := newStore()
	return env{
		store:    s,
		cache:    cache.NewCache(testLogger(), s),
		platform: newPlatform(guildID),
	}
}
