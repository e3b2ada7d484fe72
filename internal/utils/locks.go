package utils

import "sync"

// GuildLocks hands out one slot per guild, for jobs that must not run twice
// at once in the same guild.
type GuildLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewGuildLocks() *GuildLocks {
	return &GuildLocks{held: make(map[string]struct{})}
}

// TryAcquire takes the guild's slot, reporting false if it is already taken.
func (g *GuildLocks) TryAcquire(guildID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[guildID]; ok {
		return false
	}
	g.held[guildID] = struct{}{}
	return true
}

func (g *GuildLocks) Release(guildID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, guildID)
}
