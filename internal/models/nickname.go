package models

import "time"

// CleanedNickname records a nickname the bot assigned to a member itself.
// Base is the account name the nickname was cleaned from. It is empty when
// the bot cleaned a nickname the member picked, which then stays theirs.
type CleanedNickname struct {
	GuildID  string
	MemberID string
	Nickname string
	Base     string
	Created  time.Time
}

// FromBase reports whether the nickname stands in for the member's account
// name rather than for a nickname they chose.
func (c CleanedNickname) FromBase() bool {
	return c.Base != ""
}

func (c CleanedNickname) Map() map[string]any {
	return map[string]any{
		"guild_id":  c.GuildID,
		"member_id": c.MemberID,
		"nickname":  c.Nickname,
		"base":      c.Base,
	}
}

func (c CleanedNickname) Table() Table {
	return TableCleanedNicknames
}
