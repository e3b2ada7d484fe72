package models

import "time"

type VoiceLink struct {
	GuildID        string
	TextChannelID  string
	VoiceChannelID string
	Created        time.Time
}

func (v VoiceLink) Map() map[string]any {
	return map[string]any{
		"guild_id":         v.GuildID,
		"text_channel_id":  v.TextChannelID,
		"voice_channel_id": v.VoiceChannelID,
	}
}

func (v VoiceLink) Table() Table {
	return TableVoiceLinks
}
