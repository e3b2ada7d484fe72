package bot

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/models"
	"github.com/glotchimo/keeper/internal/router"
)

type EventType int

const (
	EventTypeInteraction EventType = iota
	EventTypeGateway
)

type GuildEvent struct {
	Type EventType

	Interaction *dg.InteractionCreate
	Gateway     *router.Event
}

// messageEvent converts a guild message. Direct messages are not routed.
func messageEvent(m *dg.MessageCreate) (router.Event, bool) {
	if m.Message == nil || m.GuildID == "" || m.Author == nil {
		return router.Event{}, false
	}

	msg := models.MessageFromDiscord(m.Message)
	return router.Event{Kind: router.KindMessageCreate, GuildID: m.GuildID, Message: &msg}, true
}

func memberEvent(kind router.Kind, m *dg.Member, before *dg.Member) (router.Event, bool) {
	if m == nil || m.User == nil || m.GuildID == "" {
		return router.Event{}, false
	}

	member := models.MemberFromDiscord(m)
	e := router.Event{Kind: kind, GuildID: m.GuildID, Member: &member}
	if before != nil && before.User != nil {
		b := models.MemberFromDiscord(before)
		e.Before = &b
	}

	return e, true
}

func voiceEvent(v *dg.VoiceStateUpdate) (router.Event, bool) {
	if v.VoiceState == nil || v.GuildID == "" || v.UserID == "" {
		return router.Event{}, false
	}

	change := models.VoiceChangeFromDiscord(v)
	return router.Event{Kind: router.KindVoiceStateUpdate, GuildID: v.GuildID, Voice: &change}, true
}

// commandSetHash fingerprints a command set so unchanged sets are not
// re-uploaded on every start.
func commandSetHash(commands []*dg.ApplicationCommand) (string, error) {
	bytes, err := json.Marshal(commands)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(bytes)
	return fmt.Sprintf("%x", hash), nil
}
