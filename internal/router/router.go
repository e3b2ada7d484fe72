// Package router fans gateway events out to the listeners subscribed to
// their kind.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/glotchimo/keeper/internal/models"
	"github.com/graxinc/errutil"
)

type Kind int

const (
	KindMessageCreate Kind = iota
	KindMemberAdd
	KindMemberUpdate
	KindMemberRemove
	KindVoiceStateUpdate
)

func (k Kind) String() string {
	switch k {
	case KindMessageCreate:
		return "MESSAGE_CREATE"
	case KindMemberAdd:
		return "GUILD_MEMBER_ADD"
	case KindMemberUpdate:
		return "GUILD_MEMBER_UPDATE"
	case KindMemberRemove:
		return "GUILD_MEMBER_REMOVE"
	case KindVoiceStateUpdate:
		return "VOICE_STATE_UPDATE"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is a decoded gateway event. Which payload field is set depends on
// Kind: Message for message creation, Member for member events (the state
// after the change), Before for member updates when the previous state is
// known, and Voice for voice state changes.
type Event struct {
	Kind    Kind
	GuildID string

	Message *models.Message
	Member  *models.Member
	Before  *models.Member
	Voice   *models.VoiceChange
}

// Clone deep-copies the payloads so one handler cannot change what the next
// one sees.
func (e Event) Clone() Event {
	if e.Message != nil {
		m := e.Message.Clone()
		e.Message = &m
	}
	if e.Member != nil {
		m := e.Member.Clone()
		e.Member = &m
	}
	if e.Before != nil {
		m := e.Before.Clone()
		e.Before = &m
	}
	if e.Voice != nil {
		v := *e.Voice
		v.Member = v.Member.Clone()
		e.Voice = &v
	}
	return e
}

type Handler interface {
	Handle(context.Context, Event) error
}

type HandlerFunc func(context.Context, Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Ingestor is told about every guild a message is seen in before any
// message handler runs.
type Ingestor interface {
	EnsureGuild(ctx context.Context, guildID string) error
}

type Router struct {
	l        *slog.Logger
	ingest   Ingestor
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

func New(l *slog.Logger, ingest Ingestor) *Router {
	return &Router{
		l:        l,
		ingest:   ingest,
		handlers: make(map[Kind][]Handler),
	}
}

// Register subscribes h to events of kind k. Handlers run in registration
// order.
func (r *Router) Register(k Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[k] = append(r.handlers[k], h)
}

// Dispatch runs every handler subscribed to the event's kind. A handler that
// fails or panics is logged and the rest still run. Messages from humans are
// ingested first. The returned error is only set when ingestion fails, in
// which case no handler runs.
func (r *Router) Dispatch(ctx context.Context, e Event) error {
	if e.Kind == KindMessageCreate && e.GuildID != "" && r.ingest != nil && !fromBot(e) {
		if err := r.ingest.EnsureGuild(ctx, e.GuildID); err != nil {
			return errutil.With(err)
		}
	}

	r.mu.RLock()
	handlers := r.handlers[e.Kind]
	r.mu.RUnlock()

	for _, h := range handlers {
		r.run(ctx, h, e.Clone())
	}

	return nil
}

func fromBot(e Event) bool {
	return e.Message != nil && e.Message.Author.Bot
}

func (r *Router) run(ctx context.Context, h Handler, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := make([]byte, 4096)
			stack = stack[:runtime.Stack(stack, false)]
			r.l.Error("panic recovered", "event", e.Kind.String(), "handler", fmt.Sprintf("%T", h), "guild", e.GuildID, "recovered", rec, "stack", string(stack))
		}
	}()

	if err := h.Handle(ctx, e); err != nil {
		r.l.Error("error handling event", "event", e.Kind.String(), "handler", fmt.Sprintf("%T", h), "guild", e.GuildID, "error", err)
	}
}
