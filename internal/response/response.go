package response

import (
	"context"
	"fmt"
	"log/slog"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/keeper/internal/utils"
)

const (
	colorInfo    = 0x5865F2
	colorWarning = 0xFFA500
	colorError   = 0xFF0000
)

type MessageOptions struct {
	Content   string
	Embeds    []*dg.MessageEmbed
	Ephemeral bool
}

// Responder answers interactions through followups on a deferred response.
type Responder struct {
	s   *dg.Session
	l   *slog.Logger
	ctx context.Context
}

func NewSessionResponder(ctx context.Context, s *dg.Session, l *slog.Logger) *Responder {
	return &Responder{
		s:   s,
		l:   l,
		ctx: ctx,
	}
}

func (r *Responder) Defer(i *dg.InteractionCreate, ephemeral bool) error {
	resp := &dg.InteractionResponse{Type: dg.InteractionResponseDeferredChannelMessageWithSource}
	if ephemeral {
		resp.Data = &dg.InteractionResponseData{Flags: dg.MessageFlagsEphemeral}
	}

	return r.s.InteractionRespond(i.Interaction, resp, dg.WithContext(r.ctx))
}

func (r *Responder) Send(i *dg.InteractionCreate, opts MessageOptions) error {
	params := &dg.WebhookParams{
		Content:         opts.Content,
		Embeds:          opts.Embeds,
		AllowedMentions: &dg.MessageAllowedMentions{},
	}
	if opts.Ephemeral {
		params.Flags = dg.MessageFlagsEphemeral
	}

	_, err := r.s.FollowupMessageCreate(i.Interaction, true, params, dg.WithContext(r.ctx))
	return err
}

// Notice sends a single embed built from a title and description.
func (r *Responder) Notice(i *dg.InteractionCreate, title, description string, ephemeral bool) error {
	embed := &dg.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       colorInfo,
	}
	return r.Send(i, MessageOptions{Embeds: []*dg.MessageEmbed{embed}, Ephemeral: ephemeral})
}

// Fail reports a failure on an interaction that was already deferred.
func (r *Responder) Fail(i *dg.InteractionCreate, f utils.Failure) error {
	r.l.Warn("handler failure", "type", f.Type, "message", f.Message, "data", f.Data)

	return r.Send(i, MessageOptions{Embeds: []*dg.MessageEmbed{FailureEmbed(f)}, Ephemeral: true})
}

// Reject reports a failure on an interaction that has not been answered yet.
func (r *Responder) Reject(i *dg.InteractionCreate, f utils.Failure) error {
	r.l.Warn("interaction rejected", "type", f.Type, "message", f.Message, "data", f.Data)

	return r.s.InteractionRespond(i.Interaction, &dg.InteractionResponse{
		Type: dg.InteractionResponseChannelMessageWithSource,
		Data: &dg.InteractionResponseData{
			Embeds: []*dg.MessageEmbed{FailureEmbed(f)},
			Flags:  dg.MessageFlagsEphemeral,
		},
	}, dg.WithContext(r.ctx))
}

func FailureEmbed(f utils.Failure) *dg.MessageEmbed {
	embed := &dg.MessageEmbed{Description: f.Message, Color: colorWarning}

	switch f.Type {
	case utils.ErrInternal:
		detail := "An unexpected error occurred."
		if err, ok := f.Data["error"]; ok {
			detail = fmt.Sprintf("%v", err)
		}
		embed.Title = "Something Went Wrong"
		embed.Description = fmt.Sprintf("%s\n\n%s", f.Message, utils.WrapInCode(detail))
		embed.Color = colorError

	case utils.ErrBadInput:
		embed.Title = "Invalid Input"
		embed.Description = fmt.Sprintf("%s\n\nDouble-check your input and try again.", f.Message)

	case utils.ErrNotAllowed:
		embed.Title = "Permission Denied"
		embed.Description = fmt.Sprintf("%s\n\nIf this doesn't seem right, let an admin know.", f.Message)
		embed.Color = colorError

	case utils.ErrNotFound:
		embed.Title = "Not Found"

	case utils.ErrTooLarge:
		embed.Title = "Response Too Large"
		embed.Description = "The output exceeds Discord's message size limit. Try narrowing down your request."

	case utils.ErrBusy:
		embed.Title = "Already Running"
		embed.Description = fmt.Sprintf("%s\n\nWait for it to finish and try again.", f.Message)
	}

	return embed
}
