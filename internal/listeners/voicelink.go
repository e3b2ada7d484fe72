package listeners

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/glotchimo/keeper/internal/platform"
	"github.com/glotchimo/keeper/internal/router"
	"github.com/graxinc/errutil"
)

// VoiceLinks shows linked text channels to members while they sit in the
// voice channel and hides them again when they leave.
type VoiceLinks struct {
	l     *slog.Logger
	links LinkStore
	p     platform.Client
}

func NewVoiceLinks(l *slog.Logger, links LinkStore, p platform.Client) *VoiceLinks {
	return &VoiceLinks{l: l, links: links, p: p}
}

func (v *VoiceLinks) Handle(ctx context.Context, e router.Event) error {
	if e.Voice == nil || e.Voice.Before == e.Voice.After {
		return nil
	}

	member := e.Voice.Member
	if member.Username == "" {
		m, err := v.p.Member(ctx, e.GuildID, member.ID)
		if platform.Ignorable(err) {
			return nil
		} else if err != nil {
			return errutil.With(err)
		}
		member = m
	}
	if member.Bot {
		return nil
	}

	before, err := v.links.TextChannelsLinkedTo(ctx, e.GuildID, e.Voice.Before)
	if err != nil {
		return errutil.With(err)
	}
	after, err := v.links.TextChannelsLinkedTo(ctx, e.GuildID, e.Voice.After)
	if err != nil {
		return errutil.With(err)
	}

	var errs []error
	for _, ch := range before {
		if slices.Contains(after, ch) {
			continue
		}
		if err := v.revoke(ctx, ch, member.ID); err != nil {
			errs = append(errs, err)
		}
	}
	for _, ch := range after {
		if slices.Contains(before, ch) {
			continue
		}
		if err := v.grant(ctx, ch, member.ID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (v *VoiceLinks) revoke(ctx context.Context, channelID, memberID string) error {
	_, ok, err := v.p.MemberOverwrite(ctx, channelID, memberID)
	if platform.Ignorable(err) || (err == nil && !ok) {
		return nil
	} else if err != nil {
		return errutil.With(err)
	}

	if err := v.p.DeleteMemberOverwrite(ctx, channelID, memberID); err != nil && !platform.Ignorable(err) {
		return errutil.With(err)
	}

	return nil
}

func (v *VoiceLinks) grant(ctx context.Context, channelID, memberID string) error {
	o, _, err := v.p.MemberOverwrite(ctx, channelID, memberID)
	if platform.Ignorable(err) {
		return nil
	} else if err != nil {
		return errutil.With(err)
	}
	if o.Allow&platform.PermissionViewChannel != 0 && o.Deny&platform.PermissionViewChannel == 0 {
		return nil
	}

	o.Allow |= platform.PermissionViewChannel
	o.Deny &^= platform.PermissionViewChannel
	if err := v.p.SetMemberOverwrite(ctx, channelID, memberID, o); err != nil && !platform.Ignorable(err) {
		return errutil.With(err)
	}

	return nil
}
