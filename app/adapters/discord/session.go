package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	roleservice "github.com/rolewarden/rolewarden/app/modules/rolemessage/application"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// Adapter implements the engine's Platform port on top of a discordgo
// session. All calls go through the REST API; gateway events are handled
// separately by the Gateway type.
type Adapter struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func NewAdapter(session *discordgo.Session, logger *slog.Logger) *Adapter {
	return &Adapter{session: session, logger: logger}
}

var _ roleservice.Platform = (*Adapter)(nil)

func (a *Adapter) MemberRoles(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID) ([]sharedtypes.RoleID, error) {
	member, err := a.session.GuildMember(string(guildID), string(memberID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapRESTError(err)
	}
	roles := make([]sharedtypes.RoleID, 0, len(member.Roles))
	for _, r := range member.Roles {
		roles = append(roles, sharedtypes.RoleID(r))
	}
	return roles, nil
}

func (a *Adapter) AddRole(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID, roleID sharedtypes.RoleID) error {
	err := a.session.GuildMemberRoleAdd(string(guildID), string(memberID), string(roleID), discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (a *Adapter) RemoveRole(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID, roleID sharedtypes.RoleID) error {
	err := a.session.GuildMemberRoleRemove(string(guildID), string(memberID), string(roleID), discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (a *Adapter) GuildRoles(ctx context.Context, guildID sharedtypes.GuildID) (map[sharedtypes.RoleID]int, error) {
	roles, err := a.session.GuildRoles(string(guildID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapRESTError(err)
	}
	out := make(map[sharedtypes.RoleID]int, len(roles))
	for _, r := range roles {
		out[sharedtypes.RoleID(r.ID)] = r.Position
	}
	return out, nil
}

// BotRolePosition returns the highest position among the bot's own roles.
// Roles at or above this position cannot be granted or removed.
func (a *Adapter) BotRolePosition(ctx context.Context, guildID sharedtypes.GuildID) (int, error) {
	me, err := a.session.GuildMember(string(guildID), a.session.State.User.ID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, mapRESTError(err)
	}
	positions, err := a.GuildRoles(ctx, guildID)
	if err != nil {
		return 0, err
	}
	top := 0
	for _, r := range me.Roles {
		if pos, ok := positions[sharedtypes.RoleID(r)]; ok && pos > top {
			top = pos
		}
	}
	return top, nil
}

func (a *Adapter) MessageExists(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID) (bool, error) {
	_, err := a.session.ChannelMessage(string(channelID), string(messageID), discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	mapped := mapRESTError(err)
	if errors.Is(mapped, roleservice.ErrPlatformNotFound) {
		return false, nil
	}
	return false, mapped
}

func (a *Adapter) CreateMessage(ctx context.Context, msg *roletypes.RoleMessage) (sharedtypes.MessageID, error) {
	sent, err := a.session.ChannelMessageSendComplex(string(msg.ChannelID), &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{renderEmbed(msg)},
		Components: renderComponents(msg),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapRESTError(err)
	}
	return sharedtypes.MessageID(sent.ID), nil
}

func (a *Adapter) SyncMessageView(ctx context.Context, msg *roletypes.RoleMessage) error {
	embeds := []*discordgo.MessageEmbed{renderEmbed(msg)}
	components := renderComponents(msg)
	_, err := a.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    string(msg.ChannelID),
		ID:         string(msg.MessageID),
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (a *Adapter) AddReaction(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, emoji sharedtypes.TriggerKey) error {
	err := a.session.MessageReactionAdd(string(channelID), string(messageID), string(emoji), discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (a *Adapter) RemoveMemberReaction(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, emoji sharedtypes.TriggerKey, memberID sharedtypes.MemberID) error {
	err := a.session.MessageReactionRemove(string(channelID), string(messageID), string(emoji), string(memberID), discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (a *Adapter) ClearReactions(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID) error {
	err := a.session.MessageReactionsRemoveAll(string(channelID), string(messageID), discordgo.WithContext(ctx))
	return mapRESTError(err)
}

// mapRESTError folds discordgo REST errors into the engine's sentinels so
// the service can reason about them without importing discordgo.
func mapRESTError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage,
			discordgo.ErrCodeUnknownRole,
			discordgo.ErrCodeUnknownMember,
			discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownEmoji:
			return fmt.Errorf("%w: %s", roleservice.ErrPlatformNotFound, restErr.Message.Message)
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %s", roleservice.ErrForbidden, restErr.Message.Message)
		}
	}
	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", roleservice.ErrPlatformNotFound, restErr.Response.Status)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", roleservice.ErrForbidden, restErr.Response.Status)
		}
	}
	return err
}
