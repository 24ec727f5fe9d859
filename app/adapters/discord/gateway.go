package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	roleservice "github.com/rolewarden/rolewarden/app/modules/rolemessage/application"
	roledispatch "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/dispatch"
	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	"github.com/rolewarden/rolewarden/internal/observability/attr"
)

// Gateway binds discordgo gateway events to the role engine: reactions and
// component interactions become activations, slash commands become
// configuration and reconcile calls.
type Gateway struct {
	session   *discordgo.Session
	service   roleservice.Service
	store     roledb.Store
	registrar *roledispatch.Registrar
	logger    *slog.Logger
}

func NewGateway(
	session *discordgo.Session,
	service roleservice.Service,
	store roledb.Store,
	registrar *roledispatch.Registrar,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		session:   session,
		service:   service,
		store:     store,
		registrar: registrar,
		logger:    logger,
	}
}

// Start registers the event handlers and opens the gateway connection.
func (g *Gateway) Start(ctx context.Context) error {
	g.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions

	g.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		g.onReady(ctx, r)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.MessageReactionAdd) {
		g.onReaction(ctx, e.MessageReaction, roleservice.ActivationSelect)
	})
	g.session.AddHandler(func(s *discordgo.Session, e *discordgo.MessageReactionRemove) {
		g.onReaction(ctx, e.MessageReaction, roleservice.ActivationDeselect)
	})
	g.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		g.onInteraction(ctx, i)
	})

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

// Close shuts the gateway connection.
func (g *Gateway) Close() error {
	return g.session.Close()
}

func (g *Gateway) onReady(ctx context.Context, r *discordgo.Ready) {
	ctx = attr.WithCorrelationID(ctx, uuid.New().String())

	guildIDs := make([]sharedtypes.GuildID, 0, len(r.Guilds))
	for _, guild := range r.Guilds {
		guildIDs = append(guildIDs, sharedtypes.GuildID(guild.ID))
	}
	if err := g.registrar.RegisterAll(ctx, g.store, guildIDs); err != nil {
		g.logger.ErrorContext(ctx, "Failed to seed dispatch routes", attr.Error(err))
	}

	if _, err := g.session.ApplicationCommandBulkOverwrite(g.session.State.User.ID, "", commandDefinitions()); err != nil {
		g.logger.ErrorContext(ctx, "Failed to register application commands", attr.Error(err))
	}

	g.logger.InfoContext(ctx, "Gateway ready",
		attr.Int("guilds", len(guildIDs)),
		attr.String("user", g.session.State.User.Username),
	)
}

func (g *Gateway) onReaction(ctx context.Context, r *discordgo.MessageReaction, kind roleservice.ActivationKind) {
	if r.GuildID == "" || r.UserID == g.session.State.User.ID {
		return
	}
	ctx = attr.WithCorrelationID(ctx, uuid.New().String())

	_, err := g.service.ActivateTrigger(ctx,
		sharedtypes.GuildID(r.GuildID),
		sharedtypes.MessageID(r.MessageID),
		sharedtypes.TriggerKey(r.Emoji.APIName()),
		sharedtypes.MemberID(r.UserID),
		kind,
	)
	if err != nil && !isUnmanaged(err) {
		g.logger.ErrorContext(ctx, "Reaction activation failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("guild_id", r.GuildID),
			attr.String("message_id", r.MessageID),
			attr.Error(err),
		)
	}
}

func (g *Gateway) onInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	ctx = attr.WithCorrelationID(ctx, uuid.New().String())

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		g.onComponent(ctx, i)
	case discordgo.InteractionApplicationCommand:
		g.onCommand(ctx, i)
	}
}

func (g *Gateway) onComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.Member == nil || i.Member.User == nil {
		return
	}
	data := i.MessageComponentData()
	identity, ok := g.resolveComponent(data.CustomID)
	if !ok {
		// Not a component this engine minted.
		g.respondEphemeral(i, "This role message is no longer active.")
		return
	}

	guildID := sharedtypes.GuildID(i.GuildID)
	memberID := sharedtypes.MemberID(i.Member.User.ID)

	var result roleservice.RoleOperationResult
	var err error
	switch identity.Kind {
	case roledispatch.KindButton:
		result, err = g.service.ActivateTrigger(ctx,
			guildID,
			identity.MessageID,
			sharedtypes.TriggerKey(identity.RoleID),
			memberID,
			roleservice.ActivationSelect,
		)
	case roledispatch.KindMenu:
		desired := make([]sharedtypes.RoleID, 0, len(data.Values))
		for _, v := range data.Values {
			desired = append(desired, sharedtypes.RoleID(v))
		}
		result, err = g.service.ApplyMenuSelection(ctx,
			guildID,
			identity.MessageID,
			identity.CategoryID,
			memberID,
			desired,
		)
	}

	if err != nil {
		if isUnmanaged(err) {
			// Parsed off the wire but the document is gone or stale.
			g.respondEphemeral(i, "This role message is no longer active.")
			return
		}
		g.logger.ErrorContext(ctx, "Component activation failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("custom_id", data.CustomID),
			attr.Error(err),
		)
		g.respondEphemeral(i, "Something went wrong applying your roles.")
		return
	}
	g.respondEphemeral(i, describeOutcome(result))
}

// resolveComponent maps a component custom ID to its identity. The route
// table is authoritative, but components minted before the registrar was
// seeded (or by a previous process) still carry a parseable custom ID, so
// those fall back to decoding the wire form directly.
func (g *Gateway) resolveComponent(customID string) (roledispatch.Identity, bool) {
	if identity, ok := g.registrar.Lookup(customID); ok {
		return identity, true
	}
	return roledispatch.ParseCustomID(customID)
}

func (g *Gateway) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		g.logger.Error("Failed to respond to interaction", attr.Error(err))
	}
}

// describeOutcome renders an activation result for the ephemeral reply.
func describeOutcome(result roleservice.RoleOperationResult) string {
	if rej, ok := result.Failure.(*roleservice.ActivationRejected); ok {
		switch rej.Reason {
		case roleservice.RejectMissingRequiredRole:
			return "You are missing a role required to use this message."
		case roleservice.RejectCapReached:
			return "You already hold the maximum number of roles from this message."
		default:
			return "That selection is not available."
		}
	}
	applied, ok := result.Success.(*roleservice.ActivationApplied)
	if !ok {
		return "Done."
	}
	var parts []string
	if len(applied.Added) > 0 {
		parts = append(parts, fmt.Sprintf("added %s", mentionRoles(applied.Added)))
	}
	if len(applied.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("removed %s", mentionRoles(applied.Removed)))
	}
	if len(parts) == 0 {
		return "No role changes."
	}
	reply := "Roles updated: " + strings.Join(parts, ", ") + "."
	if len(applied.Failures) > 0 {
		reply += fmt.Sprintf(" %d change(s) were refused by Discord.", len(applied.Failures))
	}
	return reply
}

func mentionRoles(ids []sharedtypes.RoleID) string {
	mentions := make([]string, 0, len(ids))
	for _, id := range ids {
		mentions = append(mentions, fmt.Sprintf("<@&%s>", id))
	}
	return strings.Join(mentions, " ")
}

// isUnmanaged filters the errors expected for messages the engine does not
// manage, so reaction spam on ordinary messages stays quiet.
func isUnmanaged(err error) bool {
	return errors.Is(err, roleservice.ErrRoleMessageMissing) ||
		errors.Is(err, roleservice.ErrRoleMessageStale)
}
