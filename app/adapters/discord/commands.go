package discord

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	roleservice "github.com/rolewarden/rolewarden/app/modules/rolemessage/application"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	"github.com/rolewarden/rolewarden/internal/observability/attr"
)

// commandDefinitions declares the /rolemsg command tree. Everything is
// gated behind Manage Roles; Discord enforces the default and onCommand
// re-checks in case a guild loosened it.
func commandDefinitions() []*discordgo.ApplicationCommand {
	manageRoles := int64(discordgo.PermissionManageRoles)
	styles := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "reactions", Value: string(roletypes.StyleReaction)},
		{Name: "buttons", Value: string(roletypes.StyleButton)},
		{Name: "menus", Value: string(roletypes.StyleMenu)},
	}
	modes := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "normal", Value: string(roletypes.ModeNormal)},
		{Name: "unique", Value: string(roletypes.ModeUnique)},
		{Name: "exclusive", Value: string(roletypes.ModeExclusive)},
	}

	return []*discordgo.ApplicationCommand{{
		Name:                     "rolemsg",
		Description:              "Manage role assignment messages",
		DefaultMemberPermissions: &manageRoles,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name: "create", Description: "Create a new role message",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "channel", Description: "Target channel", Type: discordgo.ApplicationCommandOptionChannel, Required: true},
					{Name: "style", Description: "Interaction style", Type: discordgo.ApplicationCommandOptionString, Required: true, Choices: styles},
					{Name: "title", Description: "Embed title", Type: discordgo.ApplicationCommandOptionString},
					{Name: "description", Description: "Embed description", Type: discordgo.ApplicationCommandOptionString},
				},
			},
			{
				Name: "bind", Description: "Bind a trigger to a role",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "message", Description: "Role message ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "role", Description: "Role to bind", Type: discordgo.ApplicationCommandOptionRole, Required: true},
					{Name: "emoji", Description: "Trigger emoji (reaction style)", Type: discordgo.ApplicationCommandOptionString},
					{Name: "label", Description: "Button label", Type: discordgo.ApplicationCommandOptionString},
					{Name: "mode", Description: "Assignment mode", Type: discordgo.ApplicationCommandOptionString, Choices: modes},
				},
			},
			{
				Name: "unbind", Description: "Remove a trigger binding",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "message", Description: "Role message ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "trigger", Description: "Trigger emoji or role ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
				},
			},
			{
				Name: "category", Description: "Add a menu category",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "message", Description: "Role message ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "name", Description: "Category name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "emoji", Description: "Category emoji", Type: discordgo.ApplicationCommandOptionString},
					{Name: "description", Description: "Category description", Type: discordgo.ApplicationCommandOptionString},
				},
			},
			{
				Name: "uncategory", Description: "Remove a menu category",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "message", Description: "Role message ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "category", Description: "Category ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
				},
			},
			{
				Name: "catbind", Description: "Bind a role inside a category",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "message", Description: "Role message ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "category", Description: "Category ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "role", Description: "Role to bind", Type: discordgo.ApplicationCommandOptionRole, Required: true},
					{Name: "mode", Description: "Assignment mode", Type: discordgo.ApplicationCommandOptionString, Choices: modes},
					{Name: "label", Description: "Option label", Type: discordgo.ApplicationCommandOptionString},
					{Name: "emoji", Description: "Option emoji", Type: discordgo.ApplicationCommandOptionString},
					{Name: "description", Description: "Option description", Type: discordgo.ApplicationCommandOptionString},
				},
			},
			{
				Name: "catunbind", Description: "Remove a role from its category",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "message", Description: "Role message ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "role", Description: "Bound role", Type: discordgo.ApplicationCommandOptionRole, Required: true},
				},
			},
			{
				Name: "settings", Description: "Adjust activation gates",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "message", Description: "Role message ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "max_roles", Description: "Role cap, 0 clears", Type: discordgo.ApplicationCommandOptionInteger},
					{Name: "required_role", Description: "Toggle a required role", Type: discordgo.ApplicationCommandOptionRole},
				},
			},
			{Name: "list", Description: "List role messages", Type: discordgo.ApplicationCommandOptionSubCommand},
			{Name: "export", Description: "Export configuration as JSON", Type: discordgo.ApplicationCommandOptionSubCommand},
			{Name: "verify", Description: "Audit role messages", Type: discordgo.ApplicationCommandOptionSubCommand},
			{Name: "cleanup", Description: "Repair deleted messages and roles", Type: discordgo.ApplicationCommandOptionSubCommand},
			{Name: "rebuild", Description: "Re-render every role message", Type: discordgo.ApplicationCommandOptionSubCommand},
			{
				Name: "clone", Description: "Clone a role message to another channel",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "message", Description: "Role message ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "channel", Description: "Target channel", Type: discordgo.ApplicationCommandOptionChannel, Required: true},
				},
			},
			{
				Name: "delete", Description: "Delete a role message configuration",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "message", Description: "Role message ID", Type: discordgo.ApplicationCommandOptionString, Required: true},
				},
			},
		},
	}}
}

func (g *Gateway) onCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.Member == nil || i.Member.User == nil {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "rolemsg" || len(data.Options) == 0 {
		return
	}
	if i.Member.Permissions&discordgo.PermissionManageRoles == 0 {
		g.respondEphemeral(i, "You need the Manage Roles permission for this.")
		return
	}

	sub := data.Options[0]
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, o := range sub.Options {
		opts[o.Name] = o
	}

	guildID := sharedtypes.GuildID(i.GuildID)
	result, err := g.runCommand(ctx, guildID, sub.Name, opts)
	if err != nil {
		g.logger.ErrorContext(ctx, "Command failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("guild_id", i.GuildID),
			attr.String("subcommand", sub.Name),
			attr.Error(err),
		)
		g.respondEphemeral(i, fmt.Sprintf("Command failed: %v", err))
		return
	}

	if export, ok := result.Success.(*roleservice.ConfigExport); ok {
		g.respondFile(i, "rolewarden-export.json", export.JSON)
		return
	}
	g.respondEphemeral(i, describeCommandResult(sub.Name, result))
}

func (g *Gateway) runCommand(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	name string,
	opts map[string]*discordgo.ApplicationCommandInteractionDataOption,
) (roleservice.RoleOperationResult, error) {
	str := func(key string) string {
		if o, ok := opts[key]; ok {
			return o.StringValue()
		}
		return ""
	}
	messageID := sharedtypes.MessageID(str("message"))

	switch name {
	case "create":
		channel := opts["channel"].ChannelValue(nil)
		return g.service.CreateRoleMessage(ctx, guildID,
			sharedtypes.ChannelID(channel.ID),
			roletypes.Style(str("style")),
			roletypes.View{Title: str("title"), Description: str("description")},
		)
	case "bind":
		role := opts["role"].RoleValue(nil, "")
		emoji := normalizeEmoji(str("emoji"))
		trigger := sharedtypes.TriggerKey(emoji)
		if trigger == "" {
			trigger = sharedtypes.TriggerKey(role.ID)
		}
		return g.service.AddBinding(ctx, guildID, messageID, trigger, roletypes.Binding{
			RoleID: sharedtypes.RoleID(role.ID),
			Mode:   bindingMode(str("mode")),
			Label:  str("label"),
			Emoji:  emoji,
		})
	case "unbind":
		return g.service.RemoveBinding(ctx, guildID, messageID, sharedtypes.TriggerKey(normalizeEmoji(str("trigger"))))
	case "category":
		return g.service.AddCategory(ctx, guildID, messageID, str("name"), normalizeEmoji(str("emoji")), str("description"))
	case "uncategory":
		return g.service.RemoveCategory(ctx, guildID, messageID, sharedtypes.CategoryID(str("category")))
	case "catbind":
		role := opts["role"].RoleValue(nil, "")
		return g.service.AddCategoryBinding(ctx, guildID, messageID,
			sharedtypes.CategoryID(str("category")),
			roletypes.Binding{
				RoleID:      sharedtypes.RoleID(role.ID),
				Mode:        bindingMode(str("mode")),
				Label:       str("label"),
				Emoji:       normalizeEmoji(str("emoji")),
				Description: str("description"),
			})
	case "catunbind":
		role := opts["role"].RoleValue(nil, "")
		return g.service.RemoveCategoryBinding(ctx, guildID, messageID, sharedtypes.RoleID(role.ID))
	case "settings":
		var maxRoles *int
		if o, ok := opts["max_roles"]; ok {
			v := int(o.IntValue())
			maxRoles = &v
		}
		var required *sharedtypes.RoleID
		if o, ok := opts["required_role"]; ok {
			id := sharedtypes.RoleID(o.RoleValue(nil, "").ID)
			required = &id
		}
		return g.service.UpdateSettings(ctx, guildID, messageID, maxRoles, required)
	case "list":
		return g.service.ListRoleMessages(ctx, guildID)
	case "export":
		return g.service.ExportConfig(ctx, guildID)
	case "verify":
		return g.service.Verify(ctx, guildID)
	case "cleanup":
		return g.service.Cleanup(ctx, guildID)
	case "rebuild":
		return g.service.Rebuild(ctx, guildID)
	case "clone":
		channel := opts["channel"].ChannelValue(nil)
		return g.service.CloneRoleMessage(ctx, guildID, messageID, sharedtypes.ChannelID(channel.ID))
	case "delete":
		return g.service.DeleteRoleMessage(ctx, guildID, messageID)
	}
	return roleservice.RoleOperationResult{}, fmt.Errorf("unknown subcommand %q", name)
}

// normalizeEmoji rewrites a custom emoji mention such as <:tada:123> or
// <a:blob:456> into the name:id form carried by reaction gateway events,
// so stored triggers compare equal to Emoji.APIName(). Unicode emoji and
// already-normalized values pass through unchanged.
func normalizeEmoji(value string) string {
	if !strings.HasPrefix(value, "<") || !strings.HasSuffix(value, ">") {
		return value
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(value, "<"), ">")
	inner = strings.TrimPrefix(inner, "a")
	inner = strings.TrimPrefix(inner, ":")
	if name, id, ok := strings.Cut(inner, ":"); ok && name != "" && id != "" {
		return name + ":" + id
	}
	return value
}

func bindingMode(value string) roletypes.Mode {
	switch roletypes.Mode(value) {
	case roletypes.ModeUnique:
		return roletypes.ModeUnique
	case roletypes.ModeExclusive:
		return roletypes.ModeExclusive
	default:
		return roletypes.ModeNormal
	}
}

func describeCommandResult(name string, result roleservice.RoleOperationResult) string {
	switch payload := result.Success.(type) {
	case *roleservice.RoleMessageCreated:
		return fmt.Sprintf("Role message `%s` is live.", payload.MessageID)
	case *roleservice.RoleMessageList:
		if len(payload.Messages) == 0 {
			return "No role messages configured."
		}
		out := fmt.Sprintf("%d role message(s):\n", len(payload.Messages))
		for _, m := range payload.Messages {
			state := "live"
			if m.Stale {
				state = "stale"
			}
			out += fmt.Sprintf("`%s` in <#%s>, %s, %d role(s), %s\n",
				m.MessageID, m.ChannelID, m.Style, len(m.BoundRoleIDs()), state)
		}
		return out
	case *roleservice.ReconcileReport:
		return fmt.Sprintf("%s finished: %d message(s) checked, %d issue(s), %d repaired.",
			payload.Operation, payload.MessagesChecked, len(payload.Issues), payload.Repaired)
	default:
		return fmt.Sprintf("`%s` done.", name)
	}
}

func (g *Gateway) respondFile(i *discordgo.InteractionCreate, name string, contents []byte) {
	err := g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Files: []*discordgo.File{{
				Name:        name,
				ContentType: "application/json",
				Reader:      bytes.NewReader(contents),
			}},
		},
	})
	if err != nil {
		g.logger.Error("Failed to respond with export file", attr.Error(err))
	}
}
