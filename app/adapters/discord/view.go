package discord

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	roledispatch "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/dispatch"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// Discord caps components at 5 action rows per message and 5 buttons per
// row. Bindings beyond that render nothing; configuration should not get
// there, but rendering must not error out if it does.
const (
	maxRows          = 5
	maxButtonsPerRow = 5
)

func renderEmbed(msg *roletypes.RoleMessage) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.View.Title,
		Description: msg.View.Description,
		Color:       parseEmbedColor(msg.View.Color),
	}
	if embed.Title == "" {
		embed.Title = "Role Assignment"
	}

	// Reaction messages have no components, so the embed carries the
	// trigger legend.
	if msg.Style == roletypes.StyleReaction && len(msg.Triggers) > 0 {
		var lines []string
		for _, roleID := range msg.BoundRoleIDs() {
			for key, b := range msg.Triggers {
				if b.RoleID != roleID {
					continue
				}
				label := b.Label
				if label == "" {
					label = fmt.Sprintf("<@&%s>", b.RoleID)
				}
				lines = append(lines, fmt.Sprintf("%s : %s", legendEmoji(string(key)), label))
				break
			}
		}
		legend := strings.Join(lines, "\n")
		if embed.Description == "" {
			embed.Description = legend
		} else {
			embed.Description += "\n\n" + legend
		}
	}
	return embed
}

func renderComponents(msg *roletypes.RoleMessage) []discordgo.MessageComponent {
	switch msg.Style {
	case roletypes.StyleButton:
		return renderButtons(msg)
	case roletypes.StyleMenu:
		return renderMenus(msg)
	default:
		return nil
	}
}

func renderButtons(msg *roletypes.RoleMessage) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent

	for _, key := range sortedTriggers(msg) {
		b := msg.Triggers[key]
		label := b.Label
		if label == "" {
			label = string(b.RoleID)
		}
		button := discordgo.Button{
			Label:    label,
			Style:    discordgo.SecondaryButton,
			CustomID: roledispatch.ButtonCustomID(b.RoleID, msg.MessageID),
		}
		if b.Emoji != "" {
			button.Emoji = componentEmoji(b.Emoji)
		}
		row = append(row, button)
		if len(row) == maxButtonsPerRow {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
		if len(rows) == maxRows {
			return rows
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

func renderMenus(msg *roletypes.RoleMessage) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for _, cat := range msg.Categories {
		if len(cat.Bindings) == 0 {
			continue
		}
		options := make([]discordgo.SelectMenuOption, 0, len(cat.Bindings))
		for _, b := range cat.Bindings {
			label := b.Label
			if label == "" {
				label = string(b.RoleID)
			}
			opt := discordgo.SelectMenuOption{
				Label:       label,
				Value:       string(b.RoleID),
				Description: b.Description,
			}
			if b.Emoji != "" {
				opt.Emoji = componentEmoji(b.Emoji)
			}
			options = append(options, opt)
		}

		maxValues := len(options)
		if cat.Unique() {
			// One pick at a time keeps unique enforcement simple: the
			// resolver never sees two competing selections at once.
			maxValues = 1
		}
		minValues := 0
		placeholder := cat.Name
		if cat.Emoji != "" {
			placeholder = cat.Emoji + " " + cat.Name
		}

		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    roledispatch.MenuCustomID(msg.MessageID, cat.ID),
				Placeholder: placeholder,
				MinValues:   &minValues,
				MaxValues:   maxValues,
				Options:     options,
			},
		}})
		if len(rows) == maxRows {
			break
		}
	}
	return rows
}

// parseEmbedColor accepts "#RRGGBB" or bare hex. Anything unparseable
// falls back to Discord's default embed color.
// legendEmoji formats a trigger key for embed text. A name:id custom
// emoji must be written back as a mention or Discord renders it as plain
// text.
func legendEmoji(key string) string {
	if name, id, ok := strings.Cut(key, ":"); ok && name != "" && id != "" {
		return fmt.Sprintf("<:%s:%s>", name, id)
	}
	return key
}

// componentEmoji builds the component emoji for a stored trigger. Custom
// emoji are kept in name:id form, which Discord components carry as
// separate fields; unicode emoji only need the name.
func componentEmoji(value string) *discordgo.ComponentEmoji {
	if name, id, ok := strings.Cut(value, ":"); ok && name != "" && id != "" {
		return &discordgo.ComponentEmoji{Name: name, ID: id}
	}
	return &discordgo.ComponentEmoji{Name: value}
}

func parseEmbedColor(value string) int {
	value = strings.TrimPrefix(value, "#")
	if value == "" {
		return 0
	}
	color, err := strconv.ParseInt(value, 16, 32)
	if err != nil {
		return 0
	}
	return int(color)
}

func sortedTriggers(msg *roletypes.RoleMessage) []sharedtypes.TriggerKey {
	keys := make([]sharedtypes.TriggerKey, 0, len(msg.Triggers))
	for key := range msg.Triggers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
