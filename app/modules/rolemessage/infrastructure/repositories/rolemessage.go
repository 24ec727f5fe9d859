package roledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	"github.com/uptrace/bun"
)

// RoleMessageDBImpl is the bun-backed Repository.
type RoleMessageDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*RoleMessageDBImpl)(nil)

func (db *RoleMessageDBImpl) GetByGuild(ctx context.Context, guildID sharedtypes.GuildID) ([]*roletypes.RoleMessage, error) {
	var rows []*RoleMessageRow
	err := db.DB.NewSelect().
		Model(&rows).
		Where("guild_id = ?", guildID).
		Order("message_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select role messages: %w", err)
	}
	out := make([]*roletypes.RoleMessage, 0, len(rows))
	for _, row := range rows {
		if doc := fromRow(row); doc != nil {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (db *RoleMessageDBImpl) Get(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) (*roletypes.RoleMessage, error) {
	row := new(RoleMessageRow)
	err := db.DB.NewSelect().
		Model(row).
		Where("guild_id = ?", guildID).
		Where("message_id = ?", messageID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select role message: %w", err)
	}
	return fromRow(row), nil
}

func (db *RoleMessageDBImpl) Upsert(ctx context.Context, msg *roletypes.RoleMessage) error {
	row := toRow(msg)
	_, err := db.DB.NewInsert().
		Model(row).
		On("CONFLICT (guild_id, message_id) DO UPDATE").
		Set("document = EXCLUDED.document").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert role message: %w", err)
	}
	return nil
}

func (db *RoleMessageDBImpl) Delete(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) error {
	_, err := db.DB.NewDelete().
		Model(&RoleMessageRow{}).
		Where("guild_id = ?", guildID).
		Where("message_id = ?", messageID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete role message: %w", err)
	}
	return nil
}
