package roledb

import (
	"time"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	"github.com/uptrace/bun"
)

// RoleMessageRow is the persistence model: one row per role message with
// the full document in a JSONB column. The row is the unit of consistency;
// partial-field updates are deliberately impossible.
type RoleMessageRow struct {
	bun.BaseModel `bun:"table:role_messages,alias:rm"`

	GuildID   sharedtypes.GuildID    `bun:"guild_id,pk,notnull,type:varchar(20)"`
	MessageID sharedtypes.MessageID  `bun:"message_id,pk,notnull,type:varchar(20)"`
	Document  *roletypes.RoleMessage `bun:"document,notnull,type:jsonb"`
	CreatedAt time.Time              `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time              `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toRow(msg *roletypes.RoleMessage) *RoleMessageRow {
	return &RoleMessageRow{
		GuildID:   msg.GuildID,
		MessageID: msg.MessageID,
		Document:  msg,
		UpdatedAt: time.Now().UTC(),
	}
}

func fromRow(row *RoleMessageRow) *roletypes.RoleMessage {
	if row == nil || row.Document == nil {
		return nil
	}
	doc := row.Document
	// Key columns win over whatever the document claims.
	doc.GuildID = row.GuildID
	doc.MessageID = row.MessageID
	doc.Migrate()
	return doc
}
