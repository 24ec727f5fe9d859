package migrations

import (
	"context"
	"fmt"

	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Creating role_messages table...")
			if _, err := db.NewCreateTable().Model((*roledb.RoleMessageRow)(nil)).IfNotExists().Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewCreateIndex().
				Model((*roledb.RoleMessageRow)(nil)).
				Index("role_messages_guild_id_idx").
				Column("guild_id").
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
			fmt.Println("role_messages table created successfully!")
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Dropping role_messages table...")
			if _, err := db.NewDropTable().Model((*roledb.RoleMessageRow)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
			fmt.Println("role_messages table dropped successfully!")
			return nil
		},
	)
}
