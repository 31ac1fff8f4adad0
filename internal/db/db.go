package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"messaging-service/internal/config"
)

// Connect initializes the database connection and runs migrations.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
            id BIGSERIAL PRIMARY KEY,
            participant_low BIGINT NOT NULL,
            participant_high BIGINT NOT NULL,
            last_message_at TIMESTAMPTZ,
            deleted_at_low TIMESTAMPTZ,
            deleted_at_high TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CONSTRAINT conversations_pair_key UNIQUE (participant_low, participant_high),
            CONSTRAINT conversations_pair_order CHECK (participant_low < participant_high)
        );`,
	`CREATE INDEX IF NOT EXISTS conversations_high_idx ON conversations (participant_high);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id),
            sender_id BIGINT NOT NULL,
            recipient_id BIGINT NOT NULL,
            body TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            read_at TIMESTAMPTZ
        );`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_order_idx ON messages (conversation_id, created_at, id);`,
	`CREATE INDEX IF NOT EXISTS messages_unread_idx ON messages (recipient_id, conversation_id) WHERE read_at IS NULL;`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
