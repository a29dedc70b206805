package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'student',
            section TEXT,
            course TEXT,
            avatar_path TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS chat_groups (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            section TEXT NOT NULL,
            course TEXT NOT NULL,
            created_by INT NOT NULL REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id SERIAL PRIMARY KEY,
            chat_group_id INT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
            sender_id INT NOT NULL REFERENCES users(id),
            reply_to_message_id INT REFERENCES chat_messages(id),
            kind TEXT NOT NULL DEFAULT 'text',
            body TEXT NOT NULL,
            file_name TEXT,
            file_size TEXT,
            reactions JSONB NOT NULL DEFAULT '{}'::jsonb,
            published_at TIMESTAMPTZ,
            edited_at TIMESTAMPTZ,
            deleted_at TIMESTAMPTZ,
            deleted_by INT,
            is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
            pinned_at TIMESTAMPTZ,
            pinned_by INT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_group_order
            ON chat_messages (chat_group_id, COALESCE(published_at, created_at), id);`,
		`CREATE TABLE IF NOT EXISTS chat_message_reads (
            id SERIAL PRIMARY KEY,
            chat_message_id INT NOT NULL REFERENCES chat_messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(chat_message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS chat_message_reports (
            id SERIAL PRIMARY KEY,
            chat_message_id INT NOT NULL REFERENCES chat_messages(id) ON DELETE CASCADE,
            chat_group_id INT NOT NULL,
            reported_by INT NOT NULL REFERENCES users(id),
            reported_user_id INT NOT NULL,
            reason TEXT,
            status TEXT NOT NULL DEFAULT 'open',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(chat_message_id, reported_by)
        );`,
		`CREATE TABLE IF NOT EXISTS chat_group_user_settings (
            id SERIAL PRIMARY KEY,
            chat_group_id INT NOT NULL REFERENCES chat_groups(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            muted_at TIMESTAMPTZ,
            muted_until TIMESTAMPTZ,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(chat_group_id, user_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	log.Info().Msg("database migrations applied")
	return nil
}
