package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Database struct {
	Conn *sql.DB
}

func New(dsn string) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

func (d *Database) Close() error {
	return d.Conn.Close()
}

func (d *Database) Migrate() error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

		`CREATE TABLE IF NOT EXISTS users (
            user_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            normalized_username VARCHAR(50) UNIQUE NOT NULL,
            display_username VARCHAR(50) NOT NULL,
            password_hash VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS sessions (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            expires_at TIMESTAMPTZ NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            device_info TEXT,
            ip_address VARCHAR(45)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS user_settings (
            user_id UUID PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
            max_sessions INT NOT NULL DEFAULT 2,
            notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE
        )`,

		`CREATE TABLE IF NOT EXISTS chats (
            chat_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            type VARCHAR(10) NOT NULL CHECK (type IN ('private', 'group')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS chat_members (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            chat_id UUID NOT NULL REFERENCES chats(chat_id) ON DELETE CASCADE,
            user_id UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            role VARCHAR(10) NOT NULL DEFAULT 'member',
            UNIQUE (chat_id, user_id)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_chat_members_chat ON chat_members(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_members_user ON chat_members(user_id)`,

		`CREATE TABLE IF NOT EXISTS messages (
            message_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            chat_id UUID NOT NULL REFERENCES chats(chat_id) ON DELETE CASCADE,
            sender_id UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            sender_device_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
            payload TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ,
            status VARCHAR(10) NOT NULL DEFAULT 'sent'
        )`,

		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := d.Conn.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
