package database

import (
	"context"
	"database/sql"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS room_messages (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    username   TEXT NOT NULL,
    text       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_room_messages_created ON room_messages (created_at);

CREATE TABLE IF NOT EXISTS conversations (
    id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    participant1 TEXT NOT NULL,
    participant2 TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_pair
    ON conversations (LEAST(participant1, participant2), GREATEST(participant1, participant2));
CREATE INDEX IF NOT EXISTS idx_conversations_p1 ON conversations (participant1);
CREATE INDEX IF NOT EXISTS idx_conversations_p2 ON conversations (participant2);

CREATE TABLE IF NOT EXISTS messages (
    id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    sender          TEXT NOT NULL,
    text            TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages (conversation_id, created_at);

CREATE OR REPLACE FUNCTION get_or_create_conversation(user1 TEXT, user2 TEXT)
RETURNS TABLE (conversation_id UUID, created BOOLEAN)
LANGUAGE plpgsql AS $$
DECLARE
    new_id UUID;
BEGIN
    INSERT INTO conversations (participant1, participant2)
    VALUES (user1, user2)
    ON CONFLICT (LEAST(participant1, participant2), GREATEST(participant1, participant2)) DO NOTHING
    RETURNING id INTO new_id;

    IF new_id IS NOT NULL THEN
        RETURN QUERY SELECT new_id, TRUE;
        RETURN;
    END IF;

    RETURN QUERY
    SELECT c.id, FALSE FROM conversations c
    WHERE LEAST(c.participant1, c.participant2) = LEAST(user1, user2)
      AND GREATEST(c.participant1, c.participant2) = GREATEST(user1, user2);
END;
$$;
`

func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
