package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fyp-inbox/internal/db"
	"fyp-inbox/internal/domain"
)

// ChatRepository define el contrato de persistencia para chats.
type ChatRepository interface {
	GetByID(ctx context.Context, id string) (domain.Chat, error)
	GetByParticipantKey(ctx context.Context, key string) (domain.Chat, error)
	ListForParticipant(ctx context.Context, userID string) ([]domain.ThreadSummary, error)
	CountUnread(ctx context.Context, chatID, userID string) (int, error)
	CountUnreadForUser(ctx context.Context, userID string) (int, error)
}

// PgChatRepository implementa ChatRepository usando pgxpool.
type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

const chatColumns = `id, participants, participant_key, last_message, created_at`

func (r *PgChatRepository) GetByID(ctx context.Context, id string) (domain.Chat, error) {
	const query = `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`
	chat, err := scanChat(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Chat{}, db.Classify("get chat", err)
	}
	return chat, nil
}

func (r *PgChatRepository) GetByParticipantKey(ctx context.Context, key string) (domain.Chat, error) {
	const query = `SELECT ` + chatColumns + ` FROM chats WHERE participant_key = $1`
	chat, err := scanChat(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		return domain.Chat{}, db.Classify("get chat by participants", err)
	}
	return chat, nil
}

func (r *PgChatRepository) ListForParticipant(ctx context.Context, userID string) ([]domain.ThreadSummary, error) {
	const query = `
		SELECT
			c.id,
			c.participants,
			c.participant_key,
			c.last_message,
			c.created_at,
			(
				SELECT COUNT(*)
				FROM messages m
				WHERE m.chat_id = c.id
				  AND m.sender_id <> $1
				  AND NOT EXISTS (
					SELECT 1 FROM message_seen s
					WHERE s.message_id = m.id AND s.user_id = $1
				  )
			) AS unread_count
		FROM chats c
		WHERE $1 = ANY(c.participants)
		ORDER BY COALESCE((c.last_message->>'created_at')::timestamptz, c.created_at) DESC, c.id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, db.Classify("list chats", err)
	}
	defer rows.Close()

	summaries := make([]domain.ThreadSummary, 0)
	for rows.Next() {
		var (
			chat        domain.Chat
			lastMessage []byte
			unread      int
		)
		if err := rows.Scan(
			&chat.ID,
			&chat.Participants,
			&chat.ParticipantKey,
			&lastMessage,
			&chat.CreatedAt,
			&unread,
		); err != nil {
			return nil, db.Classify("scan chat", err)
		}
		if chat.LastMessage, err = decodeLastMessage(lastMessage); err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.ThreadSummary{
			Chat:        chat,
			LastMessage: chat.LastMessage,
			UnreadCount: unread,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("list chats", err)
	}
	return summaries, nil
}

func (r *PgChatRepository) CountUnread(ctx context.Context, chatID, userID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.chat_id = $1
		  AND m.sender_id <> $2
		  AND NOT EXISTS (
			SELECT 1 FROM message_seen s
			WHERE s.message_id = m.id AND s.user_id = $2
		  )
	`
	var n int
	if err := r.pool.QueryRow(ctx, query, chatID, userID).Scan(&n); err != nil {
		return 0, db.Classify("count unread", err)
	}
	return n, nil
}

func (r *PgChatRepository) CountUnreadForUser(ctx context.Context, userID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM messages m
		JOIN chats c ON c.id = m.chat_id
		WHERE $1 = ANY(c.participants)
		  AND m.sender_id <> $1
		  AND NOT EXISTS (
			SELECT 1 FROM message_seen s
			WHERE s.message_id = m.id AND s.user_id = $1
		  )
	`
	var n int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, db.Classify("count unread for user", err)
	}
	return n, nil
}

// ListRecentIDs devuelve los ids de los chats con actividad mas reciente.
func (r *PgChatRepository) ListRecentIDs(ctx context.Context, limit int) ([]string, error) {
	const query = `
		SELECT id FROM chats
		ORDER BY COALESCE((last_message->>'created_at')::timestamptz, created_at) DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, db.Classify("list recent chats", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, db.Classify("list recent chats", err)
	}
	return ids, nil
}

func scanChat(row pgx.Row) (domain.Chat, error) {
	var (
		chat        domain.Chat
		lastMessage []byte
	)
	if err := row.Scan(
		&chat.ID,
		&chat.Participants,
		&chat.ParticipantKey,
		&lastMessage,
		&chat.CreatedAt,
	); err != nil {
		return domain.Chat{}, err
	}
	lm, err := decodeLastMessage(lastMessage)
	if err != nil {
		return domain.Chat{}, err
	}
	chat.LastMessage = lm
	return chat, nil
}

func decodeLastMessage(raw []byte) (*domain.LastMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var lm domain.LastMessage
	if err := json.Unmarshal(raw, &lm); err != nil {
		return nil, fmt.Errorf("decode last_message: %w", err)
	}
	return &lm, nil
}
