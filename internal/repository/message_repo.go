package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fyp-inbox/internal/db"
	"fyp-inbox/internal/domain"
)

type MessageRepository interface {
	// Append confirma el borrador en una sola transaccion: crea el chat si hace falta,
	// bloquea su fila, asigna el timestamp, guarda el mensaje con la entrada de visto
	// del remitente y mueve la vista previa. Falla con domain.ErrNotFound si el chat no existe.
	Append(ctx context.Context, draft domain.MessageDraft) (domain.AppendResult, error)
	ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error)
	// MarkSeen registra (mensaje, usuario) para los mensajes indicados, o para todos
	// los del chat si messageIDs esta vacio. Devuelve los ids efectivamente marcados.
	MarkSeen(ctx context.Context, chatID string, viewer domain.User, messageIDs []string, at time.Time) ([]string, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Append(ctx context.Context, draft domain.MessageDraft) (domain.AppendResult, error) {
	var res domain.AppendResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		chatID := draft.ChatID
		if draft.NewChat != nil {
			id, created, err := ensureChat(ctx, tx, *draft.NewChat)
			if err != nil {
				return err
			}
			chatID, res.ChatCreated = id, created
		}

		chat, err := lockChat(ctx, tx, chatID)
		if err != nil {
			return err
		}

		// El timestamp se toma con la fila bloqueada: el ultimo commit es el mas nuevo.
		var now time.Time
		if err := tx.QueryRow(ctx, `SELECT clock_timestamp()`).Scan(&now); err != nil {
			return err
		}
		msg, preview := draft.Commit(chat.ID, domain.NextMessageTime(now, chat.LastMessage))

		const insertMessage = `
			INSERT INTO messages (id, chat_id, sender_id, body, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.Exec(ctx, insertMessage,
			msg.ID,
			msg.ChatID,
			msg.SenderID,
			msg.Body,
			msg.CreatedAt,
		); err != nil {
			return err
		}

		for _, seen := range msg.SeenBy {
			if err := insertSeen(ctx, tx, msg.ID, seen); err != nil {
				return err
			}
		}

		previewJSON, err := json.Marshal(preview)
		if err != nil {
			return fmt.Errorf("encode last_message: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE chats SET last_message = $2 WHERE id = $1`, chat.ID, previewJSON); err != nil {
			return err
		}

		chat.LastMessage = &preview
		res.Chat, res.Message = chat, msg
		return nil
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return domain.AppendResult{}, fmt.Errorf("append message: %w", domain.ErrNotFound)
		}
		return domain.AppendResult{}, db.Classify("append message", err)
	}
	return res, nil
}

// ensureChat inserta el chat o devuelve el id del existente con la misma clave.
// Un escritor concurrente con la misma clave espera al commit de este y luego lo reutiliza.
func ensureChat(ctx context.Context, q DBTX, chat domain.Chat) (string, bool, error) {
	const insert = `
		INSERT INTO chats (id, participants, participant_key, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_key) DO NOTHING
		RETURNING id
	`
	var id string
	err := q.QueryRow(ctx, insert, chat.ID, chat.Participants, chat.ParticipantKey, chat.CreatedAt).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}
	if err := q.QueryRow(ctx, `SELECT id FROM chats WHERE participant_key = $1`, chat.ParticipantKey).Scan(&id); err != nil {
		return "", false, err
	}
	return id, false, nil
}

func (r *PgMessageRepository) ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	const query = `
		SELECT
			m.id,
			m.chat_id,
			m.sender_id,
			m.body,
			m.created_at,
			COALESCE(
				json_agg(
					json_build_object('user_id', s.user_id, 'seen_at', s.seen_at)
					ORDER BY s.seen_at, s.user_id
				) FILTER (WHERE s.user_id IS NOT NULL),
				'[]'
			) AS seen_by
		FROM messages m
		LEFT JOIN message_seen s ON s.message_id = m.id
		WHERE m.chat_id = $1
		GROUP BY m.id
		ORDER BY m.created_at ASC, m.id ASC
	`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, db.Classify("list messages", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var (
			msg    domain.Message
			seenBy []byte
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.Body,
			&msg.CreatedAt,
			&seenBy,
		); err != nil {
			return nil, db.Classify("scan message", err)
		}
		if err := json.Unmarshal(seenBy, &msg.SeenBy); err != nil {
			return nil, fmt.Errorf("decode seen_by: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("list messages", err)
	}
	return messages, nil
}

func (r *PgMessageRepository) MarkSeen(
	ctx context.Context,
	chatID string,
	viewer domain.User,
	messageIDs []string,
	at time.Time,
) ([]string, error) {
	var marked []string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := lockChat(ctx, tx, chatID); err != nil {
			return err
		}

		const insert = `
			INSERT INTO message_seen (message_id, user_id, seen_at)
			SELECT m.id, $2, $3
			FROM messages m
			WHERE m.chat_id = $1
			  AND m.sender_id <> $2
			  AND ($4::text[] IS NULL OR cardinality($4::text[]) = 0 OR m.id = ANY($4::text[]))
			ON CONFLICT (message_id, user_id) DO NOTHING
			RETURNING message_id
		`
		rows, err := tx.Query(ctx, insert, chatID, viewer.ID, at, messageIDs)
		if err != nil {
			return err
		}
		marked, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		if len(marked) == 0 {
			return nil
		}

		// Si el ultimo mensaje fue marcado, la vista previa refleja el nuevo lector.
		const updatePreview = `
			UPDATE chats
			SET last_message = jsonb_set(
				last_message,
				'{seen_by_names}',
				COALESCE(last_message->'seen_by_names', '[]'::jsonb) || to_jsonb($3::text)
			)
			WHERE id = $1
			  AND last_message IS NOT NULL
			  AND last_message->>'id' = ANY($2::text[])
			  AND NOT COALESCE(last_message->'seen_by_names', '[]'::jsonb) ? $3
		`
		_, err = tx.Exec(ctx, updatePreview, chatID, marked, viewer.Name())
		return err
	})
	if err != nil {
		return nil, db.Classify("mark seen", err)
	}
	return marked, nil
}

// lockChat toma la fila del chat FOR UPDATE y la devuelve con su vista previa actual.
func lockChat(ctx context.Context, q DBTX, chatID string) (domain.Chat, error) {
	const query = `SELECT ` + chatColumns + ` FROM chats WHERE id = $1 FOR UPDATE`
	chat, err := scanChat(q.QueryRow(ctx, query, chatID))
	if err != nil {
		return domain.Chat{}, db.Classify("lock chat", err)
	}
	return chat, nil
}

func insertSeen(ctx context.Context, q DBTX, messageID string, seen domain.SeenEntry) error {
	const query = `
		INSERT INTO message_seen (message_id, user_id, seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`
	_, err := q.Exec(ctx, query, messageID, seen.UserID, seen.SeenAt)
	return err
}
