package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Send writes the message row and its recipient links inside one
// transaction. Either the message becomes visible with all its links, or
// nothing does — a message without at least one link would be invisible to
// every conversation view, and a link without a message would break the
// conversation join.
func (s *MessageStore) Send(ctx context.Context, fromUserID int64, toUserIDs []int64, content string, isBroadcast bool) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin send: %w", err)
	}
	defer tx.Rollback(ctx)

	// Messages use bigserial, so Postgres generates the id.
	// RETURNING gives it back along with the creation timestamp.
	insertMessage := `
		INSERT INTO messages (from_user_id, content, is_broadcast)
		VALUES ($1, $2, $3)
		RETURNING id, from_user_id, content, is_broadcast, created_at`

	var msg models.Message
	err = tx.QueryRow(ctx, insertMessage, fromUserID, content, isBroadcast).Scan(
		&msg.ID,
		&msg.FromUserID,
		&msg.Content,
		&msg.IsBroadcast,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	insertRecipient := `
		INSERT INTO message_recipients (message_id, to_user_id)
		VALUES ($1, $2)`

	// One link per listed recipient, duplicates included. Deduplication is
	// deliberately not this operation's job.
	for _, toUserID := range toUserIDs {
		if _, err := tx.Exec(ctx, insertRecipient, msg.ID, toUserID); err != nil {
			return nil, fmt.Errorf("insert recipient link: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit send: %w", err)
	}
	return &msg, nil
}

// ListForUser yields the raw fan-out stream: one row per (message, recipient)
// pair where the user is the author or one of the recipients. DISTINCT folds
// repeated links to the same recipient; ordering is by creation time with the
// id as a tie-break so messages created in the same timestamp tick come back
// in a stable order.
func (s *MessageStore) ListForUser(ctx context.Context, userID int64) ([]models.ConversationRow, error) {
	query := `
		SELECT DISTINCT m.id, m.from_user_id, m.content, m.is_broadcast, m.created_at,
		       u.first_name, u.display_name,
		       mr.to_user_id
		FROM messages m
		JOIN users u ON m.from_user_id = u.id
		JOIN message_recipients mr ON m.id = mr.message_id
		WHERE m.from_user_id = $1 OR mr.to_user_id = $1
		ORDER BY m.created_at ASC, m.id ASC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversation rows: %w", err)
	}
	defer rows.Close()

	result := make([]models.ConversationRow, 0)
	for rows.Next() {
		var r models.ConversationRow
		if err := rows.Scan(
			&r.MessageID,
			&r.FromUserID,
			&r.Content,
			&r.IsBroadcast,
			&r.CreatedAt,
			&r.FirstName,
			&r.DisplayName,
			&r.ToUserID,
		); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}

	return result, nil
}
