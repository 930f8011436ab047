package store

import (
	"context"
	"database/sql"
	"fmt"

	"athena/libs/ticker"
)

// AddNotification inserts a notification, or returns the existing row
// unchanged if one with the same (chat, compiled) already exists —
// making repeated identical /add calls idempotent per §8.
func (s *Store) AddNotification(ctx context.Context, chatID int64, compiled, origin string) (Notification, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Notification{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var n Notification
	err = tx.QueryRowContext(ctx,
		`SELECT id, chat_id, compiled_condition, origin_condition FROM notification
		 WHERE chat_id = ? AND compiled_condition = ?`,
		chatID, compiled,
	).Scan(&n.ID, &n.ChatID, &n.CompiledCondition, &n.OriginCondition)

	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO notification (chat_id, compiled_condition, origin_condition) VALUES (?, ?, ?)`,
			chatID, compiled, origin,
		)
		if err != nil {
			return Notification{}, fmt.Errorf("insert notification: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return Notification{}, fmt.Errorf("read inserted notification id: %w", err)
		}
		n = Notification{ID: id, ChatID: chatID, CompiledCondition: compiled, OriginCondition: origin}
	case err != nil:
		return Notification{}, fmt.Errorf("lookup notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Notification{}, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

// GetNotifications returns every notification, or only those for chatID
// when filter is non-nil.
func (s *Store) GetNotifications(ctx context.Context, filter *int64) (map[int64]Notification, error) {
	query := `SELECT id, chat_id, compiled_condition, origin_condition FROM notification`
	args := []any{}
	if filter != nil {
		query += ` WHERE chat_id = ?`
		args = append(args, *filter)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Notification)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ChatID, &n.CompiledCondition, &n.OriginCondition); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out[n.ID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// RemoveNotification deletes a notification by id. Fails
// ticker.ErrNonexistentNotification if no such row exists.
func (s *Store) RemoveNotification(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notification WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ticker.ErrNonexistentNotification, id)
	}
	return nil
}
