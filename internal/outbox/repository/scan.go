package repository

import (
	"database/sql"
	"encoding/json"

	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/outbox/domain"
)

// scanMessages reads outbox rows in the column order shared by both dialects.
func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	var messages []*domain.Message
	for rows.Next() {
		var (
			msg         domain.Message
			headersJSON []byte
			payloadJSON []byte
			publishedAt sql.NullTime
		)

		if err := rows.Scan(&msg.ID, &msg.Exchange, &msg.RoutingKey, &headersJSON, &payloadJSON,
			&msg.CreatedAt, &publishedAt, &msg.Attempts); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox message")
		}

		if len(headersJSON) > 0 {
			if err := json.Unmarshal(headersJSON, &msg.Headers); err != nil {
				return nil, apperrors.Wrap(err, "failed to unmarshal outbox headers")
			}
		}
		msg.Payload = json.RawMessage(payloadJSON)
		if publishedAt.Valid {
			t := publishedAt.Time
			msg.PublishedAt = &t
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// scanStats reads the backlog summary row.
func scanStats(row *sql.Row) (*domain.Stats, error) {
	var (
		stats    domain.Stats
		oldestAt sql.NullTime
	)
	if err := row.Scan(&stats.Unpublished, &stats.MaxAttempts, &oldestAt); err != nil {
		return nil, apperrors.Wrap(err, "failed to read outbox stats")
	}
	if oldestAt.Valid {
		t := oldestAt.Time
		stats.OldestAt = &t
	}
	return &stats, nil
}
