package eventlogger

import (
	"context"
	"database/sql"
	"encoding/json"
)

type sqlEventLogger struct {
	db *sql.DB
}

func NewSqlEventLogger(db *sql.DB) *sqlEventLogger {
	return &sqlEventLogger{
		db: db,
	}
}

func (el *sqlEventLogger) Save(ctx context.Context, e Event) error {
	jsonData, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	jsonMetadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	statement := `INSERT INTO events (id, event_type, actor_id, event_data, event_metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = el.db.ExecContext(ctx, statement, e.ID, e.Type, e.Actor, jsonData, jsonMetadata, e.CreatedAt)
	return err
}

func (el *sqlEventLogger) ListByType(ctx context.Context, eventType string, limit int) ([]Event, error) {
	query := `SELECT id, event_type, actor_id, event_data, event_metadata, created_at
              FROM events WHERE event_type = $1
              ORDER BY created_at DESC
              LIMIT $2`
	result, err := el.db.QueryContext(ctx, query, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	events := make([]Event, 0)
	for result.Next() {
		var event Event
		var jsonData, jsonMetadata []byte
		if err := result.Scan(&event.ID, &event.Type, &event.Actor, &jsonData, &jsonMetadata, &event.CreatedAt); err != nil {
			return events, err
		}

		var data any
		if err := json.Unmarshal(jsonData, &data); err == nil {
			event.Data = data
		}
		var metadata map[string]string
		if err := json.Unmarshal(jsonMetadata, &metadata); err == nil {
			event.Metadata = metadata
		}

		events = append(events, event)
	}

	return events, result.Err()
}
