package db

import (
	"context"
	"fmt"
	"time"
)

// ConnectionEvent records a peripheral connecting or disconnecting.
type ConnectionEvent struct {
	ID        int64
	Device    string
	Connected bool
	Version   uint64
	CreatedAt time.Time
}

// ConnectionEventStore records connection transitions.
type ConnectionEventStore interface {
	Record(ctx context.Context, e *ConnectionEvent) error
	Recent(ctx context.Context, device string, limit int) ([]*ConnectionEvent, error)
}

// ConnectionEvents returns a ConnectionEventStore for this database.
func (db *DB) ConnectionEvents() ConnectionEventStore {
	return &connectionEventStore{db: db}
}

type connectionEventStore struct {
	db *DB
}

func (s *connectionEventStore) Record(ctx context.Context, e *ConnectionEvent) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO connection_events (device, connected, version)
		VALUES (?, ?, ?)
	`, e.Device, e.Connected, int64(e.Version))
	if err != nil {
		return fmt.Errorf("failed to record connection event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// Recent returns the newest events for device first. An empty device
// matches every peripheral.
func (s *connectionEventStore) Recent(ctx context.Context, device string, limit int) ([]*ConnectionEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device, connected, version, created_at
		FROM connection_events
		WHERE ? = '' OR device = ?
		ORDER BY id DESC LIMIT ?
	`, device, device, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []*ConnectionEvent
	for rows.Next() {
		e := &ConnectionEvent{}
		var version int64
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Device, &e.Connected, &version, &createdAt); err != nil {
			return nil, err
		}
		e.Version = uint64(version)
		e.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}
