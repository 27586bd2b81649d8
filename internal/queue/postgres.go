package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection. The returned handle
// is shared by every queue built on it; the caller closes it on shutdown.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Postgres is a durable queue backed by one Postgres table. Receive claims
// rows with FOR UPDATE SKIP LOCKED, so multiple workers can drain the same
// queue without double-claiming inside the visibility window.
type Postgres struct {
	db         *sql.DB
	table      string
	visibility time.Duration
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// NewPostgres creates a queue on the named table, creating the table if it
// does not exist. The name is interpolated into SQL and therefore restricted
// to plain identifiers.
func NewPostgres(db *sql.DB, table string, visibility time.Duration) (*Postgres, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrBadQueueName, table)
	}
	if visibility <= 0 {
		visibility = DefaultVisibility
	}

	q := &Postgres{db: db, table: table, visibility: visibility}
	if err := q.ensureTable(); err != nil {
		return nil, err
	}
	return q, nil
}

// ensureTable creates the queue table if it doesn't exist
func (q *Postgres) ensureTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			body BYTEA NOT NULL,
			enqueued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			visible_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			receive_count INTEGER NOT NULL DEFAULT 0
		)
	`, q.table)

	if _, err := q.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", q.table, err)
	}

	log.Printf("✓ %s queue table ready", q.table)
	return nil
}

// Publish appends a message to the queue.
func (q *Postgres) Publish(ctx context.Context, body []byte) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, body) VALUES ($1, $2)`, q.table)

	if _, err := q.db.ExecContext(ctx, query, uuid.NewString(), body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", q.table, err)
	}
	return nil
}

// Receive claims up to max visible messages and pushes their visibility
// deadline out by the queue's visibility window.
func (q *Postgres) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET visible_at = NOW() + make_interval(secs => $1),
		    receive_count = receive_count + 1
		WHERE id IN (
			SELECT id FROM %s
			WHERE visible_at <= NOW()
			ORDER BY enqueued_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, body, receive_count
	`, q.table, q.table)

	rows, err := q.db.QueryContext(ctx, query, q.visibility.Seconds(), max)
	if err != nil {
		return nil, fmt.Errorf("failed to receive from %s: %w", q.table, err)
	}
	defer rows.Close()

	var batch []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Body, &msg.Attempt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", q.table, err)
		}
		batch = append(batch, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", q.table, err)
	}
	return batch, nil
}

// Ack deletes a message. Deleting an already-acked message is a no-op.
func (q *Postgres) Ack(ctx context.Context, msg Message) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, q.table)

	if _, err := q.db.ExecContext(ctx, query, msg.ID); err != nil {
		return fmt.Errorf("failed to ack on %s: %w", q.table, err)
	}
	return nil
}

// Depth reports how many messages the table holds, leased ones included.
func (q *Postgres) Depth(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, q.table)

	var n int
	if err := q.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s rows: %w", q.table, err)
	}
	return n, nil
}
