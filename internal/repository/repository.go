package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smsportal/internal/models"
	"smsportal/internal/service"

	_ "github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(connStr string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id SERIAL PRIMARY KEY,
		external_id TEXT UNIQUE,
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL,
		body TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		direction VARCHAR(10) NOT NULL
	);
	CREATE TABLE IF NOT EXISTS contacts (
		id SERIAL PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		phone_number TEXT NOT NULL,
		notes TEXT
	);
	CREATE TABLE IF NOT EXISTS scheduled_messages (
		id SERIAL PRIMARY KEY,
		sender TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		sender_department TEXT NOT NULL DEFAULT '',
		recipient TEXT NOT NULL,
		body TEXT NOT NULL,
		scheduled_for TIMESTAMPTZ NOT NULL,
		sent BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE TABLE IF NOT EXISTS read_states (
		id SERIAL PRIMARY KEY,
		department TEXT NOT NULL,
		recipient TEXT NOT NULL,
		last_read TIMESTAMPTZ NOT NULL,
		UNIQUE (department, recipient)
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema exists: %w", err)
	}
	return &PostgresRepo{db: db}, nil
}

var _ service.MessageRepository = (*PostgresRepo)(nil)

// InsertMessage stores a single message. It reports false without
// error when the external id already exists: the row is simply
// already ingested.
func (r *PostgresRepo) InsertMessage(ctx context.Context, m models.Message) (bool, error) {
	query := `INSERT INTO messages (external_id, sender, recipient, body, timestamp, direction)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (external_id) DO NOTHING;`
	res, err := r.db.ExecContext(ctx, query,
		nullString(m.ExternalID), m.Sender, m.Recipient, m.Body, m.Timestamp, m.Direction)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertMessages stores a sync cycle's batch in one transaction and
// returns how many rows were actually new. The unique index on
// external_id makes this safe against a concurrent poller racing the
// same batch.
func (r *PostgresRepo) InsertMessages(ctx context.Context, msgs []models.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `INSERT INTO messages (external_id, sender, recipient, body, timestamp, direction)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (external_id) DO NOTHING;`
	inserted := 0
	for _, m := range msgs {
		res, err := tx.ExecContext(ctx, query,
			nullString(m.ExternalID), m.Sender, m.Recipient, m.Body, m.Timestamp, m.Direction)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *PostgresRepo) HasExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE external_id = $1);`, externalID).Scan(&exists)
	return exists, err
}

// FindLatestSentTo returns the most recent Sent message addressed to
// the given phone, or nil when no such message exists.
func (r *PostgresRepo) FindLatestSentTo(ctx context.Context, phone string) (*models.Message, error) {
	query := `SELECT id, external_id, sender, recipient, body, timestamp, direction
	          FROM messages
	          WHERE direction = $1 AND recipient = $2
	          ORDER BY timestamp DESC
	          LIMIT 1;`
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, models.DirectionSent, phone))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresRepo) ListForUser(ctx context.Context, user string) ([]models.Message, error) {
	query := `SELECT id, external_id, sender, recipient, body, timestamp, direction
	          FROM messages
	          WHERE sender = $1 OR recipient = $1
	          ORDER BY timestamp ASC;`
	return r.queryMessages(ctx, query, user)
}

func (r *PostgresRepo) ListConversation(ctx context.Context, user, phone string) ([]models.Message, error) {
	query := `SELECT id, external_id, sender, recipient, body, timestamp, direction
	          FROM messages
	          WHERE (sender = $1 AND recipient = $2) OR (sender = $2 AND recipient = $1)
	          ORDER BY timestamp ASC;`
	return r.queryMessages(ctx, query, user, phone)
}

// ListRecipients returns the distinct counterparties of a user's
// conversations, most recently active first.
func (r *PostgresRepo) ListRecipients(ctx context.Context, user string) ([]string, error) {
	query := `SELECT counterpart FROM (
	              SELECT CASE WHEN sender = $1 THEN recipient ELSE sender END AS counterpart,
	                     MAX(timestamp) AS last_activity
	              FROM messages
	              WHERE sender = $1 OR recipient = $1
	              GROUP BY counterpart
	          ) t
	          ORDER BY last_activity DESC;`
	rows, err := r.db.QueryContext(ctx, query, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []string
	for rows.Next() {
		var counterpart string
		if err := rows.Scan(&counterpart); err != nil {
			return nil, err
		}
		results = append(results, counterpart)
	}
	return results, rows.Err()
}

func (r *PostgresRepo) SaveContact(ctx context.Context, c models.Contact) error {
	if c.ID == 0 {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO contacts (owner, name, phone_number, notes) VALUES ($1, $2, $3, $4);`,
			c.Owner, c.Name, c.PhoneNumber, c.Notes)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET name = $2, phone_number = $3, notes = $4 WHERE id = $1;`,
		c.ID, c.Name, c.PhoneNumber, c.Notes)
	return err
}

func (r *PostgresRepo) ListContacts(ctx context.Context, owner string) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner, name, phone_number, COALESCE(notes, '') FROM contacts WHERE owner = $1 ORDER BY name ASC;`,
		owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Owner, &c.Name, &c.PhoneNumber, &c.Notes); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *PostgresRepo) DeleteContact(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1;`, id)
	return err
}

func (r *PostgresRepo) CreateScheduled(ctx context.Context, m models.ScheduledMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_messages (sender, sender_name, sender_department, recipient, body, scheduled_for, sent)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE);`,
		m.Sender, m.SenderName, m.SenderDepartment, m.Recipient, m.Body, m.ScheduledFor)
	return err
}

func (r *PostgresRepo) ListScheduled(ctx context.Context, sender string) ([]models.ScheduledMessage, error) {
	query := `SELECT id, sender, sender_name, sender_department, recipient, body, scheduled_for, sent
	          FROM scheduled_messages
	          WHERE sender = $1 AND NOT sent
	          ORDER BY scheduled_for ASC;`
	return r.queryScheduled(ctx, query, sender)
}

// DueScheduled returns every pending row whose scheduled time has
// passed.
func (r *PostgresRepo) DueScheduled(ctx context.Context, now time.Time) ([]models.ScheduledMessage, error) {
	query := `SELECT id, sender, sender_name, sender_department, recipient, body, scheduled_for, sent
	          FROM scheduled_messages
	          WHERE NOT sent AND scheduled_for <= $1
	          ORDER BY scheduled_for ASC;`
	return r.queryScheduled(ctx, query, now)
}

func (r *PostgresRepo) MarkScheduledSent(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE scheduled_messages SET sent = TRUE WHERE id = $1;`, id)
	return err
}

func (r *PostgresRepo) CancelScheduled(ctx context.Context, id int, sender string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_messages WHERE id = $1 AND sender = $2 AND NOT sent;`, id, sender)
	return err
}

func (r *PostgresRepo) MarkRead(ctx context.Context, department, recipient string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO read_states (department, recipient, last_read)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (department, recipient) DO UPDATE SET last_read = EXCLUDED.last_read;`,
		department, recipient, at)
	return err
}

// UnreadCounts returns, per counterparty phone, how many received
// messages for the user arrived after the department's last-read mark.
func (r *PostgresRepo) UnreadCounts(ctx context.Context, user, department string) (map[string]int, error) {
	query := `SELECT m.sender, COUNT(*)
	          FROM messages m
	          LEFT JOIN read_states r ON r.department = $2 AND r.recipient = m.sender
	          WHERE m.recipient = $1 AND m.direction = $3
	            AND (r.last_read IS NULL OR m.timestamp > r.last_read)
	          GROUP BY m.sender;`
	rows, err := r.db.QueryContext(ctx, query, user, department, models.DirectionReceived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var sender string
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, err
		}
		counts[sender] = n
	}
	return counts, rows.Err()
}

func (r *PostgresRepo) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (r *PostgresRepo) queryScheduled(ctx context.Context, query string, args ...any) ([]models.ScheduledMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []models.ScheduledMessage
	for rows.Next() {
		var m models.ScheduledMessage
		if err := rows.Scan(&m.ID, &m.Sender, &m.SenderName, &m.SenderDepartment,
			&m.Recipient, &m.Body, &m.ScheduledFor, &m.Sent); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (models.Message, error) {
	var m models.Message
	var extID sql.NullString
	if err := row.Scan(&m.ID, &extID, &m.Sender, &m.Recipient, &m.Body, &m.Timestamp, &m.Direction); err != nil {
		return models.Message{}, err
	}
	if extID.Valid {
		v := extID.String
		m.ExternalID = &v
	}
	return m, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
