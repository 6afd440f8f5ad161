package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kadacheahmedrami/Email-Craft/internal/sendmail"
)

// SendRecordRepo is the PostgreSQL-backed audit log of send attempts.
//
// Terminal transitions are guarded with `WHERE status = 'PENDING'` so a
// record moves out of PENDING exactly once, whatever races against it.
type SendRecordRepo struct {
	pool *pgxpool.Pool
}

func NewSendRecordRepo(pool *pgxpool.Pool) *SendRecordRepo {
	return &SendRecordRepo{pool: pool}
}

const recordColumns = `
	id, owner_id, chat_id, subject, sender_name, sender_email,
	recipients, body_html, attachments, status,
	error_code, error_message, metadata, created_at, sent_at
`

// Create inserts a new PENDING record.
func (r *SendRecordRepo) Create(ctx context.Context, rec *sendmail.Record) error {
	recipients, err := json.Marshal(rec.Recipients)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}
	attachments, err := json.Marshal(rec.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	query := `
		INSERT INTO send_records (id, owner_id, chat_id, subject, sender_name, sender_email,
			recipients, body_html, attachments, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.OwnerID, rec.ChatID, rec.Subject, rec.SenderName, rec.SenderEmail,
		recipients, rec.BodyHTML, attachments, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create send record: %w", err)
	}
	return nil
}

// SaveRenderedBody snapshots the rendered document on the record, so the
// audit row holds what was transmitted rather than what was authored.
func (r *SendRecordRepo) SaveRenderedBody(ctx context.Context, id uuid.UUID, bodyHTML string) error {
	query := `UPDATE send_records SET body_html = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, bodyHTML)
	if err != nil {
		return fmt.Errorf("save rendered body: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSent transitions a PENDING record to SENT.
func (r *SendRecordRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, metadata map[string]string) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		UPDATE send_records
		SET status = 'SENT', sent_at = $2, metadata = $3
		WHERE id = $1 AND status = 'PENDING'
	`

	tag, err := r.pool.Exec(ctx, query, id, sentAt, meta)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// MarkFailed transitions a PENDING record to FAILED with the taxonomy
// code and the underlying error text verbatim.
func (r *SendRecordRepo) MarkFailed(ctx context.Context, id uuid.UUID, code, errorMessage string) error {
	query := `
		UPDATE send_records
		SET status = 'FAILED', error_code = $2, error_message = $3
		WHERE id = $1 AND status = 'PENDING'
	`

	tag, err := r.pool.Exec(ctx, query, id, code, errorMessage)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// FailStale marks PENDING records created before the cutoff as FAILED.
// These are rows orphaned by a crash between transmission start and
// reconciliation; their real outcome is unknown.
func (r *SendRecordRepo) FailStale(ctx context.Context, before time.Time, code, errorMessage string) (int64, error) {
	query := `
		UPDATE send_records
		SET status = 'FAILED', error_code = $2, error_message = $3
		WHERE status = 'PENDING' AND created_at < $1
	`

	tag, err := r.pool.Exec(ctx, query, before, code, errorMessage)
	if err != nil {
		return 0, fmt.Errorf("fail stale records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Get loads one record scoped to its owner.
func (r *SendRecordRepo) Get(ctx context.Context, ownerID string, id uuid.UUID) (*sendmail.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM send_records WHERE id = $1 AND owner_id = $2`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load send record: %w", err)
	}
	return rec, nil
}

// ListByOwner returns the user's send history, newest first.
func (r *SendRecordRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*sendmail.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM send_records
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, ownerID, limit, offset)
}

// ListByChat returns the sends attached to one chat, newest first,
// scoped to the owner.
func (r *SendRecordRepo) ListByChat(ctx context.Context, ownerID, chatID string, limit, offset int) ([]*sendmail.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM send_records
		WHERE owner_id = $1 AND chat_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	return r.list(ctx, query, ownerID, chatID, limit, offset)
}

func (r *SendRecordRepo) list(ctx context.Context, query string, args ...any) ([]*sendmail.Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list send records: %w", err)
	}
	defer rows.Close()

	var out []*sendmail.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan send record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list send records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*sendmail.Record, error) {
	var (
		rec                     sendmail.Record
		status                  string
		recipients, attachments []byte
		metadata                []byte
		errorCode, errorMessage *string
	)

	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.ChatID, &rec.Subject, &rec.SenderName, &rec.SenderEmail,
		&recipients, &rec.BodyHTML, &attachments, &status,
		&errorCode, &errorMessage, &metadata, &rec.CreatedAt, &rec.SentAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = sendmail.Status(status)
	if errorCode != nil {
		rec.ErrorCode = *errorCode
	}
	if errorMessage != nil {
		rec.ErrorMessage = *errorMessage
	}
	if err := json.Unmarshal(recipients, &rec.Recipients); err != nil {
		return nil, fmt.Errorf("unmarshal recipients: %w", err)
	}
	if err := json.Unmarshal(attachments, &rec.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}
