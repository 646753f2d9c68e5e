package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gferro/mediatext/internal/core/domain"
)

// SaveProcessedContent persists one extracted-text record at most once per
// (file_name, file_type). The existence check reports redeliveries cheaply;
// the unique constraint plus conflict-ignore insert closes the remaining
// check-then-act window between concurrent writers. Returns false when the
// row already existed.
func (r *ContentRepository) SaveProcessedContent(ctx context.Context, content *domain.ProcessedContent) (bool, error) {
	metadata, err := json.Marshal(content.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshal metadata: %w", err)
	}
	if content.ID == "" {
		content.ID = uuid.NewString()
	}
	if content.CreatedAt.IsZero() {
		content.CreatedAt = time.Now().UTC()
	}

	inserted := false
	err = r.withConn(ctx, func(conn *sql.Conn) error {
		var existingID string
		err := conn.QueryRowContext(ctx, `
SELECT id FROM processed_content
WHERE file_name = $1 AND file_type = $2
`, content.FileName, string(content.FileType)).Scan(&existingID)
		switch {
		case err == nil:
			slog.Info("content already persisted, skipping",
				"file_name", content.FileName, "file_type", content.FileType)
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check existing content: %w", err)
		}

		result, err := conn.ExecContext(ctx, `
INSERT INTO processed_content (id, file_name, file_type, content_type, content, metadata, summary, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (file_name, file_type) DO NOTHING
`,
			content.ID, content.FileName, string(content.FileType), content.ContentType,
			content.Content, metadata, content.Summary, content.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert content: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert content rows affected: %w", err)
		}
		inserted = rows > 0
		return nil
	})
	if err != nil {
		return false, domain.WrapError(domain.ErrPersistence, "save processed content", err)
	}
	return inserted, nil
}

// ListProcessedContent returns the full content set, newest first.
func (r *ContentRepository) ListProcessedContent(ctx context.Context) ([]domain.ProcessedContent, error) {
	var out []domain.ProcessedContent
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
SELECT id, file_name, file_type, content_type, content, metadata, summary, created_at
FROM processed_content
ORDER BY created_at DESC
`)
		if err != nil {
			return fmt.Errorf("list content: %w", err)
		}
		defer rows.Close()

		out = make([]domain.ProcessedContent, 0)
		for rows.Next() {
			var c domain.ProcessedContent
			var fileType string
			var metadataRaw []byte
			if err := rows.Scan(
				&c.ID, &c.FileName, &fileType, &c.ContentType,
				&c.Content, &metadataRaw, &c.Summary, &c.CreatedAt,
			); err != nil {
				return fmt.Errorf("scan content row: %w", err)
			}
			c.FileType = domain.MediaType(fileType)
			if len(metadataRaw) > 0 {
				if err := json.Unmarshal(metadataRaw, &c.Metadata); err != nil {
					return fmt.Errorf("unmarshal metadata: %w", err)
				}
			}
			out = append(out, c)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate content rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "list processed content", err)
	}
	return out, nil
}

// UpdateSummary backfills the summary column, the only mutation permitted
// after insert.
func (r *ContentRepository) UpdateSummary(ctx context.Context, id, summary string) error {
	return r.withConn(ctx, func(conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `
UPDATE processed_content SET summary = $2 WHERE id = $1
`, id, summary)
		if err != nil {
			return domain.WrapError(domain.ErrPersistence, "update summary", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return domain.WrapError(domain.ErrPersistence, "update summary rows affected", err)
		}
		if rows == 0 {
			return domain.WrapError(domain.ErrContentNotFound, "update summary", fmt.Errorf("id=%s", id))
		}
		return nil
	})
}
