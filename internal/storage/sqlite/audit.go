package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salescomposer/internal/domain"
)

type AuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (a *AuditLog) Append(ctx context.Context, e domain.AuditEntry) error {
	lists := make([]string, 4)
	for i, v := range [][]string{e.Materials, e.Options, e.SnippetsUsed, e.FeedbackIDs} {
		if v == nil {
			v = []string{}
		}
		s, err := encodeJSON(v)
		if err != nil {
			return err
		}
		lists[i] = s
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, logged_at, inputs_hash, customer_notes, materials, options, region,
		                        snippets_used, feedback_used, feedback_ids, fallback_used, provider, output_preview)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC(), e.InputsHash, e.CustomerNotes, lists[0], lists[1], e.Region,
		lists[2], e.FeedbackUsed, lists[3], e.FallbackUsed, e.Provider, e.OutputPreview,
	)
	return err
}

// Recent returns up to limit entries, newest first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, logged_at, inputs_hash, customer_notes, materials, options, region,
		        snippets_used, feedback_used, feedback_ids, fallback_used, provider, output_preview
		 FROM audit_log ORDER BY logged_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e                                       domain.AuditEntry
			materials, options, snippets, feedbacks string
		)
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.InputsHash, &e.CustomerNotes, &materials, &options, &e.Region,
			&snippets, &e.FeedbackUsed, &feedbacks, &e.FallbackUsed, &e.Provider, &e.OutputPreview,
		)
		if err != nil {
			return nil, err
		}
		for _, f := range []struct {
			raw string
			dst *[]string
		}{
			{materials, &e.Materials},
			{options, &e.Options},
			{snippets, &e.SnippetsUsed},
			{feedbacks, &e.FeedbackIDs},
		} {
			if *f.dst, err = decodeList(f.raw); err != nil {
				return nil, fmt.Errorf("audit %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries logged before cutoff and reports how many went.
func (a *AuditLog) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM audit_log WHERE logged_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
