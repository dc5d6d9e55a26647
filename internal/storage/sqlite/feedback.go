package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"salescomposer/internal/domain"
	"salescomposer/internal/feedback"
)

// FeedbackBackend implements feedback.Backend. Row order is kept in a
// position column so priority ties resolve the same way as the file backend.
type FeedbackBackend struct {
	db *sql.DB
}

func NewFeedbackBackend(db *sql.DB) *FeedbackBackend {
	return &FeedbackBackend{db: db}
}

func (b *FeedbackBackend) Read(ctx context.Context) (feedback.Dataset, error) {
	var data feedback.Dataset

	rows, err := b.db.QueryContext(ctx,
		`SELECT id, created_at, input_hash, scenario_context, generated_output_snippet, user_feedback,
		        applied_rules, priority, active, applies_to_scenarios
		 FROM feedback_entries ORDER BY position`,
	)
	if err != nil {
		return data, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                          domain.FeedbackEntry
			scenarioJSON, rules, scens string
			priority                   string
		)
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.InputHash, &scenarioJSON, &e.GeneratedOutputSnippet,
			&e.UserFeedback, &rules, &priority, &e.Active, &scens,
		)
		if err != nil {
			return data, err
		}
		e.Priority = domain.Priority(priority)
		if err := json.Unmarshal([]byte(scenarioJSON), &e.ScenarioContext); err != nil {
			return data, fmt.Errorf("feedback %s: scenario_context: %w", e.ID, err)
		}
		if e.AppliedRules, err = decodeList(rules); err != nil {
			return data, fmt.Errorf("feedback %s: applied_rules: %w", e.ID, err)
		}
		if e.AppliesToScenarios, err = decodeList(scens); err != nil {
			return data, fmt.Errorf("feedback %s: applies_to_scenarios: %w", e.ID, err)
		}
		data.FeedbackEntries = append(data.FeedbackEntries, e)
	}
	if err := rows.Err(); err != nil {
		return data, err
	}

	orows, err := b.db.QueryContext(ctx, `SELECT id, rule, priority, active FROM global_overrides ORDER BY position`)
	if err != nil {
		return data, err
	}
	defer orows.Close()
	for orows.Next() {
		var o domain.GlobalOverride
		var priority string
		if err := orows.Scan(&o.ID, &o.Rule, &priority, &o.Active); err != nil {
			return data, err
		}
		o.Priority = domain.Priority(priority)
		data.GlobalOverrides = append(data.GlobalOverrides, o)
	}
	return data, orows.Err()
}

// Write replaces both tables in one transaction.
func (b *FeedbackBackend) Write(ctx context.Context, data feedback.Dataset) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM feedback_entries`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM global_overrides`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO feedback_entries (id, position, created_at, input_hash, scenario_context, generated_output_snippet,
		                               user_feedback, applied_rules, priority, active, applies_to_scenarios)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range data.FeedbackEntries {
		scenarioJSON, err := encodeJSON(e.ScenarioContext)
		if err != nil {
			return err
		}
		rules, err := encodeJSON(e.AppliedRules)
		if err != nil {
			return err
		}
		scens, err := encodeJSON(e.AppliesToScenarios)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			e.ID, i, e.Timestamp.UTC(), e.InputHash, scenarioJSON, e.GeneratedOutputSnippet,
			e.UserFeedback, rules, string(e.Priority), e.Active, scens,
		)
		if err != nil {
			return fmt.Errorf("insert feedback %s: %w", e.ID, err)
		}
	}

	ostmt, err := tx.PrepareContext(ctx,
		`INSERT INTO global_overrides (id, position, rule, priority, active) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer ostmt.Close()
	for i, o := range data.GlobalOverrides {
		id := o.ID
		if id == "" {
			id = fmt.Sprintf("GO%03d", i+1)
		}
		if _, err := ostmt.ExecContext(ctx, id, i, o.Rule, string(o.Priority), o.Active); err != nil {
			return fmt.Errorf("insert override %s: %w", id, err)
		}
	}

	return tx.Commit()
}
