package repository

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/persistence"
)

// AnalyticsRepository appends auto-answer feedback rows.
type AnalyticsRepository interface {
	RecordAnswerFeedback(ctx context.Context, feedback domain.AnswerFeedback) error
}

type analyticsRepository struct {
	table persistence.SheetTable
}

func NewAnalyticsRepository(table persistence.SheetTable) AnalyticsRepository {
	return &analyticsRepository{table: table}
}

func (r *analyticsRepository) RecordAnswerFeedback(ctx context.Context, feedback domain.AnswerFeedback) error {
	recorded := feedback.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	_, err := r.table.Append(ctx, map[string]string{
		"TicketId":      feedback.TicketID,
		"Helpful":       boolCell(feedback.Helpful),
		"RecordedAtUTC": recorded.UTC().Format(time.RFC3339),
	})
	return err
}
