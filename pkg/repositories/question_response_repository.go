package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-briefs/pkg/database"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
)

// QuestionResponseRepository defines the interface for authoring answers.
type QuestionResponseRepository interface {
	Upsert(ctx context.Context, resp *models.QuestionResponse) error
	ListByDraft(ctx context.Context, draftID uuid.UUID) ([]*models.QuestionResponse, error)
}

type questionResponseRepository struct {
	db *database.DB
}

// NewQuestionResponseRepository creates a new question response repository.
func NewQuestionResponseRepository(db *database.DB) QuestionResponseRepository {
	return &questionResponseRepository{db: db}
}

// Upsert writes one answer. The (draft, question) key overwrites, so saving
// the same answer twice never creates a second row.
func (r *questionResponseRepository) Upsert(ctx context.Context, resp *models.QuestionResponse) error {
	resp.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO question_responses (brief_draft_id, question_id, response, ai_suggested_response, was_suggestion_used, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (brief_draft_id, question_id) DO UPDATE
		SET response = EXCLUDED.response,
		    ai_suggested_response = EXCLUDED.ai_suggested_response,
		    was_suggestion_used = EXCLUDED.was_suggestion_used,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		resp.BriefDraftID,
		resp.QuestionID,
		resp.Response,
		resp.AISuggestedResponse,
		resp.WasSuggestionUsed,
		resp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert question response: %w", err)
	}
	return nil
}

// ListByDraft returns every saved answer of a draft.
func (r *questionResponseRepository) ListByDraft(ctx context.Context, draftID uuid.UUID) ([]*models.QuestionResponse, error) {
	rows, err := r.db.Query(ctx, `
		SELECT brief_draft_id, question_id, response, ai_suggested_response, was_suggestion_used, updated_at
		FROM question_responses
		WHERE brief_draft_id = $1
		ORDER BY question_id`, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query question responses: %w", err)
	}
	defer rows.Close()

	var out []*models.QuestionResponse
	for rows.Next() {
		var qr models.QuestionResponse
		if err := rows.Scan(&qr.BriefDraftID, &qr.QuestionID, &qr.Response, &qr.AISuggestedResponse, &qr.WasSuggestionUsed, &qr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question response: %w", err)
		}
		out = append(out, &qr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question responses: %w", err)
	}
	return out, nil
}

var _ QuestionResponseRepository = (*questionResponseRepository)(nil)
