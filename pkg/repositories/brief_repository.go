package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/database"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
)

// BriefRepository defines the interface for brief data access.
type BriefRepository interface {
	Create(ctx context.Context, brief *models.Brief) error
	Get(ctx context.Context, id uuid.UUID) (*models.Brief, error)
	Update(ctx context.Context, id uuid.UUID, patch *models.BriefPatch) error
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Brief, error)
	ListByStatus(ctx context.Context, status models.BriefStatus) ([]*models.Brief, error)
}

type briefRepository struct {
	db *database.DB
}

// NewBriefRepository creates a new brief repository.
func NewBriefRepository(db *database.DB) BriefRepository {
	return &briefRepository{db: db}
}

const briefColumns = `id, client_id, title, budget, deadline, category, description, attachment_url, status, created_at, updated_at`

// queryer is satisfied by the pool and by a transaction.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Create inserts a brief. A nil ID is assigned; an existing ID is kept so a
// wizard draft id becomes the brief id. Feedback on the input is ignored.
func (r *briefRepository) Create(ctx context.Context, brief *models.Brief) error {
	if brief.ID == uuid.Nil {
		brief.ID = uuid.New()
	}
	if brief.Status == "" {
		brief.Status = models.BriefStatusDraft
	}
	now := time.Now().UTC()
	brief.CreatedAt = now
	brief.UpdatedAt = now

	query := `
		INSERT INTO briefs (` + briefColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		brief.ID,
		brief.ClientID,
		brief.Title,
		brief.Budget,
		brief.Deadline,
		string(brief.Category),
		brief.Description,
		brief.AttachmentURL,
		string(brief.Status),
		brief.CreatedAt,
		brief.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create brief: %w", err)
	}
	return nil
}

// Get retrieves a brief with its feedback history, oldest first.
func (r *briefRepository) Get(ctx context.Context, id uuid.UUID) (*models.Brief, error) {
	briefs, err := r.list(ctx, `SELECT `+briefColumns+` FROM briefs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(briefs) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return briefs[0], nil
}

// ListByClient returns a client's briefs, newest first.
func (r *briefRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Brief, error) {
	return r.list(ctx, `SELECT `+briefColumns+` FROM briefs WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
}

// ListByStatus returns every brief in a status, newest first.
func (r *briefRepository) ListByStatus(ctx context.Context, status models.BriefStatus) ([]*models.Brief, error) {
	return r.list(ctx, `SELECT `+briefColumns+` FROM briefs WHERE status = $1 ORDER BY updated_at DESC`, string(status))
}

func (r *briefRepository) list(ctx context.Context, query string, args ...any) ([]*models.Brief, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query briefs: %w", err)
	}
	defer rows.Close()

	var briefs []*models.Brief
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			return nil, err
		}
		briefs = append(briefs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate briefs: %w", err)
	}

	if err := loadFeedback(ctx, r.db, briefs); err != nil {
		return nil, err
	}
	return briefs, nil
}

func scanBrief(row pgx.Row) (*models.Brief, error) {
	var b models.Brief
	var category, status string
	err := row.Scan(
		&b.ID,
		&b.ClientID,
		&b.Title,
		&b.Budget,
		&b.Deadline,
		&category,
		&b.Description,
		&b.AttachmentURL,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan brief: %w", err)
	}

	b.Category = models.BriefCategory(category)
	if b.Status, err = models.ParseBriefStatus(status); err != nil {
		return nil, fmt.Errorf("brief %s: %w", b.ID, err)
	}
	b.Feedback = []models.FeedbackItem{}
	return &b, nil
}

// loadFeedback fills in the feedback of every brief with one query.
func loadFeedback(ctx context.Context, q queryer, briefs []*models.Brief) error {
	if len(briefs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(briefs))
	byID := make(map[uuid.UUID]*models.Brief, len(briefs))
	for i, b := range briefs {
		ids[i] = b.ID
		byID[b.ID] = b
	}

	rows, err := q.Query(ctx, `
		SELECT brief_id, message, from_reviewer, created_at
		FROM brief_feedback
		WHERE brief_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var briefID uuid.UUID
		var item models.FeedbackItem
		if err := rows.Scan(&briefID, &item.Message, &item.FromReviewer, &item.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan feedback: %w", err)
		}
		if b, ok := byID[briefID]; ok {
			b.Feedback = append(b.Feedback, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate feedback: %w", err)
	}
	return nil
}

// Update applies a partial update and appends feedback in one transaction.
// With ExpectStatus set, a brief whose stored status differs is left
// untouched and ErrConflict is returned.
func (r *briefRepository) Update(ctx context.Context, id uuid.UUID, patch *models.BriefPatch) error {
	sets, args := patchAssignments(patch)
	args = append([]any{id}, args...)
	sets = append(sets, "updated_at = now()")

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	where := "id = $1"
	if patch.ExpectStatus != nil {
		args = append(args, string(*patch.ExpectStatus))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query := fmt.Sprintf(`UPDATE briefs SET %s WHERE %s`, strings.Join(sets, ", "), where)
	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update brief: %w", err)
	}
	if result.RowsAffected() == 0 {
		if patch.ExpectStatus == nil {
			return apperrors.ErrNotFound
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM briefs WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check brief: %w", err)
		}
		if exists {
			// Another writer moved the brief on since it was read.
			return apperrors.ErrConflict
		}
		return apperrors.ErrNotFound
	}

	if len(patch.AppendFeedback) > 0 {
		batch := &pgx.Batch{}
		for _, item := range patch.AppendFeedback {
			createdAt := item.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			batch.Queue(`
				INSERT INTO brief_feedback (brief_id, message, from_reviewer, created_at)
				VALUES ($1, $2, $3, $4)`,
				id, item.Message, item.FromReviewer, createdAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to append feedback: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// patchAssignments renders the non-nil patch fields as SET clauses.
// Placeholders start at $2; $1 is the brief id.
func patchAssignments(patch *models.BriefPatch) ([]string, []any) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Budget != nil {
		add("budget", *patch.Budget)
	}
	if patch.Deadline != nil {
		add("deadline", *patch.Deadline)
	}
	if patch.Category != nil {
		add("category", string(*patch.Category))
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.AttachmentURL != nil {
		add("attachment_url", *patch.AttachmentURL)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	return sets, args
}

// Ensure briefRepository implements BriefRepository at compile time.
var _ BriefRepository = (*briefRepository)(nil)
