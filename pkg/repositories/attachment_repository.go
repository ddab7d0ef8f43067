package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/database"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
)

// AttachmentRepository stores uploaded files.
type AttachmentRepository interface {
	Create(ctx context.Context, a *models.Attachment) error
	Get(ctx context.Context, id uuid.UUID) (*models.Attachment, error)
}

type attachmentRepository struct {
	db *database.DB
}

// NewAttachmentRepository creates a new attachment repository.
func NewAttachmentRepository(db *database.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx, `
		INSERT INTO brief_attachments (id, owner_id, file_name, content_type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.OwnerID, a.FileName, a.ContentType, a.Data, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store attachment: %w", err)
	}
	return nil
}

func (r *attachmentRepository) Get(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	var a models.Attachment
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, file_name, content_type, data, created_at
		FROM brief_attachments
		WHERE id = $1`, id).Scan(&a.ID, &a.OwnerID, &a.FileName, &a.ContentType, &a.Data, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &a, nil
}

var _ AttachmentRepository = (*attachmentRepository)(nil)
