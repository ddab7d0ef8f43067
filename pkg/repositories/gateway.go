package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-briefs/pkg/database"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services"
)

// AttachmentPath is the route attachments are served from.
const AttachmentPath = "/api/attachments/"

// PostgresGateway implements services.Gateway over the repositories.
type PostgresGateway struct {
	briefs      BriefRepository
	responses   QuestionResponseRepository
	attachments AttachmentRepository
	baseURL     string
}

// NewPostgresGateway wires the repositories against db. baseURL prefixes
// attachment URLs; empty yields host-relative URLs.
func NewPostgresGateway(db *database.DB, baseURL string) *PostgresGateway {
	return &PostgresGateway{
		briefs:      NewBriefRepository(db),
		responses:   NewQuestionResponseRepository(db),
		attachments: NewAttachmentRepository(db),
		baseURL:     strings.TrimSuffix(baseURL, "/"),
	}
}

func (g *PostgresGateway) CreateBrief(ctx context.Context, brief *models.Brief) (uuid.UUID, error) {
	if err := g.briefs.Create(ctx, brief); err != nil {
		return uuid.Nil, err
	}
	return brief.ID, nil
}

func (g *PostgresGateway) GetBrief(ctx context.Context, id uuid.UUID) (*models.Brief, error) {
	return g.briefs.Get(ctx, id)
}

func (g *PostgresGateway) UpdateBrief(ctx context.Context, id uuid.UUID, patch *models.BriefPatch) error {
	return g.briefs.Update(ctx, id, patch)
}

func (g *PostgresGateway) ListBriefsForClient(ctx context.Context, clientID uuid.UUID) ([]*models.Brief, error) {
	return g.briefs.ListByClient(ctx, clientID)
}

func (g *PostgresGateway) ListBriefsByStatus(ctx context.Context, status models.BriefStatus) ([]*models.Brief, error) {
	return g.briefs.ListByStatus(ctx, status)
}

func (g *PostgresGateway) UpsertQuestionResponse(ctx context.Context, resp *models.QuestionResponse) error {
	return g.responses.Upsert(ctx, resp)
}

func (g *PostgresGateway) GetQuestionResponses(ctx context.Context, draftID uuid.UUID) ([]*models.QuestionResponse, error) {
	return g.responses.ListByDraft(ctx, draftID)
}

func (g *PostgresGateway) AttachFile(ctx context.Context, ownerID uuid.UUID, file *models.Attachment) (string, error) {
	file.OwnerID = ownerID
	if err := g.attachments.Create(ctx, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%s", g.baseURL, AttachmentPath, file.ID), nil
}

func (g *PostgresGateway) GetAttachment(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	return g.attachments.Get(ctx, id)
}

var _ services.Gateway = (*PostgresGateway)(nil)
