package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
)

// Gateway is the persistence boundary for briefs, answers, and files.
// Every call may fail; services wrap failures in apperrors.PersistenceError
// and never retry them.
type Gateway interface {
	// CreateBrief stores a new brief and returns its id. A preset brief.ID is kept.
	CreateBrief(ctx context.Context, brief *models.Brief) (uuid.UUID, error)
	GetBrief(ctx context.Context, id uuid.UUID) (*models.Brief, error)
	// UpdateBrief applies patch. Feedback in the patch is appended in the same write.
	UpdateBrief(ctx context.Context, id uuid.UUID, patch *models.BriefPatch) error
	ListBriefsForClient(ctx context.Context, clientID uuid.UUID) ([]*models.Brief, error)
	ListBriefsByStatus(ctx context.Context, status models.BriefStatus) ([]*models.Brief, error)

	UpsertQuestionResponse(ctx context.Context, resp *models.QuestionResponse) error
	GetQuestionResponses(ctx context.Context, draftID uuid.UUID) ([]*models.QuestionResponse, error)

	// AttachFile stores a file and returns the URL it is served from.
	AttachFile(ctx context.Context, ownerID uuid.UUID, file *models.Attachment) (string, error)
	GetAttachment(ctx context.Context, id uuid.UUID) (*models.Attachment, error)
}

// SuggestionProvider produces AI text for the authoring flow. Both calls are
// stateless and may fail without affecting local state.
type SuggestionProvider interface {
	Suggest(ctx context.Context, questionID, promptText string) (string, error)
	Summarize(ctx context.Context, answers []models.AnsweredQuestion) (string, error)
}
