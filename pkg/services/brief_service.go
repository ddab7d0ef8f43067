package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/notify"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services/lifecycle"
)

// BriefService provides client and reviewer operations on briefs.
// Every status change goes through lifecycle.Transition and is persisted
// before it is returned.
type BriefService interface {
	// CreateDraft stores a new draft brief owned by clientID.
	CreateDraft(ctx context.Context, clientID uuid.UUID, fields models.BriefFields) (*models.Brief, error)

	// Get returns a brief owned by clientID. A brief owned by anyone else is ErrNotFound.
	Get(ctx context.Context, clientID, briefID uuid.UUID) (*models.Brief, error)

	// ListForClient returns every brief owned by clientID, newest first.
	ListForClient(ctx context.Context, clientID uuid.UUID) ([]*models.Brief, error)

	// UpdateDraft overwrites the editable fields. Only legal while the brief can be edited.
	UpdateDraft(ctx context.Context, clientID, briefID uuid.UUID, fields models.BriefFields) (*models.Brief, error)

	// Apply runs a lifecycle action and persists the result.
	Apply(ctx context.Context, briefID uuid.UUID, action lifecycle.Action) (*models.Brief, error)

	// ListPublished returns the anonymized view of every published brief.
	ListPublished(ctx context.Context) ([]models.PublishedBrief, error)

	// GetPublished returns one published brief, anonymized. Any other status is ErrNotFound.
	GetPublished(ctx context.Context, briefID uuid.UUID) (*models.PublishedBrief, error)

	// AttachFile stores a file and records its URL on the brief.
	AttachFile(ctx context.Context, clientID, briefID uuid.UUID, file *models.Attachment) (*models.Brief, error)

	// GetAttachment returns a stored file owned by clientID.
	GetAttachment(ctx context.Context, clientID, attachmentID uuid.UUID) (*models.Attachment, error)
}

type briefService struct {
	gateway Gateway
	notify  notify.Sink
	logger  *zap.Logger
}

// NewBriefService creates a new BriefService.
func NewBriefService(gateway Gateway, sink notify.Sink, logger *zap.Logger) BriefService {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &briefService{
		gateway: gateway,
		notify:  sink,
		logger:  logger.Named("briefs"),
	}
}

var _ BriefService = (*briefService)(nil)

func (s *briefService) CreateDraft(ctx context.Context, clientID uuid.UUID, fields models.BriefFields) (*models.Brief, error) {
	brief := withFields(&models.Brief{
		ClientID: clientID,
		Status:   models.BriefStatusDraft,
		Feedback: []models.FeedbackItem{},
	}, fields)
	if err := brief.Validate(); err != nil {
		return nil, apperrors.NewValidationError("brief", err.Error())
	}

	id, err := s.gateway.CreateBrief(ctx, brief)
	if err != nil {
		s.notify.Notify(notify.KindError, "Could not save draft", "Please try again.")
		return nil, gatewayError("create brief", err)
	}
	brief.ID = id

	s.logger.Info("Draft created",
		zap.String("brief_id", id.String()),
		zap.String("client_id", clientID.String()))
	s.notify.Notify(notify.KindSuccess, "Draft saved", brief.Title)
	return brief, nil
}

func (s *briefService) Get(ctx context.Context, clientID, briefID uuid.UUID) (*models.Brief, error) {
	brief, err := s.gateway.GetBrief(ctx, briefID)
	if err != nil {
		return nil, gatewayError("get brief", err)
	}
	if brief.ClientID != clientID {
		return nil, apperrors.ErrNotFound
	}
	return brief, nil
}

func (s *briefService) ListForClient(ctx context.Context, clientID uuid.UUID) ([]*models.Brief, error) {
	briefs, err := s.gateway.ListBriefsForClient(ctx, clientID)
	if err != nil {
		return nil, gatewayError("list briefs", err)
	}
	return briefs, nil
}

func (s *briefService) UpdateDraft(ctx context.Context, clientID, briefID uuid.UUID, fields models.BriefFields) (*models.Brief, error) {
	brief, err := s.Get(ctx, clientID, briefID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanEdit(brief.Status) {
		return nil, s.illegal(brief, "edit")
	}

	updated := withFields(brief.Clone(), fields)
	if err := updated.Validate(); err != nil {
		return nil, apperrors.NewValidationError("brief", err.Error())
	}

	patch := models.PatchFromFields(fields)
	patch.ExpectStatus = &brief.Status
	if err := s.gateway.UpdateBrief(ctx, briefID, patch); err != nil {
		s.notify.Notify(notify.KindError, "Could not save changes", "Your edits are kept. Please try again.")
		return nil, gatewayError("update brief", err)
	}
	updated.UpdatedAt = time.Now().UTC()

	s.notify.Notify(notify.KindSuccess, "Changes saved", updated.Title)
	return updated, nil
}

func (s *briefService) Apply(ctx context.Context, briefID uuid.UUID, action lifecycle.Action) (*models.Brief, error) {
	brief, err := s.gateway.GetBrief(ctx, briefID)
	if err != nil {
		return nil, gatewayError("get brief", err)
	}

	next, err := commitTransition(ctx, s.gateway, brief, action, nil)
	if err != nil {
		s.reportFailure(brief, action.Kind, err)
		return nil, err
	}

	s.logger.Info("Brief transitioned",
		zap.String("brief_id", briefID.String()),
		zap.String("action", string(action.Kind)),
		zap.String("from", string(brief.Status)),
		zap.String("to", string(next.Status)))
	s.notify.Notify(notify.KindSuccess, actionTitle(action.Kind), next.Title)
	return next, nil
}

func (s *briefService) ListPublished(ctx context.Context) ([]models.PublishedBrief, error) {
	briefs, err := s.gateway.ListBriefsByStatus(ctx, models.BriefStatusPublished)
	if err != nil {
		return nil, gatewayError("list published briefs", err)
	}
	out := make([]models.PublishedBrief, 0, len(briefs))
	for _, b := range briefs {
		out = append(out, b.Anonymize())
	}
	return out, nil
}

func (s *briefService) GetPublished(ctx context.Context, briefID uuid.UUID) (*models.PublishedBrief, error) {
	brief, err := s.gateway.GetBrief(ctx, briefID)
	if err != nil {
		return nil, gatewayError("get brief", err)
	}
	if brief.Status != models.BriefStatusPublished {
		return nil, apperrors.ErrNotFound
	}
	published := brief.Anonymize()
	return &published, nil
}

func (s *briefService) AttachFile(ctx context.Context, clientID, briefID uuid.UUID, file *models.Attachment) (*models.Brief, error) {
	brief, err := s.Get(ctx, clientID, briefID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanEdit(brief.Status) {
		return nil, s.illegal(brief, "attach")
	}
	if len(file.Data) == 0 {
		return nil, apperrors.NewValidationError("file", "file is empty")
	}

	url, err := s.gateway.AttachFile(ctx, clientID, file)
	if err != nil {
		s.notify.Notify(notify.KindError, "Upload failed", file.FileName)
		return nil, gatewayError("attach file", err)
	}
	if err := s.gateway.UpdateBrief(ctx, briefID, &models.BriefPatch{AttachmentURL: &url, ExpectStatus: &brief.Status}); err != nil {
		s.notify.Notify(notify.KindError, "Upload failed", file.FileName)
		return nil, gatewayError("update brief", err)
	}

	updated := brief.Clone()
	updated.AttachmentURL = &url
	s.notify.Notify(notify.KindSuccess, "File attached", file.FileName)
	return updated, nil
}

func (s *briefService) GetAttachment(ctx context.Context, clientID, attachmentID uuid.UUID) (*models.Attachment, error) {
	file, err := s.gateway.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, gatewayError("get attachment", err)
	}
	if file.OwnerID != clientID {
		return nil, apperrors.ErrNotFound
	}
	return file, nil
}

func (s *briefService) illegal(brief *models.Brief, action string) error {
	err := &apperrors.IllegalTransitionError{Action: action, Status: string(brief.Status)}
	s.reportFailure(brief, lifecycle.ActionKind(action), err)
	return err
}

// reportFailure logs and notifies a failed action. Illegal transitions are
// bugs in the caller and get generic wording.
func (s *briefService) reportFailure(brief *models.Brief, action lifecycle.ActionKind, err error) {
	switch {
	case apperrors.IsIllegalTransition(err):
		s.logger.Error("Illegal brief transition",
			zap.String("brief_id", brief.ID.String()),
			zap.Error(err))
		s.notify.Notify(notify.KindError, "Action not available", "Refresh the page and try again.")
	case apperrors.IsValidation(err):
		s.notify.Notify(notify.KindError, "Brief is incomplete", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		s.logger.Warn("Brief changed before the action was stored",
			zap.String("brief_id", brief.ID.String()),
			zap.String("action", string(action)))
		s.notify.Notify(notify.KindError, "Brief was updated elsewhere", "Refresh the page and try again.")
	default:
		s.logger.Warn("Brief action failed",
			zap.String("brief_id", brief.ID.String()),
			zap.String("action", string(action)),
			zap.Error(err))
		s.notify.Notify(notify.KindError, "Could not update brief", "Please try again.")
	}
}

// commitTransition runs action against brief and persists the new status,
// any appended feedback and the optional field changes in one UpdateBrief
// call. The returned brief is only produced once that call succeeds. The
// write is conditional on the stored status still being brief.Status, so
// a brief moved on by another writer fails with ErrConflict.
func commitTransition(ctx context.Context, gateway Gateway, brief *models.Brief, action lifecycle.Action, fields *models.BriefFields) (*models.Brief, error) {
	base := brief
	if fields != nil {
		base = withFields(brief.Clone(), *fields)
	}

	next, err := lifecycle.Transition(base, action)
	if err != nil {
		return nil, err
	}

	patch := &models.BriefPatch{}
	if fields != nil {
		patch = models.PatchFromFields(*fields)
	}
	from := brief.Status
	patch.Status = &next.Status
	patch.ExpectStatus = &from
	patch.AppendFeedback = next.Feedback[len(base.Feedback):]

	if err := gateway.UpdateBrief(ctx, brief.ID, patch); err != nil {
		return nil, gatewayError("update brief", err)
	}
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

// withFields overwrites b's editable fields and returns b.
func withFields(b *models.Brief, f models.BriefFields) *models.Brief {
	b.Title = f.Title
	b.Budget = f.Budget
	b.Deadline = f.Deadline
	b.Category = f.Category
	b.Description = f.Description
	if f.AttachmentURL != nil {
		b.AttachmentURL = f.AttachmentURL
	}
	return b
}

// gatewayError wraps a gateway failure. ErrNotFound and ErrConflict pass
// through so callers can tell them from an unreachable store.
func gatewayError(op string, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.ErrNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return apperrors.ErrConflict
	}
	return apperrors.NewPersistenceError(op, err)
}

func actionTitle(kind lifecycle.ActionKind) string {
	switch kind {
	case lifecycle.ActionSubmit:
		return "Brief submitted"
	case lifecycle.ActionResubmit:
		return "Brief resubmitted"
	case lifecycle.ActionRequestChanges:
		return "Changes requested"
	case lifecycle.ActionPublish:
		return "Brief published"
	case lifecycle.ActionAward:
		return "Brief awarded"
	case lifecycle.ActionComplete:
		return "Brief completed"
	case lifecycle.ActionCancel:
		return "Brief cancelled"
	default:
		return "Brief updated"
	}
}
