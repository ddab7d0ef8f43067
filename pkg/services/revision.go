package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/notify"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services/lifecycle"
)

// RevisionManager reopens briefs that a reviewer sent back. A revision uses
// the same wizard as initial authoring, bound to the existing brief id.
type RevisionManager struct {
	gateway  Gateway
	registry *WizardRegistry
	notify   notify.Sink
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*RevisionSession
}

// NewRevisionManager creates a RevisionManager.
func NewRevisionManager(gateway Gateway, registry *WizardRegistry, sink notify.Sink, logger *zap.Logger) *RevisionManager {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &RevisionManager{
		gateway:  gateway,
		registry: registry,
		notify:   sink,
		logger:   logger.Named("revision"),
		sessions: make(map[uuid.UUID]*RevisionSession),
	}
}

// Begin opens a revision of a brief in changes_requested. The brief's
// fields seed the session and its earlier answers are loaded into the wizard.
func (m *RevisionManager) Begin(ctx context.Context, clientID, briefID uuid.UUID) (*RevisionSession, error) {
	brief, err := m.gateway.GetBrief(ctx, briefID)
	if err != nil {
		return nil, gatewayError("get brief", err)
	}
	if brief.ClientID != clientID {
		return nil, apperrors.ErrNotFound
	}
	if brief.Status != models.BriefStatusChangesRequested {
		err := &apperrors.IllegalTransitionError{Action: "revise", Status: string(brief.Status)}
		m.logger.Error("Revision of brief not awaiting changes",
			zap.String("brief_id", briefID.String()),
			zap.Error(err))
		return nil, err
	}
	if len(brief.Feedback) == 0 {
		return nil, apperrors.NewValidationError("feedback", "brief has no reviewer feedback")
	}

	responses, err := m.gateway.GetQuestionResponses(ctx, briefID)
	if err != nil {
		return nil, gatewayError("get responses", err)
	}

	session := &RevisionSession{
		manager: m,
		brief:   brief,
		fields:  brief.Fields(),
		wizard:  m.registry.bind(ctx, brief, responses),
	}

	m.mu.Lock()
	m.sessions[briefID] = session
	m.mu.Unlock()

	m.logger.Info("Revision started",
		zap.String("brief_id", briefID.String()),
		zap.Int("feedback_items", len(brief.Feedback)),
		zap.Int("responses", len(responses)))
	return session, nil
}

// Get returns an open revision owned by clientID.
func (m *RevisionManager) Get(clientID, briefID uuid.UUID) (*RevisionSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[briefID]
	if !ok || s.brief.ClientID != clientID {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (m *RevisionManager) close(briefID uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, briefID)
	m.mu.Unlock()
	m.registry.Remove(briefID)
}

// RevisionSession is one client's revision of one brief.
type RevisionSession struct {
	manager *RevisionManager
	wizard  *Wizard

	mu     sync.Mutex
	brief  *models.Brief
	fields models.BriefFields
}

// BriefID is the id of the brief under revision. It never changes.
func (s *RevisionSession) BriefID() uuid.UUID {
	return s.brief.ID
}

// Feedback returns the reviewer notes, oldest first.
func (s *RevisionSession) Feedback() []models.FeedbackItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FeedbackItem(nil), s.brief.Feedback...)
}

// Fields returns the edited fields.
func (s *RevisionSession) Fields() models.BriefFields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields
}

// Wizard returns the authoring session bound to the brief.
func (s *RevisionSession) Wizard() *Wizard {
	return s.wizard
}

// UpdateFields edits the fields locally. Nothing is stored until Resubmit.
// Status and feedback cannot be changed here.
func (s *RevisionSession) UpdateFields(patch *models.BriefPatch) error {
	if patch.Status != nil || len(patch.AppendFeedback) > 0 {
		return apperrors.NewValidationError("patch", "status and feedback cannot be edited")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return apperrors.NewValidationError("title", "title is required")
	}
	if patch.Category != nil {
		if _, err := models.ParseBriefCategory(string(*patch.Category)); err != nil {
			return apperrors.NewValidationError("category", err.Error())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.Title != nil {
		s.fields.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Budget != nil {
		s.fields.Budget = *patch.Budget
	}
	if patch.Deadline != nil {
		d := *patch.Deadline
		s.fields.Deadline = &d
	}
	if patch.Category != nil {
		s.fields.Category = *patch.Category
	}
	if patch.Description != nil {
		s.fields.Description = *patch.Description
	}
	if patch.AttachmentURL != nil {
		u := *patch.AttachmentURL
		s.fields.AttachmentURL = &u
	}
	return nil
}

// Resubmit stores the wizard's unsaved answers and the edited fields, then
// resubmits the brief. The id and the feedback history are kept. On failure
// the session stays open with its edits.
func (s *RevisionSession) Resubmit(ctx context.Context) (*models.Brief, error) {
	m := s.manager

	s.wizard.navMu.Lock()
	err := s.wizard.saveAll(ctx, s.wizard.dirtyIn(""))
	s.wizard.navMu.Unlock()
	if err != nil {
		return nil, err
	}

	// The transition is judged against the stored status, not the copy
	// taken when the revision began.
	brief, err := m.gateway.GetBrief(ctx, s.BriefID())
	if err != nil {
		err = gatewayError("get brief", err)
		m.notify.Notify(notify.KindError, "Could not resubmit brief", "Your changes are kept. Please try again.")
		return nil, err
	}

	s.mu.Lock()
	fields := s.fields
	s.mu.Unlock()

	next, err := commitTransition(ctx, m.gateway, brief, lifecycle.Resubmit(), &fields)
	if err != nil {
		switch {
		case apperrors.IsIllegalTransition(err), errors.Is(err, apperrors.ErrConflict):
			m.logger.Error("Illegal transition on resubmit", zap.Error(err))
			m.notify.Notify(notify.KindError, "Action not available", "Refresh the page and try again.")
		case apperrors.IsValidation(err):
			m.notify.Notify(notify.KindError, "Brief is incomplete", err.Error())
		default:
			m.notify.Notify(notify.KindError, "Could not resubmit brief", "Your changes are kept. Please try again.")
		}
		return nil, err
	}

	s.mu.Lock()
	s.brief = next.Clone()
	s.mu.Unlock()
	m.close(next.ID)

	m.logger.Info("Brief resubmitted",
		zap.String("brief_id", next.ID.String()),
		zap.Int("feedback_items", len(next.Feedback)))
	m.notify.Notify(notify.KindSuccess, actionTitle(lifecycle.ActionResubmit), next.Title)
	return next, nil
}
