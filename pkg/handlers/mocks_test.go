package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services"
)

// memGateway is a minimal in-memory services.Gateway for handler tests.
type memGateway struct {
	mu          sync.Mutex
	briefs      map[uuid.UUID]*models.Brief
	responses   map[uuid.UUID]map[string]models.QuestionResponse
	attachments map[uuid.UUID]*models.Attachment
	updateErr   error
}

func newMemGateway() *memGateway {
	return &memGateway{
		briefs:      make(map[uuid.UUID]*models.Brief),
		responses:   make(map[uuid.UUID]map[string]models.QuestionResponse),
		attachments: make(map[uuid.UUID]*models.Attachment),
	}
}

func (g *memGateway) put(b *models.Brief) *models.Brief {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	g.briefs[b.ID] = b.Clone()
	return b
}

func (g *memGateway) CreateBrief(ctx context.Context, brief *models.Brief) (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if brief.ID == uuid.Nil {
		brief.ID = uuid.New()
	}
	if _, ok := g.briefs[brief.ID]; ok {
		return uuid.Nil, apperrors.ErrConflict
	}
	g.briefs[brief.ID] = brief.Clone()
	return brief.ID, nil
}

func (g *memGateway) GetBrief(ctx context.Context, id uuid.UUID) (*models.Brief, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.briefs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return b.Clone(), nil
}

func (g *memGateway) UpdateBrief(ctx context.Context, id uuid.UUID, patch *models.BriefPatch) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return g.updateErr
	}
	b, ok := g.briefs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if patch.ExpectStatus != nil && b.Status != *patch.ExpectStatus {
		return apperrors.ErrConflict
	}
	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Description != nil {
		b.Description = *patch.Description
	}
	if patch.Category != nil {
		b.Category = *patch.Category
	}
	if patch.Budget != nil {
		b.Budget = *patch.Budget
	}
	if patch.AttachmentURL != nil {
		b.AttachmentURL = patch.AttachmentURL
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	b.Feedback = append(b.Feedback, patch.AppendFeedback...)
	return nil
}

func (g *memGateway) ListBriefsForClient(ctx context.Context, clientID uuid.UUID) ([]*models.Brief, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*models.Brief
	for _, b := range g.briefs {
		if b.ClientID == clientID {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (g *memGateway) ListBriefsByStatus(ctx context.Context, status models.BriefStatus) ([]*models.Brief, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*models.Brief
	for _, b := range g.briefs {
		if b.Status == status {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (g *memGateway) UpsertQuestionResponse(ctx context.Context, resp *models.QuestionResponse) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.responses[resp.BriefDraftID]
	if !ok {
		m = make(map[string]models.QuestionResponse)
		g.responses[resp.BriefDraftID] = m
	}
	m[resp.QuestionID] = *resp
	return nil
}

func (g *memGateway) GetQuestionResponses(ctx context.Context, draftID uuid.UUID) ([]*models.QuestionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*models.QuestionResponse
	for _, r := range g.responses[draftID] {
		r := r
		out = append(out, &r)
	}
	return out, nil
}

func (g *memGateway) AttachFile(ctx context.Context, ownerID uuid.UUID, file *models.Attachment) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	file.ID = uuid.New()
	file.OwnerID = ownerID
	g.attachments[file.ID] = file
	return "http://localhost:3480/api/attachments/" + file.ID.String(), nil
}

func (g *memGateway) GetAttachment(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.attachments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

var _ services.Gateway = (*memGateway)(nil)

// stubProvider returns canned text.
type stubProvider struct {
	summaryErr error
}

func (p *stubProvider) Suggest(ctx context.Context, questionID, promptText string) (string, error) {
	return "suggested " + questionID, nil
}

func (p *stubProvider) Summarize(ctx context.Context, answers []models.AnsweredQuestion) (string, error) {
	if p.summaryErr != nil {
		return "", p.summaryErr
	}
	return "Summary of the brief.", nil
}
