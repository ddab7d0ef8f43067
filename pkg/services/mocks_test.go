package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/llm"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/notify"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services/suggestions"
)

// mockGateway is an in-memory Gateway that records calls. Setting an
// error field fails every call of that kind; failUpsert fails per question.
type mockGateway struct {
	mu sync.Mutex

	briefs      map[uuid.UUID]*models.Brief
	responses   map[uuid.UUID]map[string]models.QuestionResponse
	attachments map[uuid.UUID]*models.Attachment

	createCalls  int
	updateCalls  []models.BriefPatch
	upsertCalls  []models.QuestionResponse
	attachCalls  int
	getCalls     int
	upsertGate   chan struct{}
	// getBarrier holds each GetBrief until every expected reader arrived.
	getBarrier   *sync.WaitGroup
	createErr    error
	updateErr    error
	getErr       error
	responsesErr error
	failUpsert   map[string]error
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		briefs:      make(map[uuid.UUID]*models.Brief),
		responses:   make(map[uuid.UUID]map[string]models.QuestionResponse),
		attachments: make(map[uuid.UUID]*models.Attachment),
		failUpsert:  make(map[string]error),
	}
}

func (m *mockGateway) put(b *models.Brief) *models.Brief {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	m.briefs[b.ID] = b.Clone()
	return b
}

func (m *mockGateway) stored(id uuid.UUID) *models.Brief {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.briefs[id].Clone()
}

func (m *mockGateway) CreateBrief(ctx context.Context, brief *models.Brief) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return uuid.Nil, m.createErr
	}
	if brief.ID == uuid.Nil {
		brief.ID = uuid.New()
	}
	if _, exists := m.briefs[brief.ID]; exists {
		return uuid.Nil, apperrors.ErrConflict
	}
	m.briefs[brief.ID] = brief.Clone()
	return brief.ID, nil
}

func (m *mockGateway) GetBrief(ctx context.Context, id uuid.UUID) (*models.Brief, error) {
	m.mu.Lock()
	barrier := m.getBarrier
	m.mu.Unlock()
	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.briefs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return b.Clone(), nil
}

func (m *mockGateway) UpdateBrief(ctx context.Context, id uuid.UUID, patch *models.BriefPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls = append(m.updateCalls, *patch)
	if m.updateErr != nil {
		return m.updateErr
	}
	b, ok := m.briefs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if patch.ExpectStatus != nil && b.Status != *patch.ExpectStatus {
		return apperrors.ErrConflict
	}
	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Budget != nil {
		b.Budget = *patch.Budget
	}
	if patch.Deadline != nil {
		b.Deadline = patch.Deadline
	}
	if patch.Category != nil {
		b.Category = *patch.Category
	}
	if patch.Description != nil {
		b.Description = *patch.Description
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

func (m *mockGateway) ListBriefsForClient(ctx context.Context, clientID uuid.UUID) ([]*models.Brief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Brief
	for _, b := range m.briefs {
		if b.ClientID == clientID {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (m *mockGateway) ListBriefsByStatus(ctx context.Context, status models.BriefStatus) ([]*models.Brief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Brief
	for _, b := range m.briefs {
		if b.Status == status {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (m *mockGateway) UpsertQuestionResponse(ctx context.Context, resp *models.QuestionResponse) error {
	m.mu.Lock()
	m.upsertCalls = append(m.upsertCalls, *resp)
	gate := m.upsertGate
	failErr := m.failUpsert[resp.QuestionID]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failErr != nil {
		return failErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	byQuestion, ok := m.responses[resp.BriefDraftID]
	if !ok {
		byQuestion = make(map[string]models.QuestionResponse)
		m.responses[resp.BriefDraftID] = byQuestion
	}
	byQuestion[resp.QuestionID] = *resp
	return nil
}

func (m *mockGateway) GetQuestionResponses(ctx context.Context, draftID uuid.UUID) ([]*models.QuestionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.responsesErr != nil {
		return nil, m.responsesErr
	}
	var out []*models.QuestionResponse
	for _, r := range m.responses[draftID] {
		r := r
		out = append(out, &r)
	}
	return out, nil
}

func (m *mockGateway) AttachFile(ctx context.Context, ownerID uuid.UUID, file *models.Attachment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachCalls++
	file.ID = uuid.New()
	file.OwnerID = ownerID
	m.attachments[file.ID] = file
	return "http://localhost:3480/api/attachments/" + file.ID.String(), nil
}

func (m *mockGateway) GetAttachment(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attachments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (m *mockGateway) upserts() []models.QuestionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.QuestionResponse(nil), m.upsertCalls...)
}

func (m *mockGateway) updates() []models.BriefPatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BriefPatch(nil), m.updateCalls...)
}

func (m *mockGateway) setFailUpsert(questionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failUpsert, questionID)
		return
	}
	m.failUpsert[questionID] = err
}

var _ Gateway = (*mockGateway)(nil)

// mockSuggestionProvider answers every question with a fixed text unless
// told to fail.
type mockSuggestionProvider struct {
	mu           sync.Mutex
	suggestions  map[string]string
	suggestErr   error
	summary      string
	summarizeErr error
	summarized   [][]models.AnsweredQuestion
}

func newMockSuggestionProvider() *mockSuggestionProvider {
	return &mockSuggestionProvider{suggestions: make(map[string]string)}
}

func (p *mockSuggestionProvider) Suggest(ctx context.Context, questionID, promptText string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suggestErr != nil {
		return "", p.suggestErr
	}
	if text, ok := p.suggestions[questionID]; ok {
		return text, nil
	}
	return "suggested " + questionID, nil
}

func (p *mockSuggestionProvider) Summarize(ctx context.Context, answers []models.AnsweredQuestion) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summarized = append(p.summarized, answers)
	if p.summarizeErr != nil {
		return "", p.summarizeErr
	}
	return p.summary, nil
}

var _ SuggestionProvider = (*mockSuggestionProvider)(nil)

type testEnv struct {
	gateway  *mockGateway
	provider *mockSuggestionProvider
	sink     *notify.RecordingSink
	registry *WizardRegistry
	clientID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		gateway:  newMockGateway(),
		provider: newMockSuggestionProvider(),
		sink:     notify.NewRecordingSink(),
		clientID: uuid.New(),
	}
	env.registry = NewWizardRegistry(WizardDeps{
		Gateway:  env.gateway,
		Provider: env.provider,
		Catalog:  models.DefaultQuestionCatalog(),
		Notify:   env.sink,
		Pool:     llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 4}, zap.NewNop()),
		Logger:   zap.NewNop(),
	}, MemoryCacheFactory(), suggestions.Config{})
	t.Cleanup(env.registry.Close)
	return env
}
