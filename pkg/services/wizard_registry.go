package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services/lifecycle"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services/suggestions"
)

// CacheFactory creates the suggestion cache for one draft.
type CacheFactory func(draftID uuid.UUID) suggestions.Cache

// MemoryCacheFactory keeps suggestions in process memory.
func MemoryCacheFactory() CacheFactory {
	return func(uuid.UUID) suggestions.Cache {
		return suggestions.NewMemoryCache()
	}
}

// RedisCacheFactory writes suggestions through to Redis so a session resumed
// on another instance keeps them.
func RedisCacheFactory(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) CacheFactory {
	return func(draftID uuid.UUID) suggestions.Cache {
		return suggestions.NewRedisCache(rdb, draftID, ttl, logger)
	}
}

// WizardRegistry holds the live authoring sessions, keyed by draft id.
type WizardRegistry struct {
	deps       WizardDeps
	newCache   CacheFactory
	fetcherCfg suggestions.Config
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Wizard
}

// NewWizardRegistry creates an empty registry. A nil cache factory keeps
// suggestions in memory.
func NewWizardRegistry(deps WizardDeps, newCache CacheFactory, fetcherCfg suggestions.Config) *WizardRegistry {
	if newCache == nil {
		newCache = MemoryCacheFactory()
	}
	return &WizardRegistry{
		deps:       deps,
		newCache:   newCache,
		fetcherCfg: fetcherCfg,
		logger:     deps.Logger.Named("wizard-registry"),
		sessions:   make(map[uuid.UUID]*Wizard),
	}
}

// Start opens a new session with a fresh draft id and begins fetching
// suggestions for the first category.
func (r *WizardRegistry) Start(ctx context.Context, clientID uuid.UUID) *Wizard {
	w := r.open(ctx, uuid.New(), clientID, nil, nil)
	r.logger.Info("Wizard started",
		zap.String("draft_id", w.DraftID().String()),
		zap.String("client_id", clientID.String()))
	return w
}

// Get returns a live session owned by clientID.
func (r *WizardRegistry) Get(clientID, draftID uuid.UUID) (*Wizard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.sessions[draftID]
	if !ok || w.ClientID() != clientID {
		return nil, apperrors.ErrNotFound
	}
	return w, nil
}

// Resume returns the live session for draftID or rebuilds it from the
// stored responses, opening on the first category with unanswered
// questions. A draft with nothing stored is ErrNotFound. A brief that has
// left draft or changes_requested cannot be reopened.
//
// Stored responses carry no owner, so a draft without a brief is only
// guarded by its unguessable id once its live session is gone.
func (r *WizardRegistry) Resume(ctx context.Context, clientID, draftID uuid.UUID) (*Wizard, error) {
	r.mu.Lock()
	live, ok := r.sessions[draftID]
	r.mu.Unlock()
	if ok {
		if live.ClientID() != clientID {
			return nil, apperrors.ErrNotFound
		}
		return live, nil
	}

	brief, err := r.deps.Gateway.GetBrief(ctx, draftID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		brief = nil
	case err != nil:
		return nil, gatewayError("get brief", err)
	case brief.ClientID != clientID:
		return nil, apperrors.ErrNotFound
	case !lifecycle.CanEdit(brief.Status):
		err := &apperrors.IllegalTransitionError{Action: "edit", Status: string(brief.Status)}
		r.logger.Warn("Refusing to reopen answers of a brief that is not editable",
			zap.String("draft_id", draftID.String()),
			zap.Error(err))
		return nil, err
	}

	responses, err := r.deps.Gateway.GetQuestionResponses(ctx, draftID)
	if err != nil {
		return nil, gatewayError("get responses", err)
	}
	if brief == nil && len(responses) == 0 {
		return nil, apperrors.ErrNotFound
	}

	w := r.open(ctx, draftID, clientID, responses, brief)
	r.logger.Info("Wizard resumed",
		zap.String("draft_id", draftID.String()),
		zap.Int("responses", len(responses)))
	return w, nil
}

// bind opens a session on an existing brief, replacing any live one.
func (r *WizardRegistry) bind(ctx context.Context, brief *models.Brief, responses []*models.QuestionResponse) *Wizard {
	return r.open(ctx, brief.ID, brief.ClientID, responses, brief)
}

func (r *WizardRegistry) open(ctx context.Context, draftID, clientID uuid.UUID, seed []*models.QuestionResponse, brief *models.Brief) *Wizard {
	fetcher := suggestions.NewFetcher(r.deps.Provider, r.newCache(draftID), r.fetcherCfg, r.deps.Logger)
	w := newWizard(draftID, clientID, r.deps, fetcher, seed, brief)

	r.mu.Lock()
	r.sessions[draftID] = w
	r.mu.Unlock()

	w.start(ctx)
	return w
}

// Remove drops a session. In-flight suggestions still settle into its cache.
func (r *WizardRegistry) Remove(draftID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, draftID)
}

// Len returns the number of live sessions.
func (r *WizardRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close waits for every session's in-flight suggestions to settle.
func (r *WizardRegistry) Close() {
	r.mu.Lock()
	sessions := make([]*Wizard, 0, len(r.sessions))
	for _, w := range r.sessions {
		sessions = append(sessions, w)
	}
	r.mu.Unlock()

	for _, w := range sessions {
		w.Close()
	}
}
