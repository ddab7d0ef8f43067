package suggestions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
)

// DefaultTimeout bounds a single suggestion request.
const DefaultTimeout = 20 * time.Second

// Provider returns a suggestion for one question.
type Provider interface {
	Suggest(ctx context.Context, questionID, promptText string) (string, error)
}

// Config tunes the fetcher.
type Config struct {
	// Timeout bounds each request. A request that exceeds it is a soft
	// failure: the loading flag clears and the cache is left alone.
	Timeout time.Duration
}

// Fetcher issues one background suggestion request per question and writes
// results into a Cache. At most one request per question is in flight.
type Fetcher struct {
	provider Provider
	cache    Cache
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	loading map[string]struct{}
	wg      sync.WaitGroup
}

// NewFetcher creates a fetcher writing into cache.
func NewFetcher(provider Provider, cache Cache, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Fetcher{
		provider: provider,
		cache:    cache,
		timeout:  cfg.Timeout,
		logger:   logger.Named("suggestion-fetcher"),
		loading:  make(map[string]struct{}),
	}
}

// Cache returns the cache results are written into.
func (f *Fetcher) Cache() Cache {
	return f.cache
}

// FetchCategory dispatches a request for every question and returns
// immediately. Questions with a request already in flight are skipped.
// Requests outlive ctx's cancellation; each is bounded by the fetcher's timeout.
// Returns the ids actually dispatched.
func (f *Fetcher) FetchCategory(ctx context.Context, questions []models.Question) []string {
	base := context.WithoutCancel(ctx)

	var dispatched []string
	for _, q := range questions {
		if !f.markLoading(q.ID) {
			f.logger.Debug("Suggestion already in flight", zap.String("question_id", q.ID))
			continue
		}
		dispatched = append(dispatched, q.ID)

		f.wg.Add(1)
		go f.fetch(base, q)
	}
	return dispatched
}

func (f *Fetcher) fetch(ctx context.Context, q models.Question) {
	defer f.wg.Done()
	defer f.clearLoading(q.ID)

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	text, err := f.provider.Suggest(reqCtx, q.ID, q.Prompt)
	if err != nil {
		err = &apperrors.SuggestionUnavailableError{QuestionID: q.ID, Cause: err}
		if errors.Is(err, context.DeadlineExceeded) {
			f.logger.Info("Suggestion timed out",
				zap.String("question_id", q.ID),
				zap.Duration("timeout", f.timeout))
			return
		}
		f.logger.Warn("Suggestion failed",
			zap.String("question_id", q.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}

	f.cache.Put(ctx, q.ID, text)
	f.logger.Debug("Suggestion cached",
		zap.String("question_id", q.ID),
		zap.Duration("elapsed", time.Since(start)))
}

func (f *Fetcher) markLoading(questionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.loading[questionID]; busy {
		return false
	}
	f.loading[questionID] = struct{}{}
	return true
}

func (f *Fetcher) clearLoading(questionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.loading, questionID)
}

// Loading reports whether a request for the question is in flight.
func (f *Fetcher) Loading(questionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.loading[questionID]
	return busy
}

// LoadingSnapshot returns the ids of every in-flight question, sorted.
func (f *Fetcher) LoadingSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.loading))
	for id := range f.loading {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Wait blocks until every dispatched request has settled.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}
