package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/llm"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/notify"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services/lifecycle"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services/suggestions"
)

// Answers to these questions also fill the brief's Budget and Deadline.
const (
	budgetQuestionID   = "budget_range"
	deadlineQuestionID = "timeline_deadline"
)

// deadlineLayouts are the date forms a deadline answer is read in. Free
// text such as "end of next month" leaves the deadline unset; the answer
// still reaches the description through the summary.
var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func parseDeadline(answer string) *time.Time {
	answer = strings.TrimSpace(answer)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, answer); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// WizardDeps are the collaborators shared by every wizard session.
type WizardDeps struct {
	Gateway  Gateway
	Provider SuggestionProvider
	Catalog  *models.QuestionCatalog
	Notify   notify.Sink
	// Pool bounds the concurrent response saves issued when leaving a category.
	Pool   *llm.WorkerPool
	Logger *zap.Logger
}

// WizardState is a point-in-time view of a session for rendering.
type WizardState struct {
	DraftID         uuid.UUID                          `json:"draft_id"`
	BriefID         *uuid.UUID                         `json:"brief_id,omitempty"`
	CurrentCategory models.QuestionCategory            `json:"current_category"`
	CategoryTitle   string                             `json:"category_title"`
	Questions       []models.Question                  `json:"questions"`
	Responses       map[string]models.QuestionResponse `json:"responses"`
	Suggestions     map[string]string                  `json:"suggestions"`
	Loading         []string                           `json:"loading"`
	Complete        bool                               `json:"complete"`
	ReadyToSubmit   bool                               `json:"ready_to_submit"`
	Summary         string                             `json:"summary,omitempty"`
}

// Wizard drives one client through the question categories in order.
//
// Responses are kept locally from the moment they are entered and are only
// marked clean once the gateway has stored them, so a failed save never
// loses an answer. mu guards local state and is never held across a gateway
// or provider call; navMu serializes the operations that move the wizard.
type Wizard struct {
	draftID  uuid.UUID
	clientID uuid.UUID
	deps     WizardDeps
	fetcher  *suggestions.Fetcher
	logger   *zap.Logger

	navMu sync.Mutex

	mu            sync.Mutex
	current       models.QuestionCategory
	complete      bool
	readyToSubmit bool
	summary       string
	responses     map[string]*models.QuestionResponse
	// dirty maps a question to the edit generation not yet stored.
	dirty map[string]uint64
	gen   uint64
	// brief is set once a brief record exists for this draft.
	brief *models.Brief
}

func newWizard(draftID, clientID uuid.UUID, deps WizardDeps, fetcher *suggestions.Fetcher, seed []*models.QuestionResponse, brief *models.Brief) *Wizard {
	if deps.Notify == nil {
		deps.Notify = notify.Nop{}
	}
	w := &Wizard{
		draftID:   draftID,
		clientID:  clientID,
		deps:      deps,
		fetcher:   fetcher,
		logger:    deps.Logger.Named("wizard").With(zap.String("draft_id", draftID.String())),
		current:   deps.Catalog.First(),
		responses: make(map[string]*models.QuestionResponse, len(seed)),
		dirty:     make(map[string]uint64),
		brief:     brief.Clone(),
	}
	for _, r := range seed {
		if _, ok := deps.Catalog.Question(r.QuestionID); !ok {
			continue
		}
		c := *r
		w.responses[r.QuestionID] = &c
	}
	if len(w.responses) > 0 {
		w.current = resumeCategory(deps.Catalog, w.responses)
	}
	return w
}

// resumeCategory is the first category with an unanswered question, or the
// last category when every question has an answer.
func resumeCategory(catalog *models.QuestionCatalog, responses map[string]*models.QuestionResponse) models.QuestionCategory {
	categories := catalog.Categories()
	for _, c := range categories {
		for _, q := range catalog.QuestionsFor(c) {
			if r, ok := responses[q.ID]; !ok || strings.TrimSpace(r.Response) == "" {
				return c
			}
		}
	}
	return categories[len(categories)-1]
}

// start dispatches suggestions for the category the session opens on.
func (w *Wizard) start(ctx context.Context) {
	w.fetcher.FetchCategory(ctx, w.CurrentCategoryQuestions())
}

// DraftID is the key responses are stored under. A brief created from this
// session reuses it as the brief id.
func (w *Wizard) DraftID() uuid.UUID {
	return w.draftID
}

// ClientID is the owner of the session.
func (w *Wizard) ClientID() uuid.UUID {
	return w.clientID
}

// Brief returns the brief bound to this session, or nil before submission.
func (w *Wizard) Brief() *models.Brief {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.brief.Clone()
}

func (w *Wizard) CurrentCategory() models.QuestionCategory {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// CurrentCategoryQuestions returns the ordered questions of the current category.
func (w *Wizard) CurrentCategoryQuestions() []models.Question {
	return w.deps.Catalog.QuestionsFor(w.CurrentCategory())
}

// Complete reports whether the client has moved past the last category.
func (w *Wizard) Complete() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.complete
}

// ReadyToSubmit reports whether a summary has been generated.
func (w *Wizard) ReadyToSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readyToSubmit
}

// Responses returns a copy of every response entered so far.
func (w *Wizard) Responses() map[string]models.QuestionResponse {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]models.QuestionResponse, len(w.responses))
	for id, r := range w.responses {
		out[id] = *r
	}
	return out
}

// Dirty reports whether the question has an edit that is not yet stored.
func (w *Wizard) Dirty(questionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.dirty[questionID]
	return ok
}

// State returns the view of the current category. Suggestions and loading
// flags are limited to the questions on screen.
func (w *Wizard) State(ctx context.Context) WizardState {
	w.mu.Lock()
	state := WizardState{
		DraftID:         w.draftID,
		CurrentCategory: w.current,
		Complete:        w.complete,
		ReadyToSubmit:   w.readyToSubmit,
		Summary:         w.summary,
		Responses:       make(map[string]models.QuestionResponse, len(w.responses)),
	}
	for id, r := range w.responses {
		state.Responses[id] = *r
	}
	if w.brief != nil {
		id := w.brief.ID
		state.BriefID = &id
	}
	w.mu.Unlock()

	info, _ := w.deps.Catalog.Info(state.CurrentCategory)
	state.CategoryTitle = info.Title
	state.Questions = append([]models.Question(nil), info.Questions...)

	onScreen := make(map[string]bool, len(state.Questions))
	for _, q := range state.Questions {
		onScreen[q.ID] = true
	}
	state.Suggestions = make(map[string]string)
	for id, text := range w.fetcher.Cache().Snapshot(ctx) {
		if onScreen[id] {
			state.Suggestions[id] = text
		}
	}
	state.Loading = []string{}
	for _, id := range w.fetcher.LoadingSnapshot() {
		if onScreen[id] {
			state.Loading = append(state.Loading, id)
		}
	}
	return state
}

// SetResponse records a local edit. It is stored on the next save or when
// the client leaves the category.
func (w *Wizard) SetResponse(questionID, text string) error {
	if _, ok := w.deps.Catalog.Question(questionID); !ok {
		return apperrors.NewValidationError("question_id", fmt.Sprintf("unknown question %q", questionID))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	w.setLocked(questionID, text, false, nil)
	return nil
}

// editableLocked refuses edits once the bound brief has left an editable
// status. Answers feed the brief's description, so they freeze with it.
func (w *Wizard) editableLocked() error {
	if w.brief != nil && !lifecycle.CanEdit(w.brief.Status) {
		return &apperrors.IllegalTransitionError{Action: "edit", Status: string(w.brief.Status)}
	}
	return nil
}

func (w *Wizard) setLocked(questionID, text string, used bool, suggestion *string) (models.QuestionResponse, uint64) {
	r, ok := w.responses[questionID]
	if !ok {
		r = &models.QuestionResponse{BriefDraftID: w.draftID, QuestionID: questionID}
		w.responses[questionID] = r
	}
	r.Response = text
	r.WasSuggestionUsed = used
	if suggestion != nil {
		s := *suggestion
		r.AISuggestedResponse = &s
	}
	r.UpdatedAt = time.Now().UTC()

	w.gen++
	w.dirty[questionID] = w.gen
	return *r, w.gen
}

// SaveResponse records the answer locally and stores it. On failure the
// answer stays local and dirty so it is retried with the category.
func (w *Wizard) SaveResponse(ctx context.Context, questionID, text string, wasSuggestionUsed bool, suggestionSnapshot *string) error {
	if _, ok := w.deps.Catalog.Question(questionID); !ok {
		return apperrors.NewValidationError("question_id", fmt.Sprintf("unknown question %q", questionID))
	}

	w.mu.Lock()
	if err := w.editableLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	resp, gen := w.setLocked(questionID, text, wasSuggestionUsed, suggestionSnapshot)
	w.mu.Unlock()

	if err := w.deps.Gateway.UpsertQuestionResponse(ctx, &resp); err != nil {
		w.logger.Warn("Failed to save response",
			zap.String("question_id", questionID),
			zap.Error(err))
		w.deps.Notify.Notify(notify.KindError, "Answer not saved", "Your answer is kept and will be saved again.")
		return apperrors.NewPersistenceError("save response", err)
	}

	w.markClean(questionID, gen)
	return nil
}

// UseSuggestion copies the cached suggestion into the response and saves it.
func (w *Wizard) UseSuggestion(ctx context.Context, questionID string) error {
	text, ok := w.fetcher.Cache().Get(ctx, questionID)
	if !ok {
		return &apperrors.SuggestionUnavailableError{QuestionID: questionID, Cause: errors.New("no suggestion yet")}
	}
	return w.SaveResponse(ctx, questionID, text, true, &text)
}

func (w *Wizard) markClean(questionID string, gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// a newer local edit stays dirty
	if w.dirty[questionID] == gen {
		delete(w.dirty, questionID)
	}
}

type pendingSave struct {
	resp models.QuestionResponse
	gen  uint64
}

// dirtyIn returns the unsaved responses, limited to category unless it is empty.
func (w *Wizard) dirtyIn(category models.QuestionCategory) []pendingSave {
	w.mu.Lock()
	defer w.mu.Unlock()

	var questions []models.Question
	if category == "" {
		for _, c := range w.deps.Catalog.Categories() {
			questions = append(questions, w.deps.Catalog.QuestionsFor(c)...)
		}
	} else {
		questions = w.deps.Catalog.QuestionsFor(category)
	}

	var out []pendingSave
	for _, q := range questions {
		gen, ok := w.dirty[q.ID]
		if !ok {
			continue
		}
		out = append(out, pendingSave{resp: *w.responses[q.ID], gen: gen})
	}
	return out
}

// saveAll stores every pending response concurrently and waits for all of
// them to settle. Successful saves are marked clean even if others fail.
func (w *Wizard) saveAll(ctx context.Context, pending []pendingSave) error {
	if len(pending) == 0 {
		return nil
	}

	items := make([]llm.WorkItem[uint64], len(pending))
	for i, p := range pending {
		items[i] = llm.WorkItem[uint64]{
			ID: p.resp.QuestionID,
			Execute: func(ctx context.Context) (uint64, error) {
				return p.gen, w.deps.Gateway.UpsertQuestionResponse(ctx, &p.resp)
			},
		}
	}

	var errs []error
	for _, result := range llm.Process(ctx, w.deps.Pool, items) {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", result.ID, result.Err))
			continue
		}
		w.markClean(result.ID, result.Result)
	}

	if len(errs) > 0 {
		w.logger.Warn("Failed to save responses",
			zap.Int("failed", len(errs)),
			zap.Int("total", len(pending)),
			zap.Error(errors.Join(errs...)))
		w.deps.Notify.Notify(notify.KindError, "Some answers were not saved",
			fmt.Sprintf("%d of %d answers failed to save. They are kept and will be saved again.", len(errs), len(pending)))
		return apperrors.NewPersistenceError("save responses", errors.Join(errs...))
	}
	return nil
}

// MoveToNextCategory stores every unsaved answer in the current category,
// then advances. At the last category it marks the wizard complete instead.
// If any save fails the wizard stays put and the failed answers stay dirty.
func (w *Wizard) MoveToNextCategory(ctx context.Context) error {
	w.navMu.Lock()
	defer w.navMu.Unlock()

	w.mu.Lock()
	err := w.editableLocked()
	category := w.current
	w.mu.Unlock()
	if err != nil {
		return err
	}

	if err := w.saveAll(ctx, w.dirtyIn(category)); err != nil {
		return err
	}

	w.mu.Lock()
	next, ok := w.deps.Catalog.Next(category)
	if !ok {
		w.complete = true
		w.mu.Unlock()
		w.logger.Debug("Wizard complete")
		return nil
	}
	w.current = next
	w.mu.Unlock()

	w.logger.Debug("Entered category", zap.String("category", string(next)))
	w.fetcher.FetchCategory(ctx, w.deps.Catalog.QuestionsFor(next))
	return nil
}

// GenerateBriefSummary stores outstanding answers and asks the provider to
// summarize them. The text is returned verbatim.
func (w *Wizard) GenerateBriefSummary(ctx context.Context) (string, error) {
	w.navMu.Lock()
	defer w.navMu.Unlock()

	if err := w.saveAll(ctx, w.dirtyIn("")); err != nil {
		return "", err
	}

	summary, err := w.deps.Provider.Summarize(ctx, w.answered())
	if err != nil {
		w.logger.Warn("Summary unavailable", zap.Error(err))
		w.deps.Notify.Notify(notify.KindError, "Summary unavailable", "You can try again in a moment.")
		return "", &apperrors.SuggestionUnavailableError{Cause: err}
	}

	w.mu.Lock()
	w.summary = summary
	w.readyToSubmit = true
	w.mu.Unlock()
	return summary, nil
}

// answered returns the non-blank answers in catalog order.
func (w *Wizard) answered() []models.AnsweredQuestion {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []models.AnsweredQuestion
	for _, c := range w.deps.Catalog.Categories() {
		for _, q := range w.deps.Catalog.QuestionsFor(c) {
			r, ok := w.responses[q.ID]
			if !ok || strings.TrimSpace(r.Response) == "" {
				continue
			}
			out = append(out, models.AnsweredQuestion{
				QuestionID: q.ID,
				Category:   c,
				Prompt:     q.Prompt,
				Response:   r.Response,
			})
		}
	}
	return out
}

// SubmitCompletedBrief creates the brief for this draft, or reuses the one
// already bound, with the summary as its description, and submits it. A
// brief waiting on changes is resubmitted. Local answers are untouched on
// failure so the call can simply be repeated.
func (w *Wizard) SubmitCompletedBrief(ctx context.Context, title string, category models.BriefCategory) (*models.Brief, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewValidationError("title", "title is required")
	}
	category, err := models.ParseBriefCategory(string(category))
	if err != nil {
		return nil, apperrors.NewValidationError("category", err.Error())
	}

	w.navMu.Lock()
	defer w.navMu.Unlock()

	if err := w.saveAll(ctx, w.dirtyIn("")); err != nil {
		return nil, err
	}

	w.mu.Lock()
	bound := w.brief.Clone()
	fields := models.BriefFields{
		Title:       title,
		Category:    category,
		Description: w.summary,
	}
	if r, ok := w.responses[budgetQuestionID]; ok {
		fields.Budget = strings.TrimSpace(r.Response)
	}
	if r, ok := w.responses[deadlineQuestionID]; ok {
		fields.Deadline = parseDeadline(r.Response)
	}
	w.mu.Unlock()

	if bound == nil {
		bound = withFields(&models.Brief{
			ID:       w.draftID,
			ClientID: w.clientID,
			Status:   models.BriefStatusDraft,
			Feedback: []models.FeedbackItem{},
		}, fields)
		if _, err := w.deps.Gateway.CreateBrief(ctx, bound); err != nil {
			w.deps.Notify.Notify(notify.KindError, "Could not submit brief", "Your answers are kept. Please try again.")
			return nil, gatewayError("create brief", err)
		}
		w.logger.Info("Draft brief created", zap.String("brief_id", bound.ID.String()))

		w.mu.Lock()
		w.brief = bound.Clone()
		w.mu.Unlock()
	} else {
		// Judge the submit against the stored status, which another
		// session or a reviewer may have moved on.
		stored, err := w.deps.Gateway.GetBrief(ctx, bound.ID)
		if err != nil {
			w.deps.Notify.Notify(notify.KindError, "Could not submit brief", "Your answers are kept. Please try again.")
			return nil, gatewayError("get brief", err)
		}
		bound = stored

		fields.AttachmentURL = bound.AttachmentURL
		if fields.Deadline == nil {
			fields.Deadline = bound.Deadline
		}
		if fields.Budget == "" {
			fields.Budget = bound.Budget
		}
		if fields.Description == "" {
			fields.Description = bound.Description
		}
	}

	action := lifecycle.Submit()
	if bound.Status == models.BriefStatusChangesRequested {
		action = lifecycle.Resubmit()
	}

	submitted, err := commitTransition(ctx, w.deps.Gateway, bound, action, &fields)
	if err != nil {
		if apperrors.IsIllegalTransition(err) || errors.Is(err, apperrors.ErrConflict) {
			w.logger.Error("Illegal transition on submit", zap.Error(err))
			w.deps.Notify.Notify(notify.KindError, "Action not available", "Refresh the page and try again.")
		} else {
			w.deps.Notify.Notify(notify.KindError, "Could not submit brief", "Your answers are kept. Please try again.")
		}
		return nil, err
	}

	w.mu.Lock()
	w.brief = submitted.Clone()
	w.mu.Unlock()

	w.logger.Info("Brief submitted",
		zap.String("brief_id", submitted.ID.String()),
		zap.String("action", string(action.Kind)))
	w.deps.Notify.Notify(notify.KindSuccess, actionTitle(action.Kind), submitted.Title)
	return submitted, nil
}

// Close waits for in-flight suggestion requests to settle.
func (w *Wizard) Close() {
	w.fetcher.Wait()
}
