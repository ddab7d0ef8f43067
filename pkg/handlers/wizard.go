package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services"
)

// SaveResponseRequest for PUT /api/wizard/{did}/responses/{qid}
type SaveResponseRequest struct {
	Response            string  `json:"response"`
	WasSuggestionUsed   bool    `json:"was_suggestion_used"`
	AISuggestedResponse *string `json:"ai_suggested_response,omitempty"`
}

// SubmitWizardRequest for POST /api/wizard/{did}/submit
type SubmitWizardRequest struct {
	Title    string               `json:"title"`
	Category models.BriefCategory `json:"category"`
}

// SummaryResponse for POST /api/wizard/{did}/summary
type SummaryResponse struct {
	Summary string               `json:"summary"`
	State   services.WizardState `json:"state"`
}

// WizardHandler exposes guided authoring sessions.
type WizardHandler struct {
	registry *services.WizardRegistry
	logger   *zap.Logger
}

// NewWizardHandler creates a new wizard handler.
func NewWizardHandler(registry *services.WizardRegistry, logger *zap.Logger) *WizardHandler {
	return &WizardHandler{
		registry: registry,
		logger:   logger,
	}
}

// RegisterRoutes registers the wizard handler's routes on the given mux.
func (h *WizardHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/wizard"

	mux.HandleFunc("POST "+base, h.Start)
	mux.HandleFunc("GET "+base+"/{did}", h.Get)
	mux.HandleFunc("PUT "+base+"/{did}/responses/{qid}", h.SaveResponse)
	mux.HandleFunc("POST "+base+"/{did}/responses/{qid}/use-suggestion", h.UseSuggestion)
	mux.HandleFunc("POST "+base+"/{did}/next", h.Next)
	mux.HandleFunc("POST "+base+"/{did}/summary", h.Summary)
	mux.HandleFunc("POST "+base+"/{did}/submit", h.Submit)
}

// session resolves the caller's wizard, resuming it from storage if needed.
func (h *WizardHandler) session(w http.ResponseWriter, r *http.Request) (*services.Wizard, bool) {
	clientID, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return nil, false
	}
	draftID, ok := ParseDraftID(w, r, h.logger)
	if !ok {
		return nil, false
	}

	wiz, err := h.registry.Resume(r.Context(), clientID, draftID)
	if err != nil {
		writeServiceError(w, "resume wizard", err, h.logger)
		return nil, false
	}
	return wiz, true
}

func (h *WizardHandler) writeState(w http.ResponseWriter, r *http.Request, status int, wiz *services.Wizard) {
	writeData(w, status, wiz.State(r.Context()), h.logger)
}

// Start handles POST /api/wizard
func (h *WizardHandler) Start(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}
	h.writeState(w, r, http.StatusCreated, h.registry.Start(r.Context(), clientID))
}

// Get handles GET /api/wizard/{did}
func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeState(w, r, http.StatusOK, wiz)
}

// SaveResponse handles PUT /api/wizard/{did}/responses/{qid}
func (h *WizardHandler) SaveResponse(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SaveResponseRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	questionID := r.PathValue("qid")
	if err := wiz.SaveResponse(r.Context(), questionID, req.Response, req.WasSuggestionUsed, req.AISuggestedResponse); err != nil {
		writeServiceError(w, "save response", err, h.logger)
		return
	}
	h.writeState(w, r, http.StatusOK, wiz)
}

// UseSuggestion handles POST /api/wizard/{did}/responses/{qid}/use-suggestion
func (h *WizardHandler) UseSuggestion(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := wiz.UseSuggestion(r.Context(), r.PathValue("qid")); err != nil {
		writeServiceError(w, "use suggestion", err, h.logger)
		return
	}
	h.writeState(w, r, http.StatusOK, wiz)
}

// Next handles POST /api/wizard/{did}/next
func (h *WizardHandler) Next(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := wiz.MoveToNextCategory(r.Context()); err != nil {
		writeServiceError(w, "next category", err, h.logger)
		return
	}
	h.writeState(w, r, http.StatusOK, wiz)
}

// Summary handles POST /api/wizard/{did}/summary
func (h *WizardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}

	summary, err := wiz.GenerateBriefSummary(r.Context())
	if err != nil {
		writeServiceError(w, "generate summary", err, h.logger)
		return
	}
	writeData(w, http.StatusOK, SummaryResponse{Summary: summary, State: wiz.State(r.Context())}, h.logger)
}

// Submit handles POST /api/wizard/{did}/submit. The session ends once the
// brief is submitted.
func (h *WizardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SubmitWizardRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	brief, err := wiz.SubmitCompletedBrief(r.Context(), req.Title, req.Category)
	if err != nil {
		writeServiceError(w, "submit brief", err, h.logger)
		return
	}
	h.registry.Remove(wiz.DraftID())

	h.logger.Info("Wizard brief submitted",
		zap.String("brief_id", brief.ID.String()),
		zap.String("client_id", wiz.ClientID().String()))
	writeData(w, http.StatusCreated, newBriefResponse(brief), h.logger)
}

