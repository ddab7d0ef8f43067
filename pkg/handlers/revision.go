package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services"
)

// RevisionResponse is the revision surface: reviewer notes beside the
// editable fields and the authoring session.
type RevisionResponse struct {
	BriefID  uuid.UUID             `json:"brief_id"`
	Feedback []models.FeedbackItem `json:"feedback"`
	Fields   models.BriefFields    `json:"fields"`
	Wizard   services.WizardState  `json:"wizard"`
}

// UpdateRevisionFieldsRequest for PUT /api/briefs/{bid}/revision/fields.
// Omitted fields are left unchanged.
type UpdateRevisionFieldsRequest struct {
	Title         *string               `json:"title,omitempty"`
	Budget        *string               `json:"budget,omitempty"`
	Deadline      *time.Time            `json:"deadline,omitempty"`
	Category      *models.BriefCategory `json:"category,omitempty"`
	Description   *string               `json:"description,omitempty"`
	AttachmentURL *string               `json:"attachment_url,omitempty"`
}

// RevisionHandler handles the changes-requested revision flow.
type RevisionHandler struct {
	revisions *services.RevisionManager
	logger    *zap.Logger
}

// NewRevisionHandler creates a new revision handler.
func NewRevisionHandler(revisions *services.RevisionManager, logger *zap.Logger) *RevisionHandler {
	return &RevisionHandler{
		revisions: revisions,
		logger:    logger,
	}
}

// RegisterRoutes registers the revision handler's routes on the given mux.
func (h *RevisionHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/briefs/{bid}/revision"

	mux.HandleFunc("POST "+base, h.Begin)
	mux.HandleFunc("GET "+base, h.Get)
	mux.HandleFunc("PUT "+base+"/fields", h.UpdateFields)
	mux.HandleFunc("POST "+base+"/resubmit", h.Resubmit)
}

func (h *RevisionHandler) respond(w http.ResponseWriter, r *http.Request, status int, s *services.RevisionSession) {
	writeData(w, status, RevisionResponse{
		BriefID:  s.BriefID(),
		Feedback: s.Feedback(),
		Fields:   s.Fields(),
		Wizard:   s.Wizard().State(r.Context()),
	}, h.logger)
}

func (h *RevisionHandler) session(w http.ResponseWriter, r *http.Request) (*services.RevisionSession, bool) {
	clientID, briefID, ok := parseClientAndBriefIDs(w, r, h.logger)
	if !ok {
		return nil, false
	}
	s, err := h.revisions.Get(clientID, briefID)
	if err != nil {
		writeServiceError(w, "get revision", err, h.logger)
		return nil, false
	}
	return s, true
}

// Begin handles POST /api/briefs/{bid}/revision
func (h *RevisionHandler) Begin(w http.ResponseWriter, r *http.Request) {
	clientID, briefID, ok := parseClientAndBriefIDs(w, r, h.logger)
	if !ok {
		return
	}

	s, err := h.revisions.Begin(r.Context(), clientID, briefID)
	if err != nil {
		writeServiceError(w, "begin revision", err, h.logger)
		return
	}
	h.respond(w, r, http.StatusCreated, s)
}

// Get handles GET /api/briefs/{bid}/revision
func (h *RevisionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK, s)
}

// UpdateFields handles PUT /api/briefs/{bid}/revision/fields
func (h *RevisionHandler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req UpdateRevisionFieldsRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	err := s.UpdateFields(&models.BriefPatch{
		Title:         req.Title,
		Budget:        req.Budget,
		Deadline:      req.Deadline,
		Category:      req.Category,
		Description:   req.Description,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		writeServiceError(w, "update revision fields", err, h.logger)
		return
	}
	h.respond(w, r, http.StatusOK, s)
}

// Resubmit handles POST /api/briefs/{bid}/revision/resubmit
func (h *RevisionHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	brief, err := s.Resubmit(r.Context())
	if err != nil {
		writeServiceError(w, "resubmit brief", err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newBriefResponse(brief), h.logger)
}
