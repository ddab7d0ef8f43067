package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services"
	"github.com/ekaya-inc/ekaya-briefs/pkg/services/lifecycle"
)

// MaxAttachmentBytes caps an uploaded file.
const MaxAttachmentBytes = 10 << 20

// ============================================================================
// Request/Response Types
// ============================================================================

// BriefResponse is a brief plus what the client may do with it next.
type BriefResponse struct {
	*models.Brief
	AllowedActions []lifecycle.ActionKind `json:"allowed_actions"`
	CanEdit        bool                   `json:"can_edit"`
	CanCancel      bool                   `json:"can_cancel"`
}

func newBriefResponse(b *models.Brief) BriefResponse {
	actions := lifecycle.AllowedActions(b.Status)
	if actions == nil {
		actions = []lifecycle.ActionKind{}
	}
	return BriefResponse{
		Brief:          b,
		AllowedActions: actions,
		CanEdit:        lifecycle.CanEdit(b.Status),
		CanCancel:      lifecycle.CanCancel(b.Status),
	}
}

// BriefListResponse for GET /api/briefs
type BriefListResponse struct {
	Briefs []BriefResponse `json:"briefs"`
	Total  int             `json:"total"`
}

// TransitionRequest for POST /api/briefs/{bid}/transitions
type TransitionRequest struct {
	Action   string   `json:"action"`
	Feedback []string `json:"feedback,omitempty"`
}

// PublishedListResponse for GET /api/published-briefs
type PublishedListResponse struct {
	Briefs []models.PublishedBrief `json:"briefs"`
	Total  int                     `json:"total"`
}

// reviewerActions are taken by the agency rather than the brief's owner.
var reviewerActions = map[lifecycle.ActionKind]bool{
	lifecycle.ActionRequestChanges: true,
	lifecycle.ActionPublish:        true,
	lifecycle.ActionAward:          true,
	lifecycle.ActionComplete:       true,
}

// ============================================================================
// Handler
// ============================================================================

// BriefsHandler handles brief and attachment HTTP requests.
type BriefsHandler struct {
	briefService services.BriefService
	logger       *zap.Logger
}

// NewBriefsHandler creates a new briefs handler.
func NewBriefsHandler(briefService services.BriefService, logger *zap.Logger) *BriefsHandler {
	return &BriefsHandler{
		briefService: briefService,
		logger:       logger,
	}
}

// RegisterRoutes registers the briefs handler's routes on the given mux.
func (h *BriefsHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/briefs"

	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base+"/{bid}", h.Get)
	mux.HandleFunc("PUT "+base+"/{bid}", h.Update)
	mux.HandleFunc("POST "+base+"/{bid}/transitions", h.Transition)
	mux.HandleFunc("POST "+base+"/{bid}/attachments", h.Attach)
	mux.HandleFunc("GET /api/attachments/{aid}", h.GetAttachment)
	mux.HandleFunc("GET /api/published-briefs", h.ListPublished)
}

// List handles GET /api/briefs
func (h *BriefsHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}

	briefs, err := h.briefService.ListForClient(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, "list briefs", err, h.logger)
		return
	}

	out := make([]BriefResponse, 0, len(briefs))
	for _, b := range briefs {
		out = append(out, newBriefResponse(b))
	}
	writeData(w, http.StatusOK, BriefListResponse{Briefs: out, Total: len(out)}, h.logger)
}

// Create handles POST /api/briefs
func (h *BriefsHandler) Create(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.BriefFields
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	brief, err := h.briefService.CreateDraft(r.Context(), clientID, req)
	if err != nil {
		writeServiceError(w, "create brief", err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, newBriefResponse(brief), h.logger)
}

// Get handles GET /api/briefs/{bid}
func (h *BriefsHandler) Get(w http.ResponseWriter, r *http.Request) {
	clientID, briefID, ok := parseClientAndBriefIDs(w, r, h.logger)
	if !ok {
		return
	}

	brief, err := h.briefService.Get(r.Context(), clientID, briefID)
	if err != nil {
		writeServiceError(w, "get brief", err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newBriefResponse(brief), h.logger)
}

// Update handles PUT /api/briefs/{bid}
func (h *BriefsHandler) Update(w http.ResponseWriter, r *http.Request) {
	clientID, briefID, ok := parseClientAndBriefIDs(w, r, h.logger)
	if !ok {
		return
	}

	var req models.BriefFields
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	brief, err := h.briefService.UpdateDraft(r.Context(), clientID, briefID, req)
	if err != nil {
		writeServiceError(w, "update brief", err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newBriefResponse(brief), h.logger)
}

// Transition handles POST /api/briefs/{bid}/transitions.
// Owner actions require the caller to own the brief. Reviewer actions are
// attributed to the X-Reviewer header.
func (h *BriefsHandler) Transition(w http.ResponseWriter, r *http.Request) {
	briefID, ok := ParseBriefID(w, r, h.logger)
	if !ok {
		return
	}

	var req TransitionRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	kind, ok := lifecycle.ParseActionKind(req.Action)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_action", "Unknown action "+req.Action, h.logger)
		return
	}

	action := lifecycle.Action{Kind: kind}
	if reviewerActions[kind] {
		reviewer := strings.TrimSpace(r.Header.Get(ReviewerHeader))
		if reviewer == "" {
			reviewer = "Reviewer"
		}
		for _, msg := range req.Feedback {
			action.Feedback = append(action.Feedback, models.FeedbackItem{Message: msg, FromReviewer: reviewer})
		}
	} else {
		clientID, ok := ParseClientID(w, r, h.logger)
		if !ok {
			return
		}
		if _, err := h.briefService.Get(r.Context(), clientID, briefID); err != nil {
			writeServiceError(w, "get brief", err, h.logger)
			return
		}
	}

	brief, err := h.briefService.Apply(r.Context(), briefID, action)
	if err != nil {
		writeServiceError(w, "transition brief", err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newBriefResponse(brief), h.logger)
}

// Attach handles POST /api/briefs/{bid}/attachments (multipart field "file").
func (h *BriefsHandler) Attach(w http.ResponseWriter, r *http.Request) {
	clientID, briefID, ok := parseClientAndBriefIDs(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAttachmentBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload limit", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart file field named file", h.logger)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Could not read the uploaded file", h.logger)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	brief, err := h.briefService.AttachFile(r.Context(), clientID, briefID, &models.Attachment{
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		writeServiceError(w, "attach file", err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, newBriefResponse(brief), h.logger)
}

// GetAttachment handles GET /api/attachments/{aid}
func (h *BriefsHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ParseClientID(w, r, h.logger)
	if !ok {
		return
	}
	attachmentID, ok := ParseAttachmentID(w, r, h.logger)
	if !ok {
		return
	}

	file, err := h.briefService.GetAttachment(r.Context(), clientID, attachmentID)
	if err != nil {
		writeServiceError(w, "get attachment", err, h.logger)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(file.FileName, `"`, "")+`"`)
	if _, err := w.Write(file.Data); err != nil {
		h.logger.Error("Failed to write attachment", zap.Error(err))
	}
}

// ListPublished handles GET /api/published-briefs
func (h *BriefsHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	briefs, err := h.briefService.ListPublished(r.Context())
	if err != nil {
		writeServiceError(w, "list published briefs", err, h.logger)
		return
	}
	writeData(w, http.StatusOK, PublishedListResponse{Briefs: briefs, Total: len(briefs)}, h.logger)
}
