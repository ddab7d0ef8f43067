package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientIDHeader carries the caller's client id. Authentication happens
// upstream; this service trusts the header.
const ClientIDHeader = "X-Client-ID"

// ReviewerHeader names the reviewer attached to feedback.
const ReviewerHeader = "X-Reviewer"

// ParseClientID extracts and validates the client ID from the request header.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
func ParseClientID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get(ClientIDHeader))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing_client_id", "A valid "+ClientIDHeader+" header is required", logger)
		return uuid.Nil, false
	}
	return id, true
}

// ParseBriefID extracts and validates the brief ID from the request path.
// Expects path parameter: bid
func ParseBriefID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "bid", "invalid_brief_id", "Invalid brief ID format", logger)
}

// ParseDraftID extracts and validates the wizard draft ID from the request path.
// Expects path parameter: did
func ParseDraftID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "did", "invalid_draft_id", "Invalid draft ID format", logger)
}

// ParseAttachmentID extracts and validates the attachment ID from the request path.
// Expects path parameter: aid
func ParseAttachmentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "aid", "invalid_attachment_id", "Invalid attachment ID format", logger)
}

// parseClientAndBriefIDs reads the caller and the brief in one step.
func parseClientAndBriefIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	clientID, ok := ParseClientID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	briefID, ok := ParseBriefID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return clientID, briefID, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCode, errorMessage, logger)
		return uuid.Nil, false
	}
	return id, true
}
