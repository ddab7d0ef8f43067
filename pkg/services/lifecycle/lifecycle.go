// Package lifecycle holds the brief status state machine. It is pure: every
// function maps (state, action) to a new state or an error with no I/O.
package lifecycle

import (
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
)

// ActionKind names a lifecycle action.
type ActionKind string

const (
	ActionSubmit         ActionKind = "submit"
	ActionRequestChanges ActionKind = "request_changes"
	ActionPublish        ActionKind = "publish"
	ActionAward          ActionKind = "award"
	ActionComplete       ActionKind = "complete"
	ActionCancel         ActionKind = "cancel"
	ActionResubmit       ActionKind = "resubmit"
)

// AllActions lists every action kind.
var AllActions = []ActionKind{
	ActionSubmit,
	ActionRequestChanges,
	ActionPublish,
	ActionAward,
	ActionComplete,
	ActionCancel,
	ActionResubmit,
}

// ParseActionKind validates an action name.
func ParseActionKind(s string) (ActionKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range AllActions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// Action is a requested transition. Feedback is only meaningful for request_changes.
type Action struct {
	Kind     ActionKind
	Feedback []models.FeedbackItem
}

// Submit, Publish, ... are constructors for the parameterless actions.
func Submit() Action   { return Action{Kind: ActionSubmit} }
func Publish() Action  { return Action{Kind: ActionPublish} }
func Award() Action    { return Action{Kind: ActionAward} }
func Complete() Action { return Action{Kind: ActionComplete} }
func Cancel() Action   { return Action{Kind: ActionCancel} }
func Resubmit() Action { return Action{Kind: ActionResubmit} }

// RequestChanges builds a request_changes action carrying reviewer feedback.
func RequestChanges(feedback ...models.FeedbackItem) Action {
	return Action{Kind: ActionRequestChanges, Feedback: feedback}
}

type edge struct {
	from   models.BriefStatus
	action ActionKind
}

// transitions is the single source of truth for legal moves.
// Anything absent is an IllegalTransitionError.
var transitions = map[edge]models.BriefStatus{
	{models.BriefStatusDraft, ActionSubmit}:              models.BriefStatusSubmitted,
	{models.BriefStatusDraft, ActionCancel}:              models.BriefStatusCancelled,
	{models.BriefStatusSubmitted, ActionPublish}:         models.BriefStatusPublished,
	{models.BriefStatusSubmitted, ActionRequestChanges}:  models.BriefStatusChangesRequested,
	{models.BriefStatusSubmitted, ActionCancel}:          models.BriefStatusCancelled,
	{models.BriefStatusChangesRequested, ActionResubmit}: models.BriefStatusSubmitted,
	{models.BriefStatusPublished, ActionAward}:           models.BriefStatusAwarded,
	{models.BriefStatusAwarded, ActionComplete}:          models.BriefStatusCompleted,
}

// Next returns the destination status for an action, or false if illegal.
func Next(from models.BriefStatus, action ActionKind) (models.BriefStatus, bool) {
	to, ok := transitions[edge{from, action}]
	return to, ok
}

// CanEdit reports whether brief fields may be changed in this status.
func CanEdit(status models.BriefStatus) bool {
	return status == models.BriefStatusDraft || status == models.BriefStatusChangesRequested
}

// CanCancel reports whether the brief may be cancelled in this status.
// under_review is parsed as submitted, so it is covered here.
func CanCancel(status models.BriefStatus) bool {
	_, ok := Next(status, ActionCancel)
	return ok
}

// AllowedActions returns the actions legal from a status, in AllActions order.
func AllowedActions(status models.BriefStatus) []ActionKind {
	var out []ActionKind
	for _, a := range AllActions {
		if _, ok := Next(status, a); ok {
			out = append(out, a)
		}
	}
	return out
}

// Transition applies action to brief and returns the updated copy. The input
// brief is never modified. Feedback is appended for request_changes and is
// otherwise carried over untouched.
func Transition(brief *models.Brief, action Action) (*models.Brief, error) {
	to, ok := Next(brief.Status, action.Kind)
	if !ok {
		return nil, &apperrors.IllegalTransitionError{
			Action: string(action.Kind),
			Status: string(brief.Status),
		}
	}

	out := brief.Clone()

	switch action.Kind {
	case ActionRequestChanges:
		feedback, err := normalizeFeedback(action.Feedback)
		if err != nil {
			return nil, err
		}
		out.Feedback = append(out.Feedback, feedback...)
	case ActionSubmit:
		if err := brief.Validate(); err != nil {
			return nil, apperrors.NewValidationError("brief", err.Error())
		}
	}

	out.Status = to
	return out, nil
}

func normalizeFeedback(items []models.FeedbackItem) ([]models.FeedbackItem, error) {
	if len(items) == 0 {
		return nil, apperrors.NewValidationError("feedback", "at least one feedback item is required")
	}
	now := time.Now().UTC()
	out := make([]models.FeedbackItem, 0, len(items))
	for _, item := range items {
		msg := strings.TrimSpace(item.Message)
		if msg == "" {
			return nil, apperrors.NewValidationError("feedback", "feedback message must not be empty")
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		item.Message = msg
		out = append(out, item)
	}
	return out, nil
}
