package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BriefStatus is the lifecycle state of a brief.
type BriefStatus string

// Brief status constants. Ordered for display only; legality lives in the lifecycle package.
const (
	BriefStatusDraft            BriefStatus = "draft"
	BriefStatusSubmitted        BriefStatus = "submitted"
	BriefStatusChangesRequested BriefStatus = "changes_requested"
	BriefStatusPublished        BriefStatus = "published"
	BriefStatusAwarded          BriefStatus = "awarded"
	BriefStatusCompleted        BriefStatus = "completed"
	BriefStatusCancelled        BriefStatus = "cancelled"
)

// briefStatusUnderReview is accepted on input and folded into submitted.
const briefStatusUnderReview = "under_review"

// AllBriefStatuses lists every status in display order.
var AllBriefStatuses = []BriefStatus{
	BriefStatusDraft,
	BriefStatusSubmitted,
	BriefStatusChangesRequested,
	BriefStatusPublished,
	BriefStatusAwarded,
	BriefStatusCompleted,
	BriefStatusCancelled,
}

// ParseBriefStatus converts a stored or user-supplied string into a BriefStatus.
func ParseBriefStatus(s string) (BriefStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == briefStatusUnderReview {
		return BriefStatusSubmitted, nil
	}
	for _, status := range AllBriefStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown brief status %q", s)
}

// IsTerminal reports whether no further action is possible from this status.
func (s BriefStatus) IsTerminal() bool {
	return s == BriefStatusCancelled || s == BriefStatusCompleted
}

// BriefCategory is the kind of work a brief requests.
type BriefCategory string

const (
	BriefCategoryDesign      BriefCategory = "design"
	BriefCategoryDevelopment BriefCategory = "development"
	BriefCategoryMarketing   BriefCategory = "marketing"
	BriefCategoryWriting     BriefCategory = "writing"
	BriefCategoryVideo       BriefCategory = "video"
)

// AllBriefCategories lists the valid brief categories.
var AllBriefCategories = []BriefCategory{
	BriefCategoryDesign,
	BriefCategoryDevelopment,
	BriefCategoryMarketing,
	BriefCategoryWriting,
	BriefCategoryVideo,
}

// ParseBriefCategory validates a category string.
func ParseBriefCategory(s string) (BriefCategory, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range AllBriefCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown brief category %q", s)
}

// FeedbackItem is a reviewer's note on a brief. Immutable once created.
type FeedbackItem struct {
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
	FromReviewer string    `json:"from_reviewer"`
}

// Brief is a client's project request moving through the review lifecycle.
// Status must only change through lifecycle.Transition.
type Brief struct {
	ID            uuid.UUID      `json:"id"`
	ClientID      uuid.UUID      `json:"client_id"`
	Title         string         `json:"title"`
	Budget        string         `json:"budget"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
	Category      BriefCategory  `json:"category"`
	Description   string         `json:"description"`
	AttachmentURL *string        `json:"attachment_url,omitempty"`
	Status        BriefStatus    `json:"status"`
	Feedback      []FeedbackItem `json:"feedback"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so transitions never alias the caller's brief.
func (b *Brief) Clone() *Brief {
	if b == nil {
		return nil
	}
	c := *b
	if b.Deadline != nil {
		d := *b.Deadline
		c.Deadline = &d
	}
	if b.AttachmentURL != nil {
		u := *b.AttachmentURL
		c.AttachmentURL = &u
	}
	c.Feedback = append([]FeedbackItem(nil), b.Feedback...)
	return &c
}

// Validate checks the fields required before a brief can be created or submitted.
func (b *Brief) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := ParseBriefCategory(string(b.Category)); err != nil {
		return err
	}
	return nil
}

// BriefFields are the client-editable fields of a brief.
type BriefFields struct {
	Title         string        `json:"title"`
	Budget        string        `json:"budget"`
	Deadline      *time.Time    `json:"deadline,omitempty"`
	Category      BriefCategory `json:"category"`
	Description   string        `json:"description"`
	AttachmentURL *string       `json:"attachment_url,omitempty"`
}

// Fields extracts the editable fields of a brief.
func (b *Brief) Fields() BriefFields {
	return BriefFields{
		Title:         b.Title,
		Budget:        b.Budget,
		Deadline:      b.Deadline,
		Category:      b.Category,
		Description:   b.Description,
		AttachmentURL: b.AttachmentURL,
	}
}

// BriefPatch is a partial update. Nil pointers leave the stored value unchanged.
// AppendFeedback is appended to the existing history, never replacing it.
// A non-nil ExpectStatus makes the update conditional on the stored status.
type BriefPatch struct {
	Title          *string
	Budget         *string
	Deadline       *time.Time
	Category       *BriefCategory
	Description    *string
	AttachmentURL  *string
	Status         *BriefStatus
	AppendFeedback []FeedbackItem
	ExpectStatus   *BriefStatus
}

// IsEmpty reports whether the patch changes nothing.
func (p *BriefPatch) IsEmpty() bool {
	return p.Title == nil && p.Budget == nil && p.Deadline == nil && p.Category == nil &&
		p.Description == nil && p.AttachmentURL == nil && p.Status == nil && len(p.AppendFeedback) == 0
}

// PatchFromFields builds a patch that overwrites every editable field.
func PatchFromFields(f BriefFields) *BriefPatch {
	p := &BriefPatch{
		Title:       &f.Title,
		Budget:      &f.Budget,
		Deadline:    f.Deadline,
		Category:    &f.Category,
		Description: &f.Description,
	}
	if f.AttachmentURL != nil {
		p.AttachmentURL = f.AttachmentURL
	}
	return p
}

// PublishedBrief is the anonymized view of a published brief offered to
// downstream consumers. It carries no client identity.
type PublishedBrief struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Category    BriefCategory `json:"category"`
	Budget      string        `json:"budget"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	Description string        `json:"description"`
}

// Anonymize projects a brief to its downstream view.
func (b *Brief) Anonymize() PublishedBrief {
	return PublishedBrief{
		ID:          b.ID,
		Title:       b.Title,
		Category:    b.Category,
		Budget:      b.Budget,
		Deadline:    b.Deadline,
		Description: b.Description,
	}
}

// Attachment is a file stored against a brief.
type Attachment struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
