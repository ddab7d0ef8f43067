package models

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// QuestionCategory is one of the fixed authoring categories.
type QuestionCategory string

const (
	QuestionCategoryObjectives   QuestionCategory = "objectives"
	QuestionCategoryAudience     QuestionCategory = "audience"
	QuestionCategoryTimeline     QuestionCategory = "timeline"
	QuestionCategoryBudget       QuestionCategory = "budget"
	QuestionCategoryDeliverables QuestionCategory = "deliverables"
	QuestionCategorySkills       QuestionCategory = "skills"
	QuestionCategoryReferences   QuestionCategory = "references"
	QuestionCategoryBrand        QuestionCategory = "brand"
)

// FieldKind controls how a question is rendered.
type FieldKind string

const (
	FieldKindSingleLine FieldKind = "single_line"
	FieldKindMultiLine  FieldKind = "multi_line"
)

// Question is a single authoring prompt belonging to exactly one category.
type Question struct {
	ID          string           `json:"id" yaml:"id"`
	Category    QuestionCategory `json:"category" yaml:"-"`
	Prompt      string           `json:"prompt" yaml:"prompt"`
	HelpText    string           `json:"help_text,omitempty" yaml:"help"`
	Kind        FieldKind        `json:"kind" yaml:"kind"`
	Placeholder string           `json:"placeholder,omitempty" yaml:"placeholder"`
}

// QuestionResponse is a user's answer to a question within one draft.
// Keyed by (BriefDraftID, QuestionID); saves overwrite.
type QuestionResponse struct {
	BriefDraftID        uuid.UUID `json:"brief_draft_id"`
	QuestionID          string    `json:"question_id"`
	Response            string    `json:"response"`
	AISuggestedResponse *string   `json:"ai_suggested_response,omitempty"`
	WasSuggestionUsed   bool      `json:"was_suggestion_used"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CategoryInfo describes a category and its ordered questions.
type CategoryInfo struct {
	ID        QuestionCategory `json:"id" yaml:"id"`
	Title     string           `json:"title" yaml:"title"`
	Questions []Question       `json:"questions" yaml:"questions"`
}

// QuestionCatalog is the fixed, ordered category/question table.
type QuestionCatalog struct {
	categories []CategoryInfo
	byID       map[string]Question
	index      map[QuestionCategory]int
}

//go:embed questions.yaml
var defaultCatalogYAML []byte

var defaultCatalog = mustParseCatalog(defaultCatalogYAML)

// DefaultQuestionCatalog returns the built-in catalog.
func DefaultQuestionCatalog() *QuestionCatalog {
	return defaultCatalog
}

func mustParseCatalog(data []byte) *QuestionCatalog {
	c, err := ParseQuestionCatalog(data)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in question catalog: %v", err))
	}
	return c
}

// ParseQuestionCatalog parses a YAML catalog and checks that question IDs are
// unique and every question has a known field kind.
func ParseQuestionCatalog(data []byte) (*QuestionCatalog, error) {
	var doc struct {
		Categories []CategoryInfo `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("catalog has no categories")
	}

	c := &QuestionCatalog{
		byID:  make(map[string]Question),
		index: make(map[QuestionCategory]int),
	}
	for i := range doc.Categories {
		cat := &doc.Categories[i]
		if _, dup := c.index[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.ID)
		}
		c.index[cat.ID] = i
		for j := range cat.Questions {
			q := &cat.Questions[j]
			q.Category = cat.ID
			if q.ID == "" {
				return nil, fmt.Errorf("category %q has a question without id", cat.ID)
			}
			if q.Kind == "" {
				q.Kind = FieldKindSingleLine
			}
			if q.Kind != FieldKindSingleLine && q.Kind != FieldKindMultiLine {
				return nil, fmt.Errorf("question %q has unknown kind %q", q.ID, q.Kind)
			}
			if _, dup := c.byID[q.ID]; dup {
				return nil, fmt.Errorf("duplicate question id %q", q.ID)
			}
			c.byID[q.ID] = *q
		}
	}
	c.categories = doc.Categories
	return c, nil
}

// Categories returns the categories in wizard order.
func (c *QuestionCatalog) Categories() []QuestionCategory {
	out := make([]QuestionCategory, len(c.categories))
	for i, cat := range c.categories {
		out[i] = cat.ID
	}
	return out
}

// First returns the first category.
func (c *QuestionCatalog) First() QuestionCategory {
	return c.categories[0].ID
}

// Info returns the category's title and questions.
func (c *QuestionCatalog) Info(category QuestionCategory) (CategoryInfo, bool) {
	i, ok := c.index[category]
	if !ok {
		return CategoryInfo{}, false
	}
	return c.categories[i], true
}

// QuestionsFor returns the ordered questions of a category.
func (c *QuestionCatalog) QuestionsFor(category QuestionCategory) []Question {
	i, ok := c.index[category]
	if !ok {
		return nil
	}
	return append([]Question(nil), c.categories[i].Questions...)
}

// Question looks up a question by ID.
func (c *QuestionCatalog) Question(id string) (Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// Next returns the category after the given one. ok is false at the last category.
func (c *QuestionCatalog) Next(category QuestionCategory) (QuestionCategory, bool) {
	i, found := c.index[category]
	if !found || i+1 >= len(c.categories) {
		return "", false
	}
	return c.categories[i+1].ID, true
}

// AnsweredQuestion pairs a question with the client's answer. It is the unit
// sent to the provider when summarizing a brief.
type AnsweredQuestion struct {
	QuestionID string           `json:"question_id"`
	Category   QuestionCategory `json:"category"`
	Prompt     string           `json:"prompt"`
	Response   string           `json:"response"`
}
