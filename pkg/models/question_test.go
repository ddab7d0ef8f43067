package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultQuestionCatalog_Order(t *testing.T) {
	catalog := DefaultQuestionCatalog()

	assert.Equal(t, []QuestionCategory{
		QuestionCategoryObjectives,
		QuestionCategoryAudience,
		QuestionCategoryTimeline,
		QuestionCategoryBudget,
		QuestionCategoryDeliverables,
		QuestionCategorySkills,
		QuestionCategoryReferences,
		QuestionCategoryBrand,
	}, catalog.Categories())
	assert.Equal(t, QuestionCategoryObjectives, catalog.First())
}

func TestDefaultQuestionCatalog_Next(t *testing.T) {
	catalog := DefaultQuestionCatalog()

	next, ok := catalog.Next(QuestionCategoryObjectives)
	assert.True(t, ok)
	assert.Equal(t, QuestionCategoryAudience, next)

	_, ok = catalog.Next(QuestionCategoryBrand)
	assert.False(t, ok)

	_, ok = catalog.Next("unknown")
	assert.False(t, ok)
}

func TestDefaultQuestionCatalog_QuestionsBelongToCategory(t *testing.T) {
	catalog := DefaultQuestionCatalog()

	for _, cat := range catalog.Categories() {
		questions := catalog.QuestionsFor(cat)
		require.NotEmpty(t, questions, "category %s", cat)
		for _, q := range questions {
			assert.Equal(t, cat, q.Category)
			found, ok := catalog.Question(q.ID)
			require.True(t, ok)
			assert.Equal(t, q, found)
		}
	}
	assert.Len(t, catalog.QuestionsFor(QuestionCategoryObjectives), 3)
}

func TestParseQuestionCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "categories: []"},
		{"duplicate question", `
categories:
  - id: a
    questions:
      - id: q1
        prompt: one
  - id: b
    questions:
      - id: q1
        prompt: two
`},
		{"bad kind", `
categories:
  - id: a
    questions:
      - id: q1
        prompt: one
        kind: checkbox
`},
		{"missing id", `
categories:
  - id: a
    questions:
      - prompt: one
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuestionCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseQuestionCatalog_DefaultsKind(t *testing.T) {
	catalog, err := ParseQuestionCatalog([]byte(`
categories:
  - id: only
    questions:
      - id: q1
        prompt: one
`))
	require.NoError(t, err)
	q, ok := catalog.Question("q1")
	require.True(t, ok)
	assert.Equal(t, FieldKindSingleLine, q.Kind)
}
